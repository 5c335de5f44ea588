package pfm

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Parse fully parses a serialized document.
//
// The parse is strict: any violated invariant (bad magic, unknown
// version, invalid section name, exceeded ceiling, missing EOF marker)
// fails with a structural error and no partial document is returned.
func Parse(data []byte, opts ...ReadOption) (*Document, error) {
	cfg := newReadConfig(opts)
	if int64(len(data)) > cfg.limits.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrLimitExceeded, len(data), cfg.limits.MaxFileSize)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrMalformed)
	}

	lines := strings.Split(string(data), "\n")
	version, stream, err := parseMagicLine(lines[0])
	if err != nil {
		return nil, err
	}

	doc := &Document{FormatVersion: version, Stream: stream}

	const (
		stateTop = iota
		stateMeta
		stateIndex
		stateSection
	)
	state := stateTop
	var curName string
	var curLines []string
	sawEOF := false

	flush := func() error {
		if state != stateSection {
			return nil
		}
		if len(doc.Sections)+1 > cfg.limits.MaxSections {
			return fmt.Errorf("%w: more than %d sections", ErrLimitExceeded, cfg.limits.MaxSections)
		}
		doc.Sections = append(doc.Sections, Section{
			Name:    curName,
			Content: unescapeBody(strings.Join(curLines, "\n")),
		})
		return nil
	}

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, EOFMarker):
			if err := flush(); err != nil {
				return nil, err
			}
			sawEOF = true
		case line == metaHeader:
			state = stateMeta
		case line == indexHeader || line == trailingIndexHeader:
			if err := flush(); err != nil {
				return nil, err
			}
			state = stateIndex
		case strings.HasPrefix(line, SectionPrefix):
			if err := flush(); err != nil {
				return nil, err
			}
			name := line[len(SectionPrefix):]
			if err := ValidateSectionName(name); err != nil {
				return nil, err
			}
			state = stateSection
			curName = name
			curLines = curLines[:0]
		default:
			switch state {
			case stateMeta:
				key, value, err := parseMetaLine(line)
				if err != nil {
					return nil, err
				}
				if doc.Meta.Len()+1 > cfg.limits.MaxMetaFields {
					return nil, fmt.Errorf("%w: more than %d meta fields", ErrLimitExceeded, cfg.limits.MaxMetaFields)
				}
				doc.Meta.Set(key, value)
			case stateIndex:
				// Entries are redundant with the content on a full
				// parse; the lazy parser is the consumer.
			case stateSection:
				curLines = append(curLines, line)
			default:
				return nil, fmt.Errorf("%w: content outside any section", ErrMalformed)
			}
		}
		if sawEOF {
			break
		}
	}
	if !sawEOF {
		return nil, fmt.Errorf("%w: missing EOF marker", ErrMalformed)
	}
	return doc, nil
}

// ParseFile reads and parses the file at path.
func ParseFile(path string, opts ...ReadOption) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, opts...)
}

// parseMagicLine validates the first line and extracts the version and
// stream flag.
func parseMagicLine(line string) (version string, stream bool, err error) {
	if !strings.HasPrefix(line, Magic+"/") {
		return "", false, ErrInvalidMagic
	}
	version = line[len(Magic)+1:]
	if strings.HasSuffix(version, StreamFlag) {
		version = version[:len(version)-len(StreamFlag)]
		stream = true
	}
	if !supportedVersion(version) {
		return "", false, fmt.Errorf("%w: %q", ErrUnsupportedVersion, version)
	}
	return version, stream, nil
}

// parseMetaLine splits a "key: value" line, validating the key and
// sanitizing the value.
func parseMetaLine(line string) (key, value string, err error) {
	key, value, ok := strings.Cut(line, ": ")
	if !ok {
		return "", "", fmt.Errorf("%w: line %q", ErrInvalidMeta, line)
	}
	if err := validateMetaKey(key); err != nil {
		return "", "", err
	}
	return key, stripControl(value), nil
}

// Sniff reports whether data begins with the PFM magic. It inspects at
// most the first 64 bytes and performs no parsing.
func Sniff(data []byte) bool {
	if len(data) > maxMagicScanBytes {
		data = data[:maxMagicScanBytes]
	}
	return strings.HasPrefix(string(data), Magic+"/")
}

// SniffFile is Sniff for a file on disk; it reads at most 64 bytes.
func SniffFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	buf := make([]byte, maxMagicScanBytes)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return false, err
	}
	return Sniff(buf[:n]), nil
}
