package pfm

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Handle provides random access to one document's sections through its
// index, without materializing any content up front.
type Handle struct {
	data          []byte
	formatVersion string
	stream        bool
	meta          Meta
	entries       []IndexEntry
}

// ParseLazy parses only the magic line, the meta block and the index.
//
// Inline indexes are read in place. Stream documents carry their index
// at the tail; it is located by scanning backward from the end of the
// buffer. Forward search would be fooled by index-marker lookalikes
// inside content that failed to escape, so the backward scan is a
// deliberate defense, not an optimization. Every entry's bounds are
// validated against the buffer before any section can be read.
func ParseLazy(data []byte, opts ...ReadOption) (*Handle, error) {
	cfg := newReadConfig(opts)
	if int64(len(data)) > cfg.limits.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrLimitExceeded, len(data), cfg.limits.MaxFileSize)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrMalformed)
	}

	h := &Handle{data: data}

	// Header walk: magic line, meta block, and an inline index if one
	// is present. Stops at the first content section.
	lines := strings.Split(string(data), "\n")
	version, stream, err := parseMagicLine(lines[0])
	if err != nil {
		return nil, err
	}
	h.formatVersion = version
	h.stream = stream

	state := 0 // 0 top, 1 meta, 2 inline index
	sawInline := false
walk:
	for _, line := range lines[1:] {
		switch {
		case line == metaHeader:
			state = 1
		case line == indexHeader:
			state = 2
			sawInline = true
		case strings.HasPrefix(line, SectionPrefix) || strings.HasPrefix(line, EOFMarker):
			break walk
		default:
			switch state {
			case 1:
				key, value, err := parseMetaLine(line)
				if err != nil {
					return nil, err
				}
				if h.meta.Len()+1 > cfg.limits.MaxMetaFields {
					return nil, fmt.Errorf("%w: more than %d meta fields", ErrLimitExceeded, cfg.limits.MaxMetaFields)
				}
				h.meta.Set(key, value)
			case 2:
				e, err := parseIndexEntry(line)
				if err != nil {
					return nil, err
				}
				h.entries = append(h.entries, e)
			default:
				return nil, fmt.Errorf("%w: content outside any section", ErrMalformed)
			}
		}
	}

	if !sawInline {
		if !stream {
			return nil, fmt.Errorf("%w: document has no inline index", ErrNoIndex)
		}
		entries, err := parseTrailingIndex(data)
		if err != nil {
			return nil, err
		}
		h.entries = entries
	}

	if len(h.entries) > cfg.limits.MaxSections {
		return nil, fmt.Errorf("%w: more than %d index entries", ErrLimitExceeded, cfg.limits.MaxSections)
	}
	for _, e := range h.entries {
		if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > int64(len(data)) {
			return nil, fmt.Errorf("%w: index entry %q out of bounds", ErrMalformed, e.Name)
		}
	}
	return h, nil
}

// OpenFile reads path and returns a lazy handle on its contents.
func OpenFile(path string, opts ...ReadOption) (*Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseLazy(data, opts...)
}

// locateTrailingIndex returns the byte offset of the trailing index
// header, searching backward from the end of the buffer, or -1.
func locateTrailingIndex(data []byte) int {
	marker := []byte("\n" + trailingIndexHeader + "\n")
	i := bytes.LastIndex(data, marker)
	if i < 0 {
		return -1
	}
	return i + 1
}

// parseTrailingIndex locates and parses a stream document's trailing
// index block.
func parseTrailingIndex(data []byte) ([]IndexEntry, error) {
	start := locateTrailingIndex(data)
	if start < 0 {
		return nil, fmt.Errorf("%w: stream document has no trailing index", ErrNoIndex)
	}
	block := string(data[start:])
	var entries []IndexEntry
	for _, line := range strings.Split(block, "\n")[1:] {
		if line == "" || strings.HasPrefix(line, EOFMarker) {
			break
		}
		e, err := parseIndexEntry(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// parseIndexEntry parses one "name offset length" line.
func parseIndexEntry(line string) (IndexEntry, error) {
	parts := strings.Fields(line)
	if len(parts) != 3 {
		return IndexEntry{}, fmt.Errorf("%w: index line %q", ErrMalformed, line)
	}
	if err := ValidateSectionName(parts[0]); err != nil {
		return IndexEntry{}, err
	}
	offset, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("%w: index offset %q", ErrMalformed, parts[1])
	}
	length, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return IndexEntry{}, fmt.Errorf("%w: index length %q", ErrMalformed, parts[2])
	}
	return IndexEntry{Name: parts[0], Offset: offset, Length: length}, nil
}

// FormatVersion returns the parsed document's format version.
func (h *Handle) FormatVersion() string { return h.formatVersion }

// Stream reports whether the document uses the stream layout.
func (h *Handle) Stream() bool { return h.stream }

// Meta returns the parsed metadata.
func (h *Handle) Meta() Meta { return h.meta }

// Entries returns the index entries in document order.
func (h *Handle) Entries() []IndexEntry { return h.entries }

// SectionNames returns the indexed names in document order, without
// de-duplication.
func (h *Handle) SectionNames() []string {
	names := make([]string, len(h.entries))
	for i, e := range h.entries {
		names[i] = e.Name
	}
	return names
}

// ReadSection returns the unescaped content of the first section with
// the given name, touching only that section's bytes.
func (h *Handle) ReadSection(name string) (string, error) {
	for _, e := range h.entries {
		if e.Name != name {
			continue
		}
		body := string(h.data[e.Offset : e.Offset+e.Length])
		body = strings.TrimSuffix(body, "\n")
		return unescapeBody(body), nil
	}
	return "", fmt.Errorf("%w: no section %q in index", ErrInvalidSection, name)
}

// Document upgrades the handle to a fully parsed document.
func (h *Handle) Document(opts ...ReadOption) (*Document, error) {
	return Parse(h.data, opts...)
}
