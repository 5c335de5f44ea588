package pfm

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// indexAttempts bounds the fixed-point loop resolving inline index
// offsets. The writer fails rather than loop past it.
const indexAttempts = 3

// Serialize renders doc to bytes. The input document is never
// modified, even while index offsets are being resolved.
//
// Non-stream documents carry an inline index between the meta block
// and the content. The index's own encoded size shifts every offset it
// describes, so the offsets are resolved iteratively: render a
// candidate index, re-measure, and retry if any offset changed width.
// Stream documents carry a trailing index instead, which needs no
// iteration, plus an EOF marker holding the index's byte offset.
func Serialize(doc *Document, opts ...WriteOption) ([]byte, error) {
	cfg := newWriteConfig(opts)
	if err := validateDocument(doc, cfg.limits); err != nil {
		return nil, err
	}

	head := renderHead(doc)
	bodies := make([]string, len(doc.Sections))
	headers := make([]string, len(doc.Sections))
	for i, s := range doc.Sections {
		headers[i] = SectionPrefix + s.Name + "\n"
		bodies[i] = escapeBody(s.Content) + "\n"
	}

	var b strings.Builder
	if doc.Stream {
		b.WriteString(head)
		entries := make([]IndexEntry, len(doc.Sections))
		for i := range doc.Sections {
			b.WriteString(headers[i])
			entries[i] = IndexEntry{
				Name:   doc.Sections[i].Name,
				Offset: int64(b.Len()),
				Length: int64(len(bodies[i])),
			}
			b.WriteString(bodies[i])
		}
		indexOffset := b.Len()
		b.WriteString(renderIndex(trailingIndexHeader, entries))
		b.WriteString(EOFMarker + ":" + strconv.Itoa(indexOffset) + "\n")
	} else {
		indexBlock, err := convergeInlineIndex(head, headers, bodies, doc.Sections)
		if err != nil {
			return nil, err
		}
		b.WriteString(head)
		b.WriteString(indexBlock)
		for i := range doc.Sections {
			b.WriteString(headers[i])
			b.WriteString(bodies[i])
		}
		b.WriteString(EOFMarker + "\n")
	}

	out := []byte(b.String())
	if int64(len(out)) > cfg.limits.MaxFileSize {
		return nil, fmt.Errorf("%w: serialized size %d (max %d)", ErrLimitExceeded, len(out), cfg.limits.MaxFileSize)
	}
	return out, nil
}

// WriteFile serializes doc to path. The file mode is set explicitly
// (default 0o600) rather than inherited from the process umask.
func WriteFile(path string, doc *Document, opts ...WriteOption) error {
	cfg := newWriteConfig(opts)
	data, err := Serialize(doc, opts...)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, cfg.fileMode)
	if err != nil {
		return err
	}
	if err := f.Chmod(cfg.fileMode); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// renderHead renders the magic line and meta block.
func renderHead(doc *Document) string {
	var b strings.Builder
	b.WriteString(Magic + "/" + doc.FormatVersion)
	if doc.Stream {
		b.WriteString(StreamFlag)
	}
	b.WriteByte('\n')
	fields := doc.Meta.fields(false)
	if len(fields) > 0 {
		b.WriteString(metaHeader + "\n")
		for _, f := range fields {
			b.WriteString(f.Key + ": " + f.Value + "\n")
		}
	}
	return b.String()
}

// renderIndex renders an index block: header plus one
// "name offset length" line per entry.
func renderIndex(header string, entries []IndexEntry) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	for _, e := range entries {
		b.WriteString(e.Name)
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(e.Offset, 10))
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(e.Length, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// convergeInlineIndex finds a fixed point for the inline index: the
// block sits before the content it describes, so growing an offset's
// digit count grows the block and shifts every offset after it.
func convergeInlineIndex(head string, headers, bodies []string, sections []Section) (string, error) {
	if len(sections) == 0 {
		return renderIndex(indexHeader, nil), nil
	}
	indexSize := 0
	for attempt := 0; attempt < indexAttempts; attempt++ {
		entries := make([]IndexEntry, len(sections))
		pos := len(head) + indexSize
		for i := range sections {
			pos += len(headers[i])
			entries[i] = IndexEntry{
				Name:   sections[i].Name,
				Offset: int64(pos),
				Length: int64(len(bodies[i])),
			}
			pos += len(bodies[i])
		}
		block := renderIndex(indexHeader, entries)
		if len(block) == indexSize {
			return block, nil
		}
		indexSize = len(block)
	}
	return "", ErrIndexUnstable
}
