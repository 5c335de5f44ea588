package pfm

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// StreamWriter writes a stream-mode document incrementally. Every
// Append is durably flushed before it returns, so a crash loses at
// most the section in flight. Close writes the trailing index and EOF
// marker, producing the same layout as Serialize for a stream
// document.
type StreamWriter struct {
	path    string
	f       *os.File
	lk      *flock.Flock
	limits  Limits
	off     int64
	entries []IndexEntry
	closed  bool
}

// CreateStream creates (or truncates) path and writes the stream magic
// line and meta block. The file is created with an explicit mode
// (default 0o600) and held under an exclusive advisory lock for the
// whole session. A lock already held elsewhere fails with ErrLocked;
// it is never retried internally.
func CreateStream(path string, meta Meta, opts ...WriteOption) (*StreamWriter, error) {
	cfg := newWriteConfig(opts)
	head := &Document{FormatVersion: VersionV1, Stream: true, Meta: meta}
	if err := validateDocument(head, cfg.limits); err != nil {
		return nil, err
	}

	lk := flock.New(path + ".lock")
	locked, err := lk.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, cfg.fileMode)
	if err != nil {
		lk.Unlock()
		return nil, err
	}
	if err := f.Chmod(cfg.fileMode); err != nil {
		f.Close()
		lk.Unlock()
		return nil, err
	}

	w := &StreamWriter{path: path, f: f, lk: lk, limits: cfg.limits}
	if err := w.write(renderHead(head)); err != nil {
		f.Close()
		lk.Unlock()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		lk.Unlock()
		return nil, err
	}
	return w, nil
}

func (w *StreamWriter) write(s string) error {
	n, err := io.WriteString(w.f, s)
	w.off += int64(n)
	return err
}

// Append validates, writes and syncs one section. The section is on
// disk when Append returns.
func (w *StreamWriter) Append(name, content string) error {
	if w.closed {
		return ErrWriterClosed
	}
	if err := ValidateSectionName(name); err != nil {
		return err
	}
	if len(w.entries)+1 > w.limits.MaxSections {
		return fmt.Errorf("%w: more than %d sections", ErrLimitExceeded, w.limits.MaxSections)
	}
	header := SectionPrefix + name + "\n"
	body := escapeBody(content) + "\n"
	if w.off+int64(len(header)+len(body)) > w.limits.MaxFileSize {
		return fmt.Errorf("%w: file would exceed %d bytes", ErrLimitExceeded, w.limits.MaxFileSize)
	}
	if err := w.write(header); err != nil {
		return err
	}
	entry := IndexEntry{Name: name, Offset: w.off, Length: int64(len(body))}
	if err := w.write(body); err != nil {
		return err
	}
	if err := w.f.Sync(); err != nil {
		return err
	}
	w.entries = append(w.entries, entry)
	return nil
}

// SectionsWritten returns the number of durably appended sections.
func (w *StreamWriter) SectionsWritten() int {
	return len(w.entries)
}

// Close writes the trailing index and the EOF marker carrying its
// offset, syncs, and releases the lock.
func (w *StreamWriter) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true
	indexOffset := w.off
	err := w.write(renderIndex(trailingIndexHeader, w.entries))
	if err == nil {
		err = w.write(EOFMarker + ":" + strconv.FormatInt(indexOffset, 10) + "\n")
	}
	if err == nil {
		err = w.f.Sync()
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	if uerr := w.lk.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Recover rebuilds an interrupted stream file into canonical finished
// form and returns the recovered document.
//
// The procedure: take the exclusive lock (failure is fatal, not
// retried); copy the file byte for byte to path+".bak" preserving its
// mode; scan forward counting only unescaped section headers; locate
// any trailing index by backward search; discard a dangling trailing
// section rather than guess its boundary; rewrite the file with only
// the confirmed sections.
//
// A section is confirmed when it is followed by another header, the
// trailing index, or the EOF marker. The final section of a truncated
// file is also confirmed when the file still ends in a newline, since
// every completed Append leaves one. A crash that stops mid-line costs
// exactly the section in flight; the backup keeps its bytes.
func Recover(path string, opts ...ReadOption) (*Document, error) {
	cfg := newReadConfig(opts)

	lk := flock.New(path + ".lock")
	locked, err := lk.TryLock()
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	defer lk.Unlock()

	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > cfg.limits.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrLimitExceeded, len(data), cfg.limits.MaxFileSize)
	}

	if err := writeBackup(path+".bak", data, st.Mode()); err != nil {
		return nil, err
	}

	doc, err := scanRecovered(data, cfg.limits)
	if err != nil {
		return nil, err
	}

	out, err := Serialize(doc, WithWriteLimits(cfg.limits))
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, st.Mode())
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(out); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return doc, nil
}

func writeBackup(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// scanRecovered reconstructs the fully written sections of a possibly
// truncated stream file.
func scanRecovered(data []byte, limits Limits) (*Document, error) {
	text := string(data)
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		nl = len(text)
	}
	version, stream, err := parseMagicLine(text[:nl])
	if err != nil {
		return nil, err
	}
	if !stream {
		return nil, fmt.Errorf("%w: not a stream document", ErrMalformed)
	}
	doc := &Document{FormatVersion: version, Stream: true}

	// Normalize to whole lines. A file not ending in a newline was
	// truncated mid-write: the partial tail line is set aside, and if
	// it is a body fragment the section it belongs to is the one in
	// flight and gets dropped below. A partial line that looks like a
	// header means the crash hit the next section's header, so the
	// sections already scanned are all complete.
	terminated := strings.HasSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	dropTail := false
	if terminated {
		lines = lines[:len(lines)-1]
	} else {
		partial := lines[len(lines)-1]
		lines = lines[:len(lines)-1]
		if !strings.HasPrefix(partial, SectionPrefix) && !strings.HasPrefix(partial, EOFMarker) {
			dropTail = true
		}
	}
	const (
		stateTop = iota
		stateMeta
		stateSection
	)
	state := stateTop
	var curName string
	var curLines []string
	complete := false // current section followed by a structural line

	flush := func() error {
		if state != stateSection {
			return nil
		}
		if len(doc.Sections)+1 > limits.MaxSections {
			return fmt.Errorf("%w: more than %d sections", ErrLimitExceeded, limits.MaxSections)
		}
		doc.Sections = append(doc.Sections, Section{
			Name:    curName,
			Content: unescapeBody(strings.Join(curLines, "\n")),
		})
		return nil
	}

scan:
	for _, line := range lines[1:] {
		switch {
		case line == trailingIndexHeader || strings.HasPrefix(line, EOFMarker):
			complete = true
			break scan
		case line == metaHeader:
			state = stateMeta
		case strings.HasPrefix(line, SectionPrefix):
			// Only unescaped headers count; escaped lookalikes begin
			// with a backslash and never reach this case.
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
				key, value, merr := parseMetaLine(line)
				if merr != nil {
					return nil, merr
				}
				if doc.Meta.Len()+1 > limits.MaxMetaFields {
					return nil, fmt.Errorf("%w: more than %d meta fields", ErrLimitExceeded, limits.MaxMetaFields)
				}
				doc.Meta.Set(key, value)
			case stateSection:
				curLines = append(curLines, line)
			default:
				return nil, fmt.Errorf("%w: content outside any section", ErrMalformed)
			}
		}
	}

	if complete || !dropTail {
		if err := flush(); err != nil {
			return nil, err
		}
	}
	// A dropped tail section is not guessed at; the backup preserves
	// its bytes.
	return doc, nil
}
