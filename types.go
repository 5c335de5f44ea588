package pfm

import (
	"time"

	"github.com/google/uuid"
)

// Format markers. The file is line oriented: #! introduces file
// boundaries (magic line, EOF marker) and #@ introduces section
// headers. Reader and writer both use these constants; never inline
// the literals elsewhere.
const (
	Magic         = "#!PFM"
	EOFMarker     = "#!END"
	SectionPrefix = "#@"

	// StreamFlag is appended to the magic line of incrementally
	// written files, e.g. "#!PFM/1.0:STREAM".
	StreamFlag = ":STREAM"

	metaHeader          = SectionPrefix + "meta"
	indexHeader         = SectionPrefix + "index"
	trailingIndexHeader = SectionPrefix + "index:trailing"
)

// VersionV1 is the only supported format version. Unknown versions are
// rejected everywhere a version is read; there is no lenient path.
const VersionV1 = "1.0"

// maxMagicScanBytes bounds how much of a file Sniff reads.
const maxMagicScanBytes = 64

// supportedVersion reports whether v belongs to the supported set.
func supportedVersion(v string) bool {
	return v == VersionV1
}

// Section is a named block of text within a document. Content is held
// unescaped in memory; escaping is purely an on-wire concern.
type Section struct {
	Name    string
	Content string
}

// IndexEntry maps a section to its serialized bytes: Offset is the
// position of the first byte after the section's header line, Length
// includes the body's trailing newline.
type IndexEntry struct {
	Name   string
	Offset int64
	Length int64
}

// MetaField is a single custom metadata field.
type MetaField struct {
	Key   string
	Value string
}

// Meta holds document metadata. Well-known fields have their own
// slots; everything else goes to Custom in insertion order.
type Meta struct {
	ID       string
	Agent    string
	Model    string
	Created  string
	Checksum string
	Parent   string
	Tags     string
	Sig      string
	SigAlgo  string
	Version  string

	Custom []MetaField
}

// wellKnownKeys is the emission order of the named Meta slots.
var wellKnownKeys = []string{
	"id", "agent", "model", "created", "checksum",
	"parent", "tags", "signature", "sig_algo", "version",
}

func (m *Meta) wellKnown(key string) (*string, bool) {
	switch key {
	case "id":
		return &m.ID, true
	case "agent":
		return &m.Agent, true
	case "model":
		return &m.Model, true
	case "created":
		return &m.Created, true
	case "checksum":
		return &m.Checksum, true
	case "parent":
		return &m.Parent, true
	case "tags":
		return &m.Tags, true
	case "signature":
		return &m.Sig, true
	case "sig_algo":
		return &m.SigAlgo, true
	case "version":
		return &m.Version, true
	}
	return nil, false
}

// Set stores a metadata field, routing well-known keys to their slots
// and anything else to Custom. Setting a custom key twice overwrites
// in place. Values have control characters stripped.
func (m *Meta) Set(key, value string) {
	value = stripControl(value)
	if slot, ok := m.wellKnown(key); ok {
		*slot = value
		return
	}
	for i := range m.Custom {
		if m.Custom[i].Key == key {
			m.Custom[i].Value = value
			return
		}
	}
	m.Custom = append(m.Custom, MetaField{Key: key, Value: value})
}

// Get returns the value for key, well-known or custom.
func (m *Meta) Get(key string) (string, bool) {
	if slot, ok := m.wellKnown(key); ok {
		return *slot, *slot != ""
	}
	for i := range m.Custom {
		if m.Custom[i].Key == key {
			return m.Custom[i].Value, true
		}
	}
	return "", false
}

// fields returns all populated metadata as ordered key/value pairs:
// well-known slots first in canonical order, then custom fields in
// insertion order. excludeSig drops signature and sig_algo, giving the
// read-only view the signing message is built from.
func (m *Meta) fields(excludeSig bool) []MetaField {
	out := make([]MetaField, 0, len(wellKnownKeys)+len(m.Custom))
	for _, key := range wellKnownKeys {
		if excludeSig && (key == "signature" || key == "sig_algo") {
			continue
		}
		slot, _ := m.wellKnown(key)
		if *slot != "" {
			out = append(out, MetaField{Key: key, Value: *slot})
		}
	}
	out = append(out, m.Custom...)
	return out
}

// Len counts populated metadata fields.
func (m *Meta) Len() int {
	return len(m.fields(false))
}

// Document is the in-memory representation of a PFM file.
//
// Stream selects the incremental layout: a trailing index after the
// content and an EOF marker carrying the index offset. Section order
// is significant and preserved end-to-end.
type Document struct {
	FormatVersion string
	Stream        bool
	Meta          Meta
	Sections      []Section
}

// New returns a document stamped with a fresh UUID id, an RFC 3339
// creation time, and the current format version.
func New(agent, model string) *Document {
	return &Document{
		FormatVersion: VersionV1,
		Meta: Meta{
			ID:      uuid.NewString(),
			Agent:   agent,
			Model:   model,
			Created: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// AddSection appends a section after validating its name.
func (d *Document) AddSection(name, content string) error {
	if err := ValidateSectionName(name); err != nil {
		return err
	}
	d.Sections = append(d.Sections, Section{Name: name, Content: content})
	return nil
}

// SectionByName returns the first section with the given name. The
// grammar does not require unique names; when duplicates exist the
// first in document order wins, matching Handle.ReadSection.
func (d *Document) SectionByName(name string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}
