package pfm

// Grammar ceilings. Section and meta counts are also runtime
// configurable through Limits; the name length is part of the grammar
// and fixed.
const (
	MaxSections       = 10_000
	MaxMetaFields     = 100
	MaxSectionNameLen = 64
)

// Limits are the numeric ceilings enforced by both parser and writer.
// A zero field means "use the default".
type Limits struct {
	MaxFileSize     int64 // total serialized bytes
	MaxSections     int
	MaxMetaFields   int
	MaxUnpackedSize int64 // inflated bytes allowed by Unpack
}

func defaultLimits() Limits {
	return Limits{
		// The upstream format nominally allowed 500 MB files; that is
		// far beyond the intended payloads, so the default is stricter.
		// Callers with legacy files can raise it via WithReadLimits.
		MaxFileSize:     64 << 20, // 64 MiB
		MaxSections:     MaxSections,
		MaxMetaFields:   MaxMetaFields,
		MaxUnpackedSize: 64 << 20,
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxFileSize == 0 {
		l.MaxFileSize = d.MaxFileSize
	}
	if l.MaxSections == 0 {
		l.MaxSections = d.MaxSections
	}
	if l.MaxMetaFields == 0 {
		l.MaxMetaFields = d.MaxMetaFields
	}
	if l.MaxUnpackedSize == 0 {
		l.MaxUnpackedSize = d.MaxUnpackedSize
	}
	return l
}
