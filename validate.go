package pfm

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sectionNameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

	// Names the grammar claims for itself. "index:trailing" is already
	// excluded by the charset but is listed for completeness.
	reservedNames = map[string]struct{}{
		"meta":           {},
		"index":          {},
		"index:trailing": {},
	}
)

// ValidateSectionName checks a section name against the grammar:
// [a-z0-9_-], 1 to MaxSectionNameLen characters, not reserved.
func ValidateSectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty section name", ErrInvalidSection)
	}
	if len(name) > MaxSectionNameLen {
		return fmt.Errorf("%w: section name %q exceeds %d characters", ErrInvalidSection, name, MaxSectionNameLen)
	}
	if !sectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: section name %q has invalid characters", ErrInvalidSection, name)
	}
	if _, ok := reservedNames[name]; ok {
		return fmt.Errorf("%w: section name %q is reserved", ErrInvalidSection, name)
	}
	return nil
}

// validateMetaKey checks a metadata key; keys share the section-name
// charset but well-known keys are naturally allowed.
func validateMetaKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidMeta)
	}
	if len(key) > MaxSectionNameLen {
		return fmt.Errorf("%w: key %q too long", ErrInvalidMeta, key)
	}
	if !sectionNameRe.MatchString(key) {
		return fmt.Errorf("%w: key %q has invalid characters", ErrInvalidMeta, key)
	}
	return nil
}

// stripControl removes control characters (0x00-0x1F, 0x7F) from a
// metadata value. Values are otherwise stored verbatim.
func stripControl(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7F
}

// validateDocument enforces every invariant the writer relies on. It
// is pure: the document is never modified.
func validateDocument(d *Document, limits Limits) error {
	if d == nil {
		return fmt.Errorf("%w: document is nil", ErrMalformed)
	}
	if !supportedVersion(d.FormatVersion) {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, d.FormatVersion)
	}
	if len(d.Sections) > limits.MaxSections {
		return fmt.Errorf("%w: %d sections (max %d)", ErrLimitExceeded, len(d.Sections), limits.MaxSections)
	}
	if d.Meta.Len() > limits.MaxMetaFields {
		return fmt.Errorf("%w: %d meta fields (max %d)", ErrLimitExceeded, d.Meta.Len(), limits.MaxMetaFields)
	}
	for _, f := range d.Meta.fields(false) {
		if err := validateMetaKey(f.Key); err != nil {
			return err
		}
		if strings.ContainsFunc(f.Value, isControl) {
			return fmt.Errorf("%w: value for %q contains control characters", ErrInvalidMeta, f.Key)
		}
	}
	for i := range d.Sections {
		if err := ValidateSectionName(d.Sections[i].Name); err != nil {
			return fmt.Errorf("section %d: %w", i, err)
		}
	}
	return nil
}
