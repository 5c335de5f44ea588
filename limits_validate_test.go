package pfm

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSectionNameBoundaries(t *testing.T) {
	if err := ValidateSectionName(strings.Repeat("a", 64)); err != nil {
		t.Fatalf("64-char name rejected: %v", err)
	}
	if err := ValidateSectionName(strings.Repeat("a", 65)); !errors.Is(err, ErrInvalidSection) {
		t.Fatalf("65-char name accepted: %v", err)
	}
	valid := []string{"content", "my-section", "section_2", "a", "0"}
	for _, name := range valid {
		if err := ValidateSectionName(name); err != nil {
			t.Errorf("%q rejected: %v", name, err)
		}
	}
	invalid := []string{"", "Content", "my section", "my.section", "meta", "index", "index:trailing"}
	for _, name := range invalid {
		if err := ValidateSectionName(name); !errors.Is(err, ErrInvalidSection) {
			t.Errorf("%q accepted", name)
		}
	}
}

func TestSectionCountBoundary(t *testing.T) {
	build := func(n int) *Document {
		doc := &Document{FormatVersion: VersionV1}
		doc.Sections = make([]Section, n)
		for i := range doc.Sections {
			doc.Sections[i] = Section{Name: fmt.Sprintf("s%d", i), Content: "x"}
		}
		return doc
	}
	if err := validateDocument(build(MaxSections), defaultLimits()); err != nil {
		t.Fatalf("%d sections rejected: %v", MaxSections, err)
	}
	if err := validateDocument(build(MaxSections+1), defaultLimits()); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("%d sections accepted: %v", MaxSections+1, err)
	}
}

func TestMetaCountBoundary(t *testing.T) {
	doc := &Document{FormatVersion: VersionV1}
	for i := 0; i < MaxMetaFields; i++ {
		doc.Meta.Set(fmt.Sprintf("k%d", i), "v")
	}
	if err := validateDocument(doc, defaultLimits()); err != nil {
		t.Fatalf("%d meta fields rejected: %v", MaxMetaFields, err)
	}
	doc.Meta.Set("one-more", "v")
	if err := validateDocument(doc, defaultLimits()); !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("%d meta fields accepted: %v", MaxMetaFields+1, err)
	}
}

func TestParseFileSizeLimit(t *testing.T) {
	doc := sampleDoc()
	data, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Parse(data, WithReadLimits(Limits{MaxFileSize: 16}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestSerializeFileSizeLimit(t *testing.T) {
	doc := sampleDoc()
	doc.Sections = []Section{{Name: "big", Content: strings.Repeat("x", 4096)}}
	_, err := Serialize(doc, WithWriteLimits(Limits{MaxFileSize: 1024}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestParseSectionCountLimit(t *testing.T) {
	doc := &Document{FormatVersion: VersionV1}
	for i := 0; i < 20; i++ {
		doc.Sections = append(doc.Sections, Section{Name: fmt.Sprintf("s%d", i), Content: "x"})
	}
	data, err := Serialize(doc)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Parse(data, WithReadLimits(Limits{MaxSections: 10}))
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
}

func TestValidateDocumentNil(t *testing.T) {
	if err := validateDocument(nil, defaultLimits()); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestValidateDocumentBadVersion(t *testing.T) {
	doc := sampleDoc()
	doc.FormatVersion = "9.9"
	if _, err := Serialize(doc); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestLimitsWithDefaults(t *testing.T) {
	l := Limits{}.withDefaults()
	if l != defaultLimits() {
		t.Fatalf("zero limits should fill every default, got %+v", l)
	}
	l = Limits{MaxFileSize: 42}.withDefaults()
	if l.MaxFileSize != 42 || l.MaxSections != MaxSections {
		t.Fatalf("partial limits mishandled: %+v", l)
	}
}
