package pfm

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// Checksum returns the hex SHA-256 over the ordered concatenation of
// section contents. Metadata and section names are deliberately
// outside its scope; callers needing full-document integrity want the
// signature instead.
func Checksum(doc *Document) string {
	h := sha256.New()
	for _, s := range doc.Sections {
		h.Write([]byte(s.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// StampChecksum computes the checksum and stores it in the metadata.
func StampChecksum(doc *Document) string {
	sum := Checksum(doc)
	doc.Meta.Checksum = sum
	return sum
}

// VerifyChecksum recomputes the content checksum and compares it with
// the stored one. A document without a stored checksum is unverified
// and fails closed.
func VerifyChecksum(doc *Document) error {
	stored := doc.Meta.Checksum
	if stored == "" {
		return fmt.Errorf("%w: no checksum stored", ErrChecksumMismatch)
	}
	computed := Checksum(doc)
	if subtle.ConstantTimeCompare([]byte(stored), []byte(computed)) != 1 {
		return ErrChecksumMismatch
	}
	return nil
}

// Fingerprint derives a short stable identifier for a document from
// its id, checksum and creation time. Useful for deduplication.
func Fingerprint(doc *Document) string {
	material := doc.Meta.ID + ":" + doc.Meta.Checksum + ":" + doc.Meta.Created
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])[:16]
}
