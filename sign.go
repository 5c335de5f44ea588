package pfm

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// SigAlgoHMACSHA256 is the value stamped into the sig_algo meta field.
const SigAlgoHMACSHA256 = "hmac-sha256"

// signingMessage builds the canonical bytes a signature covers: the
// format version, the meta fields sorted by key, and the sections in
// document order, every element length-prefixed so delimiter
// characters inside values cannot create ambiguity.
//
// Signature-related meta fields are excluded from the view, which
// makes signing and verification see the same message without ever
// mutating the document.
func signingMessage(doc *Document) []byte {
	fields := doc.Meta.fields(true)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })

	var msg []byte
	appendStr := func(s string) {
		var lp [4]byte
		binary.BigEndian.PutUint32(lp[:], uint32(len(s)))
		msg = append(msg, lp[:]...)
		msg = append(msg, s...)
	}
	appendCount := func(n int) {
		var lp [4]byte
		binary.BigEndian.PutUint32(lp[:], uint32(n))
		msg = append(msg, lp[:]...)
	}

	appendStr(doc.FormatVersion)
	appendCount(len(fields))
	for _, f := range fields {
		appendStr(f.Key)
		appendStr(f.Value)
	}
	appendCount(len(doc.Sections))
	for _, s := range doc.Sections {
		appendStr(s.Name)
		appendStr(s.Content)
	}
	return msg
}

func computeTag(doc *Document, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(signingMessage(doc))
	return hex.EncodeToString(mac.Sum(nil))
}

// Sign computes the document's HMAC-SHA256 tag, stamps it into the
// signature and sig_algo meta fields, and returns it.
func Sign(doc *Document, key []byte) string {
	tag := computeTag(doc, key)
	doc.Meta.Sig = tag
	doc.Meta.SigAlgo = SigAlgoHMACSHA256
	return tag
}

// Verify reports whether tag is a valid signature for doc under key.
// The expected tag is rebuilt from the same excluding view Sign uses,
// so a document carrying its own signature verifies without being
// modified. Comparison is constant time.
func Verify(doc *Document, tag string, key []byte) bool {
	if tag == "" {
		return false
	}
	got, err := hex.DecodeString(tag)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(computeTag(doc, key))
	if err != nil {
		return false
	}
	return hmac.Equal(got, want)
}

// VerifySigned verifies the signature stored in the document's own
// metadata. An unsigned document never verifies.
func VerifySigned(doc *Document, key []byte) bool {
	return Verify(doc, doc.Meta.Sig, key)
}
