// Package pfm implements the PFM line-oriented document container.
//
// A PFM file persists named text sections plus key/value metadata in a
// self-describing, human-readable layout with strong integrity
// guarantees and crash-safe incremental writing.
//
// # File Format Overview
//
// A PFM file consists of:
//   - A magic line identifying the format and version: "#!PFM/1.0",
//     with a ":STREAM" suffix for incrementally written files
//   - A "#@meta" block of "key: value" metadata lines
//   - Content sections, each a "#@name" header followed by the body
//   - An index of byte offsets (inline after the meta block, or
//     trailing after the content in stream files)
//   - An "#!END" marker, carrying the trailing index's offset in
//     stream files
//
// Content lines that would collide with the structural markers are
// protected by a reversible escape codec, so sections can carry
// arbitrary text, including PFM files themselves.
//
// # Basic Usage
//
// To create and write a document:
//
//	doc := pfm.New("my-agent", "my-model")
//	doc.AddSection("content", "the generated output")
//	pfm.StampChecksum(doc)
//	err := pfm.WriteFile("out.pfm", doc)
//
// To read one back:
//
//	doc, err := pfm.ParseFile("out.pfm")
//
// For random access without parsing the whole file, use the indexed
// reader:
//
//	h, err := pfm.OpenFile("out.pfm")
//	content, err := h.ReadSection("content")
//
// Incremental writing with crash recovery:
//
//	w, err := pfm.CreateStream("live.pfm", pfm.Meta{Agent: "my-agent"})
//	err = w.Append("chunk_0", data) // durable once Append returns
//	err = w.Close()
//	// after an interrupted session:
//	doc, err := pfm.Recover("live.pfm")
//
// # Integrity
//
// Three independent mechanisms cover different scopes: Checksum hashes
// section contents only; Sign authenticates the whole canonical
// document with a keyed MAC; Encrypt seals the serialized bytes with
// authenticated encryption under a passphrase-derived key. Validation
// always fails closed.
//
// # Security Considerations
//
// The package enforces configurable [Limits] on file size, section
// count and metadata count during both parsing and writing, and Unpack
// refuses decompression bombs by checking the stated uncompressed
// length before inflating.
package pfm
