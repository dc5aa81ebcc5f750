// Package hash provides the CRC32-Castagnoli checksums used for record
// integrity.
//
// The S3 backend sends CRC32CBase64 with every whole-object put so the service
// rejects corrupted uploads, and archive streams carry a CRC32C per record so
// imports can detect damaged lines.
//
//	checksum := hash.CRC32C(data)
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
