// Package codec turns cached entities into bytes and back.
//
// The shield reserves the zero-length payload as its null marker, so a codec
// used with flashguard must never encode a present value to zero bytes.
// Encodings that can (String with "", Bytes with nil) are rejected by the
// shield at write time with flashguard.ErrEmptyEncoding.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
