package codec

// Bytes passes []byte values through unchanged.
// A nil or empty slice collides with the null marker; see the package doc.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores Go strings as raw UTF-8 (unvalidated).
// The empty string collides with the null marker; see the package doc.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
