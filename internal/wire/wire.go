// Package wire frames cache entries.
//
// Every present entry carries a header naming its kind, so a payload that
// happens to start with the magic bytes can never be mistaken for a frame.
// A plain entry is written by the pass-through and mutex strategies and
// expires through the provider TTL. A logical entry is stored without a
// physical TTL; staleness is decided by the expiry carried in the frame.
// The null marker is the empty value and is never framed.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

type Kind byte

const (
	KindPlain   Kind = 0
	KindLogical Kind = 1
)

const (
	version byte = 1

	plainHeaderLen = 4 + 1 + 1 + 4
	headerLen      = 4 + 1 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("flashguard: corrupt entry")
	magic4     = [...]byte{'F', 'G', 'L', 'X'}
)

// Entry is a decoded frame. Expiry is zero for plain entries.
type Entry struct {
	Kind    Kind
	Expiry  time.Time
	Payload []byte
}

// HasMagic reports whether b starts like a frame.
func HasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// EncodePlain frames payload without a logical expiry.
//
// Layout: magic(4) | ver(1) | kind(0=plain) | vlen(u32 be) | payload(vlen)
func EncodePlain(payload []byte) []byte {
	out := make([]byte, plainHeaderLen, plainHeaderLen+len(payload))
	copy(out, magic4[:])
	out[4] = version
	out[5] = byte(KindPlain)
	binary.BigEndian.PutUint32(out[6:10], uint32(len(payload)))
	return append(out, payload...)
}

// EncodeLogical frames payload with its logical expiry.
//
// Layout: magic(4) | ver(1) | kind(1=logical) | expiry unix nanos(i64 be) | vlen(u32 be) | payload(vlen)
func EncodeLogical(expiry time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(KindLogical))

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(expiry.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode parses either kind of frame. The payload is a zero-copy view.
// Unframed bytes, unknown kinds and trailing bytes are ErrCorrupt.
func Decode(b []byte) (Entry, error) {
	if len(b) < plainHeaderLen || !HasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}
	switch Kind(b[5]) {
	case KindPlain:
		p, err := payloadAt(b, 6)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Kind: KindPlain, Payload: p}, nil
	case KindLogical:
		exp, p, err := DecodeLogical(b)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Kind: KindLogical, Expiry: exp, Payload: p}, nil
	default:
		return Entry{}, ErrCorrupt
	}
}

// DecodeLogical returns the expiry and a zero-copy view of the payload.
// Trailing bytes after the payload are rejected.
func DecodeLogical(b []byte) (expiry time.Time, payload []byte, err error) {
	if len(b) < headerLen || !HasMagic(b) || b[4] != version || Kind(b[5]) != KindLogical {
		return time.Time{}, nil, ErrCorrupt
	}
	nanos := int64(binary.BigEndian.Uint64(b[6:14]))
	p, err := payloadAt(b, 14)
	if err != nil {
		return time.Time{}, nil, err
	}
	return time.Unix(0, nanos), p, nil
}

// payloadAt reads vlen at off and checks it covers the rest of b exactly.
func payloadAt(b []byte, off int) ([]byte, error) {
	if len(b) < off+4 {
		return nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return nil, ErrCorrupt
	}
	return b[off : off+vlen], nil
}
