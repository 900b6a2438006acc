package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

func mustDecodeLogical(t *testing.T, b []byte) (time.Time, []byte) {
	t.Helper()
	exp, p, err := DecodeLogical(b)
	if err != nil {
		t.Fatalf("DecodeLogical error: %v", err)
	}
	return exp, p
}

func TestLogicalRTEmptyAndNonEmpty(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 123, time.UTC)
	cases := []struct {
		exp     time.Time
		payload []byte
	}{
		{base, nil},
		{base.Add(20 * time.Second), []byte(`{"id":42}`)},
		{time.Unix(0, 0), []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		enc := EncodeLogical(tc.exp, tc.payload)
		exp, p := mustDecodeLogical(t, enc)
		if !exp.Equal(tc.exp) {
			t.Fatalf("expiry mismatch: got %v want %v", exp, tc.exp)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", p, tc.payload)
		}
	}
}

func TestLogicalRejectsTrailingBytes(t *testing.T) {
	enc := EncodeLogical(time.Now(), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeLogical(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestLogicalCorruptHeadersAndLengths(t *testing.T) {
	enc := EncodeLogical(time.Now(), []byte("abc"))

	// bad magic
	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeLogical(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	// wrong version
	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := DecodeLogical(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	// wrong kind
	badKind := append([]byte(nil), enc...)
	badKind[5] = byte(KindPlain)
	if _, _, err := DecodeLogical(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// vlen is at offset 14..17 (4 magic +1 ver +1 kind +8 expiry)
	tooLong := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(tooLong[14:18], uint32(len("abc")+1))
	if _, _, err := DecodeLogical(tooLong); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}

	trunc := enc[:len(enc)-1]
	if _, _, err := DecodeLogical(trunc); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}

	if _, _, err := DecodeLogical(enc[:headerLen-1]); err == nil {
		t.Fatalf("expected error on short header")
	}
}

func TestLogicalZeroCopyPayload(t *testing.T) {
	enc := EncodeLogical(time.Now(), []byte("Z"))
	_, p := mustDecodeLogical(t, enc)
	if len(p) != 1 {
		t.Fatalf("unexpected payload len")
	}
	// mutate payload slice. should mutate underlying enc bytes (zero-copy)
	p[0] = 'Q'
	_, p2 := mustDecodeLogical(t, enc)
	if p2[0] != 'Q' {
		t.Fatalf("expected zero-copy slice into enc buffer")
	}
}

func TestHasMagic(t *testing.T) {
	if HasMagic(nil) || HasMagic([]byte("FGL")) || HasMagic([]byte(`{"id":1}`)) {
		t.Fatalf("unframed payloads must not look like frames")
	}
	if !HasMagic(EncodeLogical(time.Now(), nil)) || !HasMagic(EncodePlain([]byte("x"))) {
		t.Fatalf("encoded frames must carry magic")
	}
}

func TestPlainFrameKeepsMagicLikePayload(t *testing.T) {
	// a value that itself starts with the magic must survive framing
	payload := []byte("FGLX is a fine name")
	e, err := Decode(EncodePlain(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if e.Kind != KindPlain || !e.Expiry.IsZero() || !bytes.Equal(e.Payload, payload) {
		t.Fatalf("unexpected entry %+v", e)
	}

	// and a logical frame wrapping the same bytes keeps its kind
	exp := time.Unix(1_700_000_000, 0)
	e, err = Decode(EncodeLogical(exp, payload))
	if err != nil {
		t.Fatalf("Decode logical: %v", err)
	}
	if e.Kind != KindLogical || !e.Expiry.Equal(exp) || !bytes.Equal(e.Payload, payload) {
		t.Fatalf("unexpected logical entry %+v", e)
	}
}

func TestDecodeRejectsUnframedAndBadPlain(t *testing.T) {
	if _, err := Decode([]byte("FGLX is a fine name")); err == nil {
		t.Fatalf("unframed bytes starting with the magic must be corrupt")
	}
	if _, err := Decode([]byte(`{"id":1}`)); err == nil {
		t.Fatalf("unframed json must be corrupt")
	}

	enc := EncodePlain([]byte("abc"))
	if _, err := Decode(append(enc, 'x')); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
	if _, err := Decode(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated plain frame")
	}
	badKind := append([]byte(nil), enc...)
	badKind[5] = 9
	if _, err := Decode(badKind); err == nil {
		t.Fatalf("expected error on unknown kind")
	}
}
