package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type row struct {
	ID        int64     `json:"id" msgpack:"id" cbor:"id"`
	Name      string    `json:"name" msgpack:"name" cbor:"name"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at" cbor:"updated_at"`
}

func TestStructCodecsKeepTimeAndFields(t *testing.T) {
	in := row{ID: 7, Name: "noodles", UpdatedAt: time.Date(2026, 5, 1, 9, 30, 0, 123456789, time.UTC)}
	codecs := map[string]Codec[row]{
		"json":    JSON[row]{},
		"msgpack": Msgpack[row]{},
		"cbor":    MustCBOR[row](false),
	}
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			b, err := c.Encode(in)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(b) == 0 {
				t.Fatalf("struct encoded to zero bytes; collides with the null marker")
			}
			out, err := c.Decode(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.ID != in.ID || out.Name != in.Name || !out.UpdatedAt.Equal(in.UpdatedAt) {
				t.Fatalf("got %+v want %+v", out, in)
			}
		})
	}
}

func TestMsgpackUsesMsgpackTags(t *testing.T) {
	b, err := Msgpack[row]{}.Encode(row{ID: 1, Name: "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var m map[string]any
	if err := msgpack.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["updated_at"]; !ok {
		t.Fatalf("expected msgpack tag names, got keys %v", m)
	}
}

func TestCBORDeterministicMapOrder(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	v := map[string]int{"zeta": 1, "alpha": 2, "mid": 3, "beta": 4}
	first, err := c.Encode(v)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := c.Encode(v)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic mode produced different bytes")
		}
	}
}

func TestProtobufRoundTrip(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("shop:42"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.GetValue() != "shop:42" {
		t.Fatalf("value = %q", out.GetValue())
	}
	if _, err := c.Decode([]byte{0xff, 0xff}); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestLimitRejectsOversizedPayload(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxDecode: 4}
	if _, err := c.Decode([]byte("12345")); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("want too large error, got %v", err)
	}
	got, err := c.Decode([]byte("1234"))
	if err != nil || got != "1234" {
		t.Fatalf("Decode at limit: %q %v", got, err)
	}
	unbounded := Limit[string]{Inner: String{}}
	if _, err := unbounded.Decode(bytes.Repeat([]byte("a"), 1<<16)); err != nil {
		t.Fatalf("MaxDecode 0 should disable the check: %v", err)
	}
}

func TestRawCodecsPassThrough(t *testing.T) {
	b, _ := Bytes{}.Encode([]byte{1, 2, 3})
	if out, _ := (Bytes{}).Decode(b); !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Fatalf("bytes codec altered payload")
	}
	s, _ := String{}.Encode("héllo")
	if out, _ := (String{}).Decode(s); out != "héllo" {
		t.Fatalf("string codec altered payload: %q", out)
	}
}
