package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes generated messages. ctor must return a fresh, non-nil
// message for every Decode (e.g. func() *pb.Shop { return &pb.Shop{} }).
type Protobuf[T proto.Message] struct {
	ctor func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{ctor: ctor}
}

// Encode uses deterministic marshaling so map fields do not make equal
// messages produce different entries.
func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.ctor()
	err := proto.Unmarshal(b, m)
	return m, err
}
