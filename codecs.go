package bufferline

import (
	"google.golang.org/protobuf/proto"

	codecs "github.com/telemetrydev/bufferline/internal/adapters/codec"
)

// BytesCodec returns the identity codec for raw payloads.
func BytesCodec() Codec[[]byte] {
	return codecs.NewBytes()
}

// JSONCodec returns a codec marshaling records as JSON.
func JSONCodec[T any]() Codec[T] {
	return codecs.NewJSON[T]()
}

// ProtoCodec returns a codec for protobuf messages. newMessage must return
// a fresh message for each decode, e.g. func() *pb.Event { return &pb.Event{} }.
func ProtoCodec[M proto.Message](newMessage func() M) Codec[M] {
	return codecs.NewProto(newMessage)
}
