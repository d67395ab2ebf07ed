package codec

import (
	"bytes"
	"fmt"

	"google.golang.org/protobuf/proto"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// Proto encodes protobuf messages. Decode needs a fresh message instance to
// unmarshal into, so the constructor takes a factory rather than relying on
// reflection over the type parameter.
type Proto[M proto.Message] struct {
	newMessage func() M
}

func NewProto[M proto.Message](newMessage func() M) Proto[M] {
	return Proto[M]{newMessage: newMessage}
}

func (c Proto[M]) Encode(item M, buf *bytes.Buffer) error {
	encoded, err := proto.Marshal(item)
	if err != nil {
		return fmt.Errorf("proto encode: %w", err)
	}

	_, err = buf.Write(encoded)
	return err
}

func (c Proto[M]) Decode(payload []byte) (M, error) {
	message := c.newMessage()
	if err := proto.Unmarshal(payload, message); err != nil {
		return message, fmt.Errorf("%w: proto: %v", domain.ErrDecode, err)
	}
	return message, nil
}

func (c Proto[M]) SizeHint(item M) int {
	return proto.Size(item)
}
