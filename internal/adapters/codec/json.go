package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// JSON encodes items with encoding/json. Suited to telemetry event types
// that are plain structs; decode failures wrap domain.ErrDecode so the
// engine can distinguish them from I/O errors.
type JSON[T any] struct{}

func NewJSON[T any]() JSON[T] { return JSON[T]{} }

func (JSON[T]) Encode(item T, buf *bytes.Buffer) error {
	encoder := json.NewEncoder(buf)
	if err := encoder.Encode(item); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

func (JSON[T]) Decode(payload []byte) (T, error) {
	var item T
	if err := json.Unmarshal(payload, &item); err != nil {
		return item, fmt.Errorf("%w: json: %v", domain.ErrDecode, err)
	}
	return item, nil
}

func (JSON[T]) SizeHint(item T) int {
	return 0
}
