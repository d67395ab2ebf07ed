package disk

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/bufferline/internal/adapters/storage"
	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// bufferModel is the reference implementation the engine is checked
// against: two plain FIFO lists and a byte counter, with at-least-once
// restart semantics (delivered-but-unacked items return to the head).
type bufferModel struct {
	queued    [][]byte
	delivered [][]byte
	bytes     uint64
}

func (m *bufferModel) frameSize(p []byte) uint64 {
	return uint64(len(p)) + domain.FrameOverhead
}

func (m *bufferModel) write(p []byte) {
	m.queued = append(m.queued, p)
	m.bytes += m.frameSize(p)
}

func (m *bufferModel) read() ([]byte, bool) {
	if len(m.queued) == 0 {
		return nil, false
	}
	p := m.queued[0]
	m.queued = m.queued[1:]
	m.delivered = append(m.delivered, p)
	return p, true
}

func (m *bufferModel) ack() {
	if len(m.delivered) == 0 {
		return
	}
	m.bytes -= m.frameSize(m.delivered[0])
	m.delivered = m.delivered[1:]
}

func (m *bufferModel) restart() {
	m.queued = append(append([][]byte{}, m.delivered...), m.queued...)
	m.delivered = nil
}

// TestBufferMatchesReferenceModel drives random interleavings of
// write/read/ack/flush/restart against the engine and the model. After
// every action the two must agree on emptiness, read contents and the
// unacked byte total.
func TestBufferMatchesReferenceModel(t *testing.T) {
	ctx := context.Background()

	for _, seed := range []int64{1, 7, 42, 1337} {
		seed := seed
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			store := storage.NewMemory()
			opts := smallOptions()
			opts.MaxBufferSize = 2048

			buffer := openTestBuffer(t, store, opts)
			defer func() { buffer.Close(ctx) }()

			model := &bufferModel{}
			sequence := 0

			for step := 0; step < 400; step++ {
				switch op := rng.Intn(10); {
				case op < 4: // write
					payload := payloadOf(sequence, 16+rng.Intn(180))
					if model.bytes+model.frameSize(payload) > opts.MaxBufferSize {
						// The engine would block here; the model skips.
						continue
					}
					sequence++

					require.NoError(t, buffer.Write(ctx, payload))
					require.NoError(t, buffer.Flush(ctx))
					model.write(payload)

				case op < 8: // read
					expected, want := model.read()

					item, ok, err := buffer.TryNext()
					require.NoError(t, err)
					require.Equal(t, want, ok, "step %d: availability mismatch", step)
					if want {
						require.Equal(t, expected, item, "step %d: order mismatch", step)
					}

				case op < 9: // ack
					if len(model.delivered) > 0 {
						buffer.Ack(1)
						model.ack()
					}

				default: // restart
					require.NoError(t, buffer.Close(ctx))
					buffer = openTestBuffer(t, store, opts)
					model.restart()
				}

				summary := buffer.Summary()
				require.Equal(t, model.bytes, summary.UnackedSize, "step %d: unacked mismatch", step)
				require.LessOrEqual(t, summary.UnackedSize, opts.MaxBufferSize)
				require.Equal(t, uint64(len(model.queued)+len(model.delivered)), summary.TotalRecords, "step %d: record count mismatch", step)
			}

			// Drain whatever is left and confirm full agreement.
			for {
				expected, want := model.read()
				item, ok, err := buffer.TryNext()
				require.NoError(t, err)
				require.Equal(t, want, ok)
				if !ok {
					break
				}
				require.Equal(t, expected, item)
			}
		})
	}
}
