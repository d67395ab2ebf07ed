package disk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	codecs "github.com/telemetrydev/bufferline/internal/adapters/codec"
	"github.com/telemetrydev/bufferline/internal/adapters/storage"
	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	bufferrors "github.com/telemetrydev/bufferline/pkg/errors"
	"github.com/telemetrydev/bufferline/pkg/logger"
)

// glitchStorage injects transient ReadAt failures into data file reads.
type glitchStorage struct {
	*storage.Memory
	failures int
}

func (g *glitchStorage) OpenRead(name string) (ports.ReadFile, error) {
	file, err := g.Memory.OpenRead(name)
	if err != nil {
		return nil, err
	}
	return &glitchRead{inner: file, storage: g}, nil
}

type glitchRead struct {
	inner   ports.ReadFile
	storage *glitchStorage
}

func (r *glitchRead) ReadAt(p []byte, off int64) (int, error) {
	if r.storage.failures > 0 {
		r.storage.failures--
		return 0, errors.New("injected transient read failure")
	}
	return r.inner.ReadAt(p, off)
}

func (r *glitchRead) Close() error { return r.inner.Close() }

func TestReaderRetriesTransientReadErrors(t *testing.T) {
	ctx := context.Background()
	glitchy := &glitchStorage{Memory: storage.NewMemory()}

	opts := smallOptions()
	opts.Storage = glitchy

	buffer, err := Open[[]byte](ctx, opts, codecs.NewBytes(), logger.NewNop())
	require.NoError(t, err)
	defer buffer.Close(ctx)

	require.NoError(t, buffer.Write(ctx, payloadOf(0, 64)))
	require.NoError(t, buffer.Flush(ctx))

	// Two failures stay under the retry bound.
	glitchy.failures = readRetryAttempts - 1

	item, nextErr := buffer.Next(ctx)
	require.NoError(t, nextErr)
	require.Equal(t, payloadOf(0, 64), item)
}

func TestReaderSurfacesPersistentReadErrors(t *testing.T) {
	ctx := context.Background()
	glitchy := &glitchStorage{Memory: storage.NewMemory()}

	opts := smallOptions()
	opts.Storage = glitchy

	buffer, err := Open[[]byte](ctx, opts, codecs.NewBytes(), logger.NewNop())
	require.NoError(t, err)
	defer buffer.Close(ctx)

	require.NoError(t, buffer.Write(ctx, payloadOf(0, 64)))
	require.NoError(t, buffer.Flush(ctx))

	glitchy.failures = 100

	_, nextErr := buffer.Next(ctx)
	var berr *bufferrors.BufferError
	require.ErrorAs(t, nextErr, &berr)
	require.Equal(t, bufferrors.ErrorStorage, berr.Category)
}

func TestReaderNonTailCorruptionIsFatal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	opts := smallOptions()

	buffer := openTestBuffer(t, store, opts)
	for i := 0; i < 10; i++ {
		require.NoError(t, buffer.Write(ctx, payloadOf(i, 200)))
	}
	require.NoError(t, buffer.Close(ctx))

	// Corrupt the first record of the first, already rotated file. This
	// is not a torn tail: it cannot be skipped safely.
	mapped, err := store.OpenMap(dataFileName(0), int64(domain.FrameHeaderSize)+1, true)
	require.NoError(t, err)
	mapped.Bytes()[domain.FrameHeaderSize] ^= 0xFF
	require.NoError(t, mapped.Close())

	reopened := openTestBuffer(t, store, opts)
	defer reopened.Close(ctx)

	_, nextErr := reopened.Next(ctx)
	require.ErrorIs(t, nextErr, domain.ErrCorrupt)
}
