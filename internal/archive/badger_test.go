package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/ConflictingTheories/meme-citadel-sub000/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestArchive(t *testing.T) *BadgerArchive {
	t.Helper()
	a, err := Open(InMemoryConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestStoreRetrieveVerify(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	content := []byte("press release, 2024-03-01")

	ref, err := a.Store(ctx, content)
	require.NoError(t, err)
	assert.Equal(t, Hash(content), ref.Hash)
	assert.Equal(t, "badger://"+ref.Hash, ref.Locator)

	got, err := a.Retrieve(ctx, ref.Hash)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	ok, err := a.Verify(ctx, ref.Hash, content)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Verify(ctx, ref.Hash, []byte("tampered"))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Verify(ctx, ref.Hash, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStoreIsIdempotent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	first, err := a.Store(ctx, []byte("same"))
	require.NoError(t, err)
	second, err := a.Store(ctx, []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRetrieveMissing(t *testing.T) {
	a := openTestArchive(t)
	_, err := a.Retrieve(context.Background(), Hash([]byte("never stored")))
	assert.True(t, errors.Is(err, domain.ErrArchiveNotFound))

	_, err = a.Verify(context.Background(), "deadbeef", nil)
	assert.True(t, errors.Is(err, domain.ErrArchiveNotFound))
}
