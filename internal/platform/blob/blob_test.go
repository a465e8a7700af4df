package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_StoreOpenDelete(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	ref, err := store.Store(ctx, []byte("%PDF-1.4 body"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, ref[:2], ref))
	require.NoError(t, err)

	f, err := store.Open(ref)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "%PDF-1.4 body", string(data))

	require.NoError(t, store.Delete(ctx, ref))
	_, err = store.Open(ref)
	assert.Error(t, err)

	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, ref))
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	err = store.Delete(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = store.Open("")
	assert.ErrorIs(t, err, ErrInvalidRef)
}
