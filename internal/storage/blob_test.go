package storage

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiskStoreRoundTrip(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	key := "room-1/blob-1.txt"
	require.NoError(t, store.Put(key, []byte("payload")))

	rc, err := store.Open(key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), data)

	require.NoError(t, store.Delete(key))
	_, err = store.Open(key)
	require.Error(t, err)
}

func TestDiskStoreDeleteMissingIsNoop(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Delete("room-1/never-written"))
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside", "/etc/passwd", "../../x"} {
		require.Error(t, store.Put(key, []byte("x")), "key %q", key)
		_, err := store.Open(key)
		require.Error(t, err, "key %q", key)
	}
}
