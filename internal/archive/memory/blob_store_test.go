package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresCopy(t *testing.T) {
	t.Parallel()

	store := New()
	data := []byte("payload")
	uri, err := store.PutObject(context.Background(), "a/b.json", "application/json", data)
	require.NoError(t, err)
	require.Equal(t, "mem://a/b.json", uri)

	data[0] = 'X' // mutate the caller's slice
	stored, ok := store.Get("a/b.json")
	require.True(t, ok)
	require.Equal(t, []byte("payload"), stored)
	require.Equal(t, 1, store.Len())
}
