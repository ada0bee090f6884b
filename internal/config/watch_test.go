package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDeliversReloadOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heapd.json")
	require.NoError(t, (&File{ArenaReserve: 1}).Save(path))

	changes := make(chan *File, 4)

	w, err := Watch(path, func(f *File) { changes <- f })
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, (&File{ArenaReserve: 2}).Save(path))

	select {
	case f := <-changes:
		assert.EqualValues(t, 2, f.ArenaReserve)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload notification")
	}
}

func TestWatchOnMissingPathErrors(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "missing.json"), func(*File) {})
	assert.Error(t, err)
}
