package store

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T) *FileKV {
	t.Helper()
	kv, err := NewFileKV(t.TempDir(), log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	return kv
}

func TestFileKV_SetGet(t *testing.T) {
	kv := newTestKV(t)

	require.NoError(t, kv.Set("wizard_state", []byte(`{"step":"carrier-placement"}`)))

	got, ok, err := kv.Get("wizard_state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"step":"carrier-placement"}`), got)
}

func TestFileKV_GetMissing(t *testing.T) {
	kv := newTestKV(t)

	got, ok, err := kv.Get("wizard_state")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestFileKV_InvalidKey(t *testing.T) {
	kv := newTestKV(t)

	assert.Error(t, kv.Set("../escape", []byte("x")))
	_, _, err := kv.Get("no/slashes")
	assert.Error(t, err)
	assert.Error(t, kv.Delete("Uppercase"))
}

func TestFileKV_OverwriteKeepsBackup(t *testing.T) {
	kv := newTestKV(t)

	require.NoError(t, kv.Set("wizard_state", []byte("v1")))
	require.NoError(t, kv.Set("wizard_state", []byte("v2")))

	got, ok, err := kv.Get("wizard_state")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)

	bak, err := os.ReadFile(filepath.Join(kv.dir, "wizard_state.bak"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), bak)
}

func TestFileKV_Delete(t *testing.T) {
	kv := newTestKV(t)

	require.NoError(t, kv.Set("wizard_state", []byte("v1")))
	require.NoError(t, kv.Set("wizard_state", []byte("v2")))
	require.NoError(t, kv.Delete("wizard_state"))

	_, ok, err := kv.Get("wizard_state")
	require.NoError(t, err)
	assert.False(t, ok)

	// Backup must go too, or a cleared session could come back.
	_, err = os.Stat(filepath.Join(kv.dir, "wizard_state.bak"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileKV_DeleteMissing(t *testing.T) {
	kv := newTestKV(t)
	assert.NoError(t, kv.Delete("wizard_state"))
}

func TestFileKV_RecoverRestoresBackup(t *testing.T) {
	kv := newTestKV(t)

	require.NoError(t, kv.Set("wizard_state", []byte(`{"good":true}`)))
	require.NoError(t, kv.Set("wizard_state", []byte(`{"corrupt`)))

	got, ok := kv.Recover("wizard_state")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"good":true}`), got)

	// The corrupt payload is quarantined, not lost.
	entries, err := os.ReadDir(filepath.Join(kv.dir, "quarantine"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "wizard_state")
	assert.Contains(t, entries[0].Name(), ".corrupt")

	// The restored payload is readable through the normal path.
	restored, present, err := kv.Get("wizard_state")
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, []byte(`{"good":true}`), restored)
}

func TestFileKV_RecoverWithoutBackup(t *testing.T) {
	kv := newTestKV(t)

	require.NoError(t, kv.Set("wizard_state", []byte(`{"corrupt`)))

	_, ok := kv.Recover("wizard_state")
	assert.False(t, ok)
}

func TestMemKV_RoundTrip(t *testing.T) {
	kv := NewMemKV()

	require.NoError(t, kv.Set("k", []byte("v")))
	got, ok, err := kv.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// Mutating the returned slice must not affect the stored payload.
	got[0] = 'x'
	again, _, _ := kv.Get("k")
	assert.Equal(t, []byte("v"), again)

	require.NoError(t, kv.Delete("k"))
	_, ok, err = kv.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}
