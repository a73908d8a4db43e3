package starling

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryHelperRegisterResolveRemove(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{"/accounts": jsonBody(accountsPayload)})
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "starling_config.toml")
	h := NewCategoryHelper(path, Options{BaseURL: srv.URL})

	_, ok, err := h.Resolve(testAccount)
	require.NoError(t, err)
	assert.False(t, ok, "no file yet")

	registered, err := h.Register(context.Background(), "token-1", testAccount, "Starling Personal")
	require.NoError(t, err)
	assert.True(t, registered)

	category, ok, err := h.Resolve(testAccount)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testCategory, category)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), testCategory.String())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	require.NoError(t, h.Remove(testAccount))
	_, ok, err = h.Resolve(testAccount)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, h.Remove(testAccount), "second remove is a no-op")
}

func TestCategoryHelperRegisterWithoutDefault(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{"/accounts": jsonBody(
		`{"accounts":[{"accountUid":"11111111-1111-1111-1111-111111111111","currency":"GBP","name":"Personal"}]}`)})
	path := filepath.Join(t.TempDir(), "starling_config.toml")
	h := NewCategoryHelper(path, Options{BaseURL: srv.URL})

	registered, err := h.Register(context.Background(), "token-1", testAccount, "Starling Personal")
	require.NoError(t, err)
	assert.False(t, registered)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCategoryHelperRegisterUnknownAccount(t *testing.T) {
	srv := newTestServer(t, map[string]http.HandlerFunc{"/accounts": jsonBody(accountsPayload)})
	h := NewCategoryHelper(filepath.Join(t.TempDir(), "starling_config.toml"), Options{BaseURL: srv.URL})

	registered, err := h.Register(context.Background(), "token-1", uuid.New(), "Starling Personal")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestCategoryHelperKeepsOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starling_config.toml")
	other := uuid.New()
	h := NewCategoryHelper(path, Options{})
	require.NoError(t, h.save(map[string]string{
		other.String():       testCategory.String(),
		testAccount.String(): testCategory.String(),
	}))

	require.NoError(t, h.Remove(testAccount))

	_, ok, err := h.Resolve(other)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCategoryHelperCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starling_config.toml")
	require.NoError(t, os.WriteFile(path, []byte("this is = = not toml"), 0o600))

	_, _, err := NewCategoryHelper(path, Options{}).Resolve(testAccount)
	assert.Error(t, err)
}
