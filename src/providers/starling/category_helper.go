package starling

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// CategoryHelper keeps the account -> default category mapping Starling
// needs for feed queries. The mapping lives in a TOML file; writers replace
// the whole file so readers never see a partial write. Only one process is
// expected to write at a time.
type CategoryHelper struct {
	path string
	opts Options
	mu   sync.Mutex
}

func NewCategoryHelper(path string, opts Options) *CategoryHelper {
	return &CategoryHelper{path: path, opts: opts}
}

func (h *CategoryHelper) Path() string { return h.path }

// Resolve returns the stored default category for account.
func (h *CategoryHelper) Resolve(account uuid.UUID) (uuid.UUID, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load()
	if err != nil {
		return uuid.Nil, false, err
	}
	raw, ok := entries[account.String()]
	if !ok {
		return uuid.Nil, false, nil
	}
	category, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%s: bad category for %s: %w", h.path, account, err)
	}
	return category, true, nil
}

// Register looks up the account's default category at Starling and stores
// it. It reports false, without error, when Starling returns none.
func (h *CategoryHelper) Register(ctx context.Context, token string, account uuid.UUID, bankName string) (bool, error) {
	c := newClient(h.opts, bankName, token, account)
	body, err := c.get(ctx, "accounts", "/accounts", nil)
	if err != nil {
		return false, err
	}
	accounts, err := parseAccounts(body)
	if err != nil {
		return false, schemaError(c, "accounts", body, err)
	}

	var category uuid.UUID
	for _, a := range accounts {
		if a.UUID == account {
			category = a.DefaultCategory
			break
		}
	}
	if category == uuid.Nil {
		return false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	entries, err := h.load()
	if err != nil {
		return false, err
	}
	entries[account.String()] = category.String()
	if err := h.save(entries); err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes the mapping for account. Removing an absent mapping is a no-op.
func (h *CategoryHelper) Remove(account uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries, err := h.load()
	if err != nil {
		return err
	}
	if _, ok := entries[account.String()]; !ok {
		return nil
	}
	delete(entries, account.String())
	return h.save(entries)
}

func (h *CategoryHelper) load() (map[string]string, error) {
	entries := make(map[string]string)
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := toml.Decode(string(data), &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", h.path, err)
	}
	return entries, nil
}

func (h *CategoryHelper) save(entries map[string]string) error {
	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".starling_config-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(entries); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", h.path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), h.path)
}
