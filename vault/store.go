package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads the accounts file at path. A missing file is treated as an
// empty vault rather than an error, so first-run startup needs no special
// casing by callers.
func Load(path string) ([]Account, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	var accounts []Account
	if err := json.Unmarshal(b, &accounts); err != nil {
		return nil, fmt.Errorf("vault: parse %s: %w", path, err)
	}
	return accounts, nil
}

// Save writes accounts to path as a crash-safe commit point: write temp,
// fsync temp, rename, fsync directory. A crash at any point before the
// rename leaves the previous file intact.
func Save(path string, accounts []Account) error {
	b, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: marshal: %w", err)
	}
	b = append(b, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("vault: create directory %s: %w", dir, err)
	}
	tmp := path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("vault: open tmp: %w", err)
	}
	_, werr := f.Write(b)
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("vault: write tmp: %w", werr)
	}
	if serr != nil {
		return fmt.Errorf("vault: fsync tmp: %w", serr)
	}
	if cerr != nil {
		return fmt.Errorf("vault: close tmp: %w", cerr)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("vault: fsync dir open: %w", err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("vault: fsync dir: %w", err)
	}
	return d.Close()
}
