package registration

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LastUsedCache persists the most recently submitted draft to a local JSON
// file so the next registration can be prefilled with one tap. It is
// deliberately separate from the durable transaction record.
type LastUsedCache struct {
	path string
}

// NewLastUsedCache stores the cache file under dir.
func NewLastUsedCache(dir string) *LastUsedCache {
	return &LastUsedCache{path: filepath.Join(dir, "last_registration.json")}
}

// Save writes the draft to the cache file, replacing any previous entry.
func (c *LastUsedCache) Save(d *Draft) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("cache: marshal draft: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("cache: create dir: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("cache: write file: %w", err)
	}
	return nil
}

// Load returns the cached draft, or (nil, nil) when no draft has been cached
// yet. A missing cache is a normal first-run state, not an error.
func (c *LastUsedCache) Load() (*Draft, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read file: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("cache: unmarshal draft: %w", err)
	}
	return &d, nil
}
