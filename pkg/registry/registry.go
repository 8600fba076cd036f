// pkg/registry/registry.go
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
)

var ErrEntryNotFound = errors.New("schema entry not found")

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the catalog indented, entries sorted by key.
func (c *Catalog) Save(path string) error {
	sort.Slice(c.Schemas, func(i, j int) bool { return c.Schemas[i].Key < c.Schemas[j].Key })
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func (c *Catalog) Find(key string) (*Entry, error) {
	for i := range c.Schemas {
		if c.Schemas[i].Key == key {
			return &c.Schemas[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
}

func (c *Catalog) Add(e Entry) error {
	if _, err := c.Find(e.Key); err == nil {
		return fmt.Errorf("schema %s already in catalog", e.Key)
	}
	if e.Status == "" {
		e.Status = StatusDraft
	}
	c.Schemas = append(c.Schemas, e)
	c.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Published returns the entries due for publication.
func (c *Catalog) Published() []Entry {
	var out []Entry
	for _, e := range c.Schemas {
		if e.Status == StatusPublished {
			out = append(out, e)
		}
	}
	return out
}

// Validate checks the catalog itself. Schema contents are checked by the
// schema-registry tool.
func (c *Catalog) Validate(dir string) error {
	seen := map[string]bool{}
	var errs []error
	for _, e := range c.Schemas {
		switch {
		case e.Key == "":
			errs = append(errs, fmt.Errorf("entry with file %q has no key", e.File))
			continue
		case seen[e.Key]:
			errs = append(errs, fmt.Errorf("duplicate key %s", e.Key))
		}
		seen[e.Key] = true

		switch e.Status {
		case StatusDraft, StatusPublished, StatusRetired:
		default:
			errs = append(errs, fmt.Errorf("%s: unknown status %q", e.Key, e.Status))
		}
		if _, err := os.Stat(filepath.Join(dir, e.File)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Key, err))
		}
	}
	return errors.Join(errs...)
}

// Path resolves the schema file of e against the catalog directory.
func (e Entry) Path(dir string) string {
	return filepath.Join(dir, e.File)
}
