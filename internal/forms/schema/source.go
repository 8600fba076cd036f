package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

// ErrSchemaTextNotFound is returned by a Source that has no text for a key.
var ErrSchemaTextNotFound = errors.New("schema text not found")

// Source stores schema text by key.
type Source interface {
	LoadSchemaText(ctx context.Context, key string) (string, error)
	SaveSchemaText(ctx context.Context, key, text string) error
}

// EmbeddedSource reads <key>.json files from a file system. It is read-only.
type EmbeddedSource struct {
	fsys fs.FS
	dir  string
}

// NewBundledSource serves the schemas compiled into the binary.
func NewBundledSource() *EmbeddedSource {
	return &EmbeddedSource{fsys: bundled, dir: "forms"}
}

// NewDirSource serves schemas from a directory on disk.
func NewDirSource(dir string) *EmbeddedSource {
	return &EmbeddedSource{fsys: os.DirFS(dir), dir: "."}
}

// NewFSSource serves schemas from the root of fsys.
func NewFSSource(fsys fs.FS) *EmbeddedSource {
	return &EmbeddedSource{fsys: fsys, dir: "."}
}

func (s *EmbeddedSource) LoadSchemaText(_ context.Context, key string) (string, error) {
	if !validKey(key) {
		return "", ErrSchemaTextNotFound
	}
	b, err := fs.ReadFile(s.fsys, path.Join(s.dir, key+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrSchemaTextNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read schema %s: %w", key, err)
	}
	return string(b), nil
}

func (s *EmbeddedSource) SaveSchemaText(context.Context, string, string) error {
	return errors.New("bundled schemas are read-only")
}

// Keys lists the schema keys available in the file system.
func (s *EmbeddedSource) Keys() ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		keys = append(keys, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// validKey keeps keys from escaping the schema directory.
func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && key != "." && key != ".."
}

// ChainSource asks each source in turn. The first one holding the key wins;
// saves go to the first source.
type ChainSource struct {
	sources []Source
}

func NewChainSource(sources ...Source) *ChainSource {
	return &ChainSource{sources: sources}
}

func (c *ChainSource) LoadSchemaText(ctx context.Context, key string) (string, error) {
	for _, s := range c.sources {
		text, err := s.LoadSchemaText(ctx, key)
		if errors.Is(err, ErrSchemaTextNotFound) {
			continue
		}
		return text, err
	}
	return "", ErrSchemaTextNotFound
}

func (c *ChainSource) SaveSchemaText(ctx context.Context, key, text string) error {
	if len(c.sources) == 0 {
		return errors.New("no schema source configured")
	}
	return c.sources[0].SaveSchemaText(ctx, key, text)
}
