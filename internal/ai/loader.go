package ai

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Loader loads and caches compiled JSON schemas from a filesystem. Schemas
// are keyed by file name without the .json extension.
type Loader struct {
	fsys  fs.FS
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
	raw   map[string]json.RawMessage
}

func NewLoader(fsys fs.FS) (*Loader, error) {
	l := &Loader{
		fsys:  fsys,
		cache: make(map[string]*jsonschema.Schema),
		raw:   make(map[string]json.RawMessage),
	}
	if err := l.Reload(); err != nil {
		return nil, err
	}

	return l, nil
}

// NewDefaultLoader loads the schemas shipped with the binary.
func NewDefaultLoader() (*Loader, error) {
	sub, err := fs.Sub(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	return NewLoader(sub)
}

// GetSchema returns a compiled schema by name.
func (l *Loader) GetSchema(name string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[name]
	l.mu.RUnlock()

	return s, ok
}

// Raw returns the schema document as loaded, for providers that accept a
// JSON schema as the response format.
func (l *Loader) Raw(name string) (json.RawMessage, bool) {
	l.mu.RLock()
	r, ok := l.raw[name]
	l.mu.RUnlock()

	return r, ok
}

// Reload reads every *.json file at the root of the filesystem and compiles it.
func (l *Loader) Reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	names, err := fs.Glob(l.fsys, "*.json")
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}

	newCache := make(map[string]*jsonschema.Schema, len(names))
	newRaw := make(map[string]json.RawMessage, len(names))
	for _, n := range names {
		b, err := fs.ReadFile(l.fsys, n)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", n, err)
		}
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			return fmt.Errorf("compile schema %s: %w", n, err)
		}

		key := strings.TrimSuffix(path.Base(n), ".json")
		newCache[key] = rs
		newRaw[key] = json.RawMessage(b)
	}

	l.cache = newCache
	l.raw = newRaw
	return nil
}

// Validate checks doc against the named schema and returns the failures as
// one error wrapping ErrInvalidObject.
func (l *Loader) Validate(ctx context.Context, name string, doc []byte) error {
	schema, ok := l.GetSchema(name)
	if !ok || schema == nil {
		return fmt.Errorf("no schema found for %s", name)
	}

	verrs, err := schema.ValidateBytes(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObject, err)
	}
	if len(verrs) > 0 {
		var sb strings.Builder
		for i, v := range verrs {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(v.PropertyPath)
			sb.WriteString(": ")
			sb.WriteString(v.Message)
		}
		return fmt.Errorf("%w: %s", ErrInvalidObject, sb.String())
	}
	return nil
}
