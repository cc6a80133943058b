// Package prompt holds the instruction templates sent to the model,
// with an optional on-disk override per template.
package prompt

import (
	"os"
	"path/filepath"
	"strings"
)

// Generator resolves prompt templates, preferring override files in its
// directory over the built-in defaults.
type Generator struct {
	dir string
}

// NewGenerator returns a generator reading overrides from dir. An empty
// dir disables overrides.
func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir}
}

// Digest returns the system prompt for the daily digest.
func (g *Generator) Digest() string {
	return g.load("digest.txt", digestDefault)
}

// VideoQuery returns the system prompt for YouTube query generation.
func (g *Generator) VideoQuery() string {
	return g.load("video_query.txt", videoQueryDefault)
}

// load reads the override file when it exists and is non-empty,
// otherwise the built-in default.
func (g *Generator) load(name, fallback string) string {
	if g == nil || g.dir == "" {
		return fallback
	}

	data, err := os.ReadFile(filepath.Join(g.dir, name))
	if err != nil {
		return fallback
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s
	}
	return fallback
}
