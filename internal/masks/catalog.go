// Package masks resolves overlay mask assets from a fixed read-only
// directory. Names are restricted to alphanumerics so a crafted identifier
// can never address a file outside the catalog.
package masks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMask is used when a request does not name a mask.
const DefaultMask = "cat"

const maskExtension = ".png"

var (
	ErrInvalidName = errors.New("invalid mask name")
	ErrNotFound    = errors.New("mask not found")
)

// Catalog serves mask lookups against a single directory validated at
// construction time. The directory contents are owned by the operator; the
// service never writes to it.
type Catalog struct {
	dir string
}

func NewCatalog(dir string) (*Catalog, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve mask directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("mask directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mask directory %s is not a directory", abs)
	}
	return &Catalog{dir: abs}, nil
}

// Resolve maps a mask name to an asset path inside the catalog directory. An
// empty name selects DefaultMask. Non-alphanumeric names fail with
// ErrInvalidName and names without a matching asset fail with ErrNotFound.
func (c *Catalog) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultMask
	}
	if !isAlphanumeric(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	path := filepath.Join(c.dir, name+maskExtension)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("stat mask %s: %w", name, err)
	}
	return path, nil
}

// List returns the sorted names of every mask asset in the catalog.
func (c *Catalog) List() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read mask directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := entry.Name()
		if !strings.HasSuffix(base, maskExtension) {
			continue
		}
		name := strings.TrimSuffix(base, maskExtension)
		if !isAlphanumeric(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
