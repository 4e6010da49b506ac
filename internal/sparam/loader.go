package sparam

import (
	"fmt"
	"os"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sonnetlabs/sonnetsuiteshelper/internal/units"
)

// Loader reads output files with an in-memory cache so an optimiser set can
// re-analyse the same batch repeatedly without re-parsing from disk. Entries
// are keyed on path and modification time, so a rewritten file is re-read.
type Loader struct {
	cache *gocache.Cache
}

// NewLoader builds a loader with a 30 minute entry lifetime.
func NewLoader() *Loader {
	return &Loader{cache: gocache.New(30*time.Minute, 10*time.Minute)}
}

// Load returns the parsed output file at path, from cache when possible.
func (l *Loader) Load(path string, ports int, unit units.FreqUnit) (*Data, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("sparam: stat output file: %w", err)
	}
	key := fmt.Sprintf("%s|%d|%s|%d", path, ports, unit, info.ModTime().UnixNano())
	if cached, ok := l.cache.Get(key); ok {
		if data, ok := cached.(*Data); ok {
			return data, nil
		}
	}
	data, err := ReadSpreadsheet(path, ports, unit)
	if err != nil {
		return nil, err
	}
	l.cache.Set(key, data, gocache.DefaultExpiration)
	return data, nil
}
