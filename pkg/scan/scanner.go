package scan

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/towerpack/pkg/cache"
	"github.com/matzehuels/towerpack/pkg/observability"
)

// Scanner wraps Scan with a content-addressed cache. Only successful scans
// are cached.
type Scanner struct {
	Cache cache.Cache
	Keyer cache.Keyer
}

// NewScanner returns a Scanner. A nil cache disables caching and a nil keyer
// selects cache.DefaultKeyer.
func NewScanner(c cache.Cache, keyer cache.Keyer) *Scanner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Scanner{Cache: c, Keyer: keyer}
}

// Scan returns the imports of source, consulting the cache first.
func (s *Scanner) Scan(ctx context.Context, path string, source []byte) ([]Import, error) {
	if _, ok := LoaderFor(path); !ok {
		return nil, nil
	}
	key := s.Keyer.ScanKey(cache.Hash(source), strings.ToLower(filepath.Ext(path)))

	if imports, err := cache.GetJSON[[]Import](ctx, s.Cache, key); err == nil {
		observability.Cache().OnCacheHit(ctx, "scan")
		return imports, nil
	}
	observability.Cache().OnCacheMiss(ctx, "scan")

	imports, err := Scan(path, source)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.Cache, key, imports, 0); err == nil {
		observability.Cache().OnCacheSet(ctx, "scan", len(imports))
	}
	return imports, nil
}
