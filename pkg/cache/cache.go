// Package cache provides byte-level caching for build intermediates.
//
// A build reads and transforms many modules whose content rarely changes
// between runs. The [Cache] interface stores transform outputs and scanned
// import lists keyed by content hash, so an unchanged file skips esbuild
// entirely on the next build.
//
// Implementations:
//   - [FileCache]: JSON entries sharded under a directory, for the CLI
//   - [LRUCache]: bounded in-process cache, for the dev server's rebuild loop
//   - [RedisCache]: shared cache for CI runners building the same project
//   - [NullCache]: disables caching
//
// Keys are produced by a [Keyer] so that every component agrees on layout.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte payloads with optional expiry.
//
// Get returns (nil, false, nil) on a miss. Implementations must be safe for
// concurrent use, since transform workers share one cache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// TransformKeyOpts identifies everything besides content that affects a
// transform result.
type TransformKeyOpts struct {
	Chain   []string       // Step names in application order
	Options map[string]any // Merged step options
	Mode    string         // "development" or "production"
	Targets []string       // Output engine targets

	InlineLimit int64  // Assets below this size become data URIs
	PublicPath  string // URL prefix of emitted assets
}

// Keyer generates cache keys for build intermediates.
type Keyer interface {
	// ScanKey keys the import list extracted from a module.
	ScanKey(contentHash, loader string) string
	// TransformKey keys the output of a module's transform chain.
	TransformKey(contentHash string, opts TransformKeyOpts) string
}

// DefaultKeyer produces keys of the form "kind:sha256(parts...)".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ScanKey implements Keyer.
func (DefaultKeyer) ScanKey(contentHash, loader string) string {
	return hashKey("scan", contentHash, loader)
}

// TransformKey implements Keyer.
func (DefaultKeyer) TransformKey(contentHash string, opts TransformKeyOpts) string {
	return hashKey("transform", contentHash, opts.Chain, opts.Options, opts.Mode, opts.Targets,
		opts.InlineLimit, opts.PublicPath)
}
