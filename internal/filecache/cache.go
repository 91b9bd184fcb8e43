// Package filecache implements a content-addressed static-asset cache:
// an in-memory store with a binary on-disk snapshot (or, as an
// additional backend, a bbolt-backed snapshot), hybrid fallback to the
// filesystem, exclusion globs, auto-reload, and MIME classification.
package filecache

import (
	"errors"
	"os"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxEntries bounds the number of cached files.
const MaxEntries = 1024

// Mode selects how the cache serves requests.
type Mode int

const (
	Filesystem Mode = iota
	Memory
	Hybrid
)

// SnapshotBackend selects the on-disk persistence format.
type SnapshotBackend int

const (
	SnapshotBinary SnapshotBackend = iota
	SnapshotBolt
)

// CachedFile is one asset identified by its logical path.
type CachedFile struct {
	LogicalPath string
	MIMEType    string
	Data        []byte
	Size        int64
	ModTime     time.Time
	Loaded      bool
}

// Config configures a Cache.
type Config struct {
	RootDir         string
	SnapshotPath    string
	URLPrefix       string
	Mode            Mode
	AutoReload      bool
	MaxFileSize     int64
	Exclusions      []string
	SnapshotBackend SnapshotBackend
}

var (
	ErrForbidden = errors.New("filecache: path traversal rejected")
	ErrNotFound  = errors.New("filecache: not found")
)

// Cache is the in-memory static-asset store. Its entry map is held behind
// an atomic pointer so that reloads (which happen only on the reactor
// goroutine) can be published with a single atomic swap; concurrent
// readers — including async-client goroutines serving a response body —
// never observe a torn intermediate state, preserving the
// "read-only after a reload" guarantee.
type Cache struct {
	cfg     Config
	entries atomic.Pointer[map[string]*CachedFile]
}

// New constructs a Cache and performs the "on init" step:
// load the snapshot if present and readable, else scan the asset directory
// and write a fresh snapshot.
func New(cfg Config) (*Cache, error) {
	c := &Cache{cfg: cfg}
	empty := map[string]*CachedFile{}
	c.entries.Store(&empty)

	if cfg.Mode == Filesystem {
		return c, nil
	}

	if loaded, err := c.tryLoadSnapshot(); err == nil && loaded {
		return c, nil
	}

	entries, err := scanDir(cfg.RootDir, cfg.Exclusions, cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	c.entries.Store(&entries)

	if err := c.saveSnapshot(); err != nil {
		log.Warn().Err(err).Msg("filecache: failed to write snapshot after scan")
	}

	return c, nil
}

func (c *Cache) tryLoadSnapshot() (bool, error) {
	if c.cfg.SnapshotPath == "" {
		return false, nil
	}

	if _, err := os.Stat(c.cfg.SnapshotPath); err != nil {
		return false, nil
	}

	var entries map[string]*CachedFile
	var err error

	switch c.cfg.SnapshotBackend {
	case SnapshotBolt:
		entries, err = loadBoltSnapshot(c.cfg.SnapshotPath, c.cfg.MaxFileSize)
	default:
		entries, err = loadBinarySnapshot(c.cfg.SnapshotPath, c.cfg.MaxFileSize)
	}

	if err != nil {
		return false, err
	}

	c.entries.Store(&entries)

	return true, nil
}

func (c *Cache) saveSnapshot() error {
	if c.cfg.SnapshotPath == "" {
		return nil
	}

	entries := *c.entries.Load()

	switch c.cfg.SnapshotBackend {
	case SnapshotBolt:
		return saveBoltSnapshot(c.cfg.SnapshotPath, entries)
	default:
		return saveBinarySnapshot(c.cfg.SnapshotPath, entries)
	}
}

// NormalizeURL strips the configured URL prefix from a request path to
// produce the cache's logical path key.
func (c *Cache) NormalizeURL(urlPath string) string {
	prefix := c.cfg.URLPrefix
	if prefix == "" || prefix == "/" {
		return urlPath
	}

	if strings.HasPrefix(urlPath, prefix) {
		rest := urlPath[len(prefix):]
		if rest == "" {
			return "/"
		}

		return rest
	}

	return urlPath
}

// URLPrefix returns the configured URL prefix assets are served under.
func (c *Cache) URLPrefix() string {
	return c.cfg.URLPrefix
}

// IsSafe rejects paths containing ".." or "//".
func IsSafe(logicalPath string) bool {
	return !strings.Contains(logicalPath, "..") && !strings.Contains(logicalPath, "//")
}

// Lookup returns the cached entry for logicalPath by exact match.
func (c *Cache) Lookup(logicalPath string) (*CachedFile, bool) {
	entries := *c.entries.Load()
	f, ok := entries[logicalPath]

	return f, ok
}

// Get resolves logicalPath according to the configured serving mode,
// reading from disk for Filesystem/Hybrid modes as needed. It returns
// ErrForbidden for traversal attempts and ErrNotFound when nothing serves
// the path.
func (c *Cache) Get(logicalPath string) (*CachedFile, error) {
	if !IsSafe(logicalPath) {
		return nil, ErrForbidden
	}

	switch c.cfg.Mode {
	case Memory:
		f, ok := c.Lookup(logicalPath)
		if !ok {
			return nil, ErrNotFound
		}

		if c.cfg.AutoReload {
			c.reloadIfChanged(logicalPath, f)
			f, _ = c.Lookup(logicalPath)
		}

		return f, nil

	case Filesystem:
		return c.readFromDisk(logicalPath)

	default: // Hybrid
		if f, ok := c.Lookup(logicalPath); ok {
			if c.cfg.AutoReload {
				c.reloadIfChanged(logicalPath, f)
				f, _ = c.Lookup(logicalPath)
			}

			return f, nil
		}

		return c.readFromDisk(logicalPath)
	}
}

func (c *Cache) readFromDisk(logicalPath string) (*CachedFile, error) {
	full := path.Join(c.cfg.RootDir, logicalPath)

	data, err := os.ReadFile(full) // #nosec G304 -- logicalPath already traversal-checked
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}

	mimeType, priority := classify(logicalPath)
	_ = priority

	return &CachedFile{
		LogicalPath: logicalPath,
		MIMEType:    mimeType,
		Data:        data,
		Size:        int64(len(data)),
		ModTime:     info.ModTime(),
		Loaded:      true,
	}, nil
}

// reloadIfChanged compares the on-disk mtime against the cached entry and,
// if newer, reloads it and rewrites the snapshot. Runs only on the
// reactor goroutine, so mutating the shared map via atomic swap is
// race-free.
func (c *Cache) reloadIfChanged(logicalPath string, cached *CachedFile) {
	full := path.Join(c.cfg.RootDir, logicalPath)

	info, err := os.Stat(full)
	if err != nil {
		return
	}

	if !info.ModTime().After(cached.ModTime) {
		return
	}

	fresh, err := c.readFromDisk(logicalPath)
	if err != nil {
		log.Warn().Err(err).Str("path", logicalPath).Msg("filecache: auto-reload failed")

		return
	}

	old := *c.entries.Load()
	next := make(map[string]*CachedFile, len(old))
	for k, v := range old {
		next[k] = v
	}
	next[logicalPath] = fresh
	c.entries.Store(&next)

	if err := c.saveSnapshot(); err != nil {
		log.Warn().Err(err).Msg("filecache: failed to rewrite snapshot after reload")
	}
}

// Priority returns the display priority for logicalPath's MIME class.
func Priority(logicalPath string) int {
	_, p := classify(logicalPath)

	return p
}

// ContentType returns the MIME type for logicalPath.
func ContentType(logicalPath string) string {
	ct, _ := classify(logicalPath)

	return ct
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return len(*c.entries.Load())
}
