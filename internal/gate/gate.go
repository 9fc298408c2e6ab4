// Package gate decides whether the expensive per-session entity setup
// (technology detection, project entity creation) should run again, and
// records its outcome. One YAML cache record per project path; the most
// recent session wins. Even a failed attempt is recorded so it is not
// retried within the same session.
package gate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Technology is one detected technology as recorded in the cache.
type Technology struct {
	Name       string  `yaml:"name"`
	Confidence float64 `yaml:"confidence"`
	Source     string  `yaml:"source,omitempty"`
	Version    string  `yaml:"version,omitempty"`
}

// Relationship is one created graph edge.
type Relationship struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Type string `yaml:"type"`
}

// Timing is the per-phase duration breakdown in milliseconds.
type Timing struct {
	DetectMS int64 `yaml:"detect_ms"`
	CreateMS int64 `yaml:"create_ms"`
	TotalMS  int64 `yaml:"total_ms"`
}

// Result is the full outcome of one entity-processing run.
type Result struct {
	Success       bool           `yaml:"success"`
	Technologies  []Technology   `yaml:"technologies,omitempty"`
	Relationships []Relationship `yaml:"relationships,omitempty"`
	Timing        Timing         `yaml:"timing,omitempty"`
	Errors        []string       `yaml:"errors,omitempty"`
}

// Cache is the persisted per-project record.
type Cache struct {
	SessionID     string    `yaml:"session_id"`
	LastProcessed time.Time `yaml:"last_processed,omitempty"`
	Result        `yaml:",inline"`
}

// Store persists one Cache per project path. Absence is a valid state.
type Store interface {
	Load(projectPath string) (*Cache, error)
	Save(projectPath string, c *Cache) error
}

// Gate answers "should entity processing run for this (project, session)?"
type Gate struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Gate {
	return &Gate{store: store, now: time.Now}
}

// ShouldProcess reports whether entity processing must (re)run: no cache,
// a different session, or a cache with no recorded processing time all
// mean yes. A cache that cannot be read counts as absent.
func (g *Gate) ShouldProcess(projectPath, sessionID string) bool {
	c, err := g.store.Load(projectPath)
	if err != nil || c == nil {
		return true
	}
	if c.SessionID != sessionID {
		return true
	}
	return c.LastProcessed.IsZero()
}

// MarkProcessed records the outcome of an entity-processing run. Existing
// cache fields the result does not supply are preserved, so recording a
// new session must not erase entity results it did not recompute.
func (g *Gate) MarkProcessed(projectPath, sessionID string, result Result) error {
	existing, err := g.store.Load(projectPath)
	if err != nil {
		existing = nil
	}

	c := merge(existing, &Cache{
		SessionID:     sessionID,
		LastProcessed: g.now().UTC(),
		Result:        result,
	})
	return g.store.Save(projectPath, c)
}

// merge overlays update onto existing, keeping existing values for any
// field the update leaves empty.
func merge(existing, update *Cache) *Cache {
	if existing == nil {
		return update
	}
	out := *update
	if len(out.Technologies) == 0 {
		out.Technologies = existing.Technologies
	}
	if len(out.Relationships) == 0 {
		out.Relationships = existing.Relationships
	}
	if out.Timing == (Timing{}) {
		out.Timing = existing.Timing
	}
	if len(out.Errors) == 0 && !out.Success {
		// a silent failure keeps the previous diagnostics around
		out.Errors = existing.Errors
	}
	return &out
}

// FileStore keeps one YAML file per project path, the path flattened the
// same way the assistant flattens project directories.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// encodeProjectPath flattens a filesystem path into a single file name.
func encodeProjectPath(projectPath string) string {
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-").Replace(projectPath)
}

func (s *FileStore) path(projectPath string) string {
	return filepath.Join(s.Dir, encodeProjectPath(projectPath)+".yaml")
}

func (s *FileStore) Load(projectPath string) (*Cache, error) {
	data, err := os.ReadFile(s.path(projectPath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read entity cache: %w", err)
	}

	var c Cache
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse entity cache: %w", err)
	}
	return &c, nil
}

// Save serializes the cache with every empty field pruned first: the
// persisted document carries values only, never empty placeholders.
func (s *FileStore) Save(projectPath string, c *Cache) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	raw, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal entity cache: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("reshape entity cache: %w", err)
	}

	pruned, _ := PruneEmpty(doc)
	out, err := yaml.Marshal(pruned)
	if err != nil {
		return fmt.Errorf("marshal entity cache: %w", err)
	}

	if err := os.WriteFile(s.path(projectPath), out, 0o644); err != nil {
		return fmt.Errorf("write entity cache: %w", err)
	}
	return nil
}

// MemStore is the in-memory Store used by tests.
type MemStore struct {
	caches map[string]*Cache
}

func NewMemStore() *MemStore {
	return &MemStore{caches: make(map[string]*Cache)}
}

func (s *MemStore) Load(projectPath string) (*Cache, error) {
	c, ok := s.caches[projectPath]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemStore) Save(projectPath string, c *Cache) error {
	cp := *c
	s.caches[projectPath] = &cp
	return nil
}
