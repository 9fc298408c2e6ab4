// Package ledger tracks which message ids have already been committed to
// the knowledge store, one durable set per session. The ledger only ever
// grows; re-running ingestion against the same transcript therefore
// commits nothing twice. Concurrent writers for the same session are not
// supported (last save wins) — single writer per session is the operating
// assumption for the whole pipeline.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/engramdev/engram/internal/parse"
)

// Store persists the set of committed ids for a session. A missing
// record is an empty set, never an error.
type Store interface {
	Load(sessionID string) (map[string]bool, error)
	Save(sessionID string, ids map[string]bool) error
}

// FileStore keeps one newline-delimited id file per session.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) path(sessionID string) string {
	// session ids are uuids in practice; flatten anything path-like anyway
	safe := strings.NewReplacer("/", "-", string(filepath.Separator), "-").Replace(sessionID)
	return filepath.Join(s.Dir, safe+".ids")
}

func (s *FileStore) Load(sessionID string) (map[string]bool, error) {
	data, err := os.ReadFile(s.path(sessionID))
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	ids := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			ids[line] = true
		}
	}
	return ids, nil
}

func (s *FileStore) Save(sessionID string, ids map[string]bool) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	lines := make([]string, 0, len(ids))
	for id := range ids {
		lines = append(lines, id)
	}
	sort.Strings(lines)

	if err := os.WriteFile(s.path(sessionID), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

// MemStore is the in-memory Store used by tests.
type MemStore struct {
	sets map[string]map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{sets: make(map[string]map[string]bool)}
}

func (s *MemStore) Load(sessionID string) (map[string]bool, error) {
	ids := make(map[string]bool, len(s.sets[sessionID]))
	for id := range s.sets[sessionID] {
		ids[id] = true
	}
	return ids, nil
}

func (s *MemStore) Save(sessionID string, ids map[string]bool) error {
	set := make(map[string]bool, len(ids))
	for id := range ids {
		set[id] = true
	}
	s.sets[sessionID] = set
	return nil
}

// FilterNew returns the messages not yet recorded in stored. Messages
// with an empty id cannot be tracked and are always treated as new.
func FilterNew(transaction []parse.Message, stored map[string]bool) []parse.Message {
	var fresh []parse.Message
	for _, m := range transaction {
		if m.ID == "" || !stored[m.ID] {
			fresh = append(fresh, m)
		}
	}
	return fresh
}
