package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/engramdev/engram/internal/gate"
	"github.com/engramdev/engram/internal/kstore"
	"github.com/engramdev/engram/internal/ledger"
	"github.com/engramdev/engram/internal/parse"
)

type fakeStore struct {
	batches   map[string][][]kstore.ThreadMessage
	documents []kstore.Document
	failBatch bool
	failDocs  map[int]bool // fail the nth ingest call (0-based)
	docCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{batches: make(map[string][][]kstore.ThreadMessage)}
}

func (f *fakeStore) AppendMessages(_ context.Context, threadID string, msgs []kstore.ThreadMessage) error {
	if f.failBatch {
		return errors.New("thread append rejected")
	}
	f.batches[threadID] = append(f.batches[threadID], msgs)
	return nil
}

func (f *fakeStore) IngestDocument(_ context.Context, doc kstore.Document) error {
	call := f.docCalls
	f.docCalls++
	if f.failDocs[call] {
		return errors.New("document rejected")
	}
	f.documents = append(f.documents, doc)
	return nil
}

type fakeEntities struct {
	calls int
}

func (f *fakeEntities) Run(_ context.Context, _, _ string) (bool, gate.Result) {
	f.calls++
	return true, gate.Result{Success: true}
}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func simpleTranscript(t *testing.T) string {
	return writeTranscript(t,
		`{"type":"user","uuid":"1","message":{"role":"user","content":"Hi"}}`,
		`{"type":"assistant","uuid":"2","parentUuid":"1","message":{"role":"assistant","content":[{"type":"text","text":"Hello"}]}}`,
	)
}

func TestRun_CommitsAndPersistsLedger(t *testing.T) {
	store := newFakeStore()
	ledgerStore := ledger.NewMemStore()
	p := New(store, ledgerStore, nil, nil, zerolog.Nop())

	summary, err := p.Run(context.Background(), Options{
		SessionID:      "s1",
		TranscriptPath: simpleTranscript(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.New != 2 || summary.Committed != 2 {
		t.Fatalf("summary = %+v", summary)
	}

	if len(store.batches["s1"]) != 1 {
		t.Fatalf("batches = %+v", store.batches)
	}
	batch := store.batches["s1"][0]
	if batch[0].Text != "Hi" || batch[1].Text != "Hello" {
		t.Errorf("batch = %+v", batch)
	}

	stored, _ := ledgerStore.Load("s1")
	if !stored["1"] || !stored["2"] {
		t.Errorf("ledger = %v", stored)
	}
}

func TestRun_SecondRunCommitsNothing(t *testing.T) {
	store := newFakeStore()
	ledgerStore := ledger.NewMemStore()
	p := New(store, ledgerStore, nil, nil, zerolog.Nop())
	path := simpleTranscript(t)
	opts := Options{SessionID: "s1", TranscriptPath: path}

	if _, err := p.Run(context.Background(), opts); err != nil {
		t.Fatalf("first run: %v", err)
	}
	summary, err := p.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.Short != 0 || summary.Large != 0 || summary.Committed != 0 {
		t.Fatalf("second identical run must be a no-op, got %+v", summary)
	}
	if len(store.batches["s1"]) != 1 {
		t.Errorf("store saw %d batches, want 1", len(store.batches["s1"]))
	}
}

func TestRun_PreSeededLedgerFilters(t *testing.T) {
	store := newFakeStore()
	ledgerStore := ledger.NewMemStore()
	ledgerStore.Save("s1", map[string]bool{"1": true})
	p := New(store, ledgerStore, nil, nil, zerolog.Nop())

	summary, err := p.Run(context.Background(), Options{
		SessionID:      "s1",
		TranscriptPath: simpleTranscript(t),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.New != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	batch := store.batches["s1"][0]
	if len(batch) != 1 || batch[0].Role != "assistant" {
		t.Errorf("only the assistant message should commit, got %+v", batch)
	}
}

func TestRun_LargeMessagesRoutedToDocuments(t *testing.T) {
	long := strings.Repeat("x", 3000)
	path := writeTranscript(t,
		`{"type":"user","uuid":"1","message":{"role":"user","content":"Hi"}}`,
		fmt.Sprintf(`{"type":"assistant","uuid":"2","parentUuid":"1","message":{"role":"assistant","content":[{"type":"text","text":"%s"}]}}`, long),
	)

	store := newFakeStore()
	p := New(store, ledger.NewMemStore(), nil, nil, zerolog.Nop())
	summary, err := p.Run(context.Background(), Options{
		SessionID:      "s1",
		TranscriptPath: path,
		UserID:         "u-7",
		Names:          parse.Names{User: "User", Assistant: "Claude"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Short != 1 || summary.Large != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(store.documents) != 1 {
		t.Fatalf("documents = %+v", store.documents)
	}
	doc := store.documents[0]
	if doc.Scope != "u-7" {
		t.Errorf("scope = %q", doc.Scope)
	}
	if !strings.Contains(doc.Title, "3000 chars") || !strings.Contains(doc.Title, "Claude") {
		t.Errorf("title = %q", doc.Title)
	}
}

func TestRun_DocumentFailureSkipsItsIDOnly(t *testing.T) {
	long1 := strings.Repeat("a", 3000)
	long2 := strings.Repeat("b", 3000)
	path := writeTranscript(t,
		fmt.Sprintf(`{"type":"user","uuid":"1","message":{"role":"user","content":"%s"}}`, long1),
		fmt.Sprintf(`{"type":"assistant","uuid":"2","parentUuid":"1","message":{"role":"assistant","content":[{"type":"text","text":"%s"}]}}`, long2),
	)

	store := newFakeStore()
	store.failDocs = map[int]bool{0: true} // first document fails
	ledgerStore := ledger.NewMemStore()
	p := New(store, ledgerStore, nil, nil, zerolog.Nop())

	summary, err := p.Run(context.Background(), Options{SessionID: "s1", TranscriptPath: path})
	if err != nil {
		t.Fatalf("a single document failure must not fail the run: %v", err)
	}
	if summary.Committed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.CommitErrors) != 1 {
		t.Errorf("commit errors = %v", summary.CommitErrors)
	}

	stored, _ := ledgerStore.Load("s1")
	if stored["1"] {
		t.Error("failed message id must not enter the ledger")
	}
	if !stored["2"] {
		t.Error("succeeded message id must enter the ledger")
	}
}

func TestRun_BatchFailureLeavesLedgerUntouched(t *testing.T) {
	store := newFakeStore()
	store.failBatch = true
	ledgerStore := ledger.NewMemStore()
	p := New(store, ledgerStore, nil, nil, zerolog.Nop())

	summary, err := p.Run(context.Background(), Options{
		SessionID:      "s1",
		TranscriptPath: simpleTranscript(t),
	})
	if err != nil {
		t.Fatalf("batch failure is not fatal to the invocation: %v", err)
	}
	if summary.Committed != 0 || len(summary.CommitErrors) == 0 {
		t.Fatalf("summary = %+v", summary)
	}

	stored, _ := ledgerStore.Load("s1")
	if len(stored) != 0 {
		t.Errorf("nothing committed, ledger must stay empty: %v", stored)
	}
}

func TestRun_MissingTranscriptFatal(t *testing.T) {
	p := New(newFakeStore(), ledger.NewMemStore(), nil, nil, zerolog.Nop())
	_, err := p.Run(context.Background(), Options{
		SessionID:      "s1",
		TranscriptPath: filepath.Join(t.TempDir(), "missing.jsonl"),
	})
	if err == nil {
		t.Fatal("unreadable transcript must be fatal")
	}
}

func TestRun_EntityRunnerInvoked(t *testing.T) {
	ent := &fakeEntities{}
	p := New(newFakeStore(), ledger.NewMemStore(), ent, nil, zerolog.Nop())

	summary, err := p.Run(context.Background(), Options{
		SessionID:      "s1",
		TranscriptPath: simpleTranscript(t),
		ProjectPath:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ent.calls != 1 || !summary.EntityRan {
		t.Errorf("entity runner calls = %d, summary = %+v", ent.calls, summary)
	}
}
