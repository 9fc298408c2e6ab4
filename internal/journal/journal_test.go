package journal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndCounts(t *testing.T) {
	j := openTemp(t)

	now := time.Now()
	err := j.RecordCommits([]Record{
		{SessionID: "s1", MsgID: "1", Role: "user", Name: "User", Text: "how do I cap a slice", Chars: 20, Route: RouteBatch, CommittedAt: now},
		{SessionID: "s1", MsgID: "2", Role: "assistant", Name: "Assistant", Text: "use a three-index slice expression", Chars: 34, Route: RouteBatch, CommittedAt: now},
		{SessionID: "s2", MsgID: "3", Role: "assistant", Name: "Assistant", Text: strings.Repeat("long answer ", 300), Chars: 3600, Route: RouteDocument, CommittedAt: now},
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if n, _ := j.MessageCount(); n != 3 {
		t.Errorf("message count = %d, want 3", n)
	}
	if n, _ := j.SessionCount(); n != 2 {
		t.Errorf("session count = %d, want 2", n)
	}
	if n, _ := j.FTSCount(); n != 3 {
		t.Errorf("fts count = %d, want 3 (triggers out of sync)", n)
	}
}

func TestRecordCommits_EmptyNoop(t *testing.T) {
	j := openTemp(t)
	if err := j.RecordCommits(nil); err != nil {
		t.Fatalf("empty record set should be a no-op: %v", err)
	}
}

func TestSearchFTS(t *testing.T) {
	j := openTemp(t)
	j.RecordCommits([]Record{
		{SessionID: "s1", Role: "assistant", Name: "Assistant", Text: "goroutines communicate via channels", Route: RouteBatch, CommittedAt: time.Now()},
		{SessionID: "s2", Role: "user", Name: "User", Text: "what is a mutex", Route: RouteBatch, CommittedAt: time.Now()},
	})

	results, err := j.Search(SearchOptions{Query: "channels"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].SessionID != "s1" {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Snippet, ">>>") {
		t.Errorf("snippet should mark the hit: %q", results[0].Snippet)
	}
}

func TestSearchRoleFilter(t *testing.T) {
	j := openTemp(t)
	j.RecordCommits([]Record{
		{SessionID: "s1", Role: "assistant", Name: "Assistant", Text: "channels again", Route: RouteBatch, CommittedAt: time.Now()},
		{SessionID: "s1", Role: "user", Name: "User", Text: "channels please", Route: RouteBatch, CommittedAt: time.Now()},
	})

	results, err := j.Search(SearchOptions{Query: "channels", Role: "user"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Role != "user" {
		t.Fatalf("results = %+v", results)
	}
}

func TestSearchCJKFallsBackToLike(t *testing.T) {
	j := openTemp(t)
	j.RecordCommits([]Record{
		{SessionID: "s1", Role: "user", Name: "User", Text: "怎么使用通道", Route: RouteBatch, CommittedAt: time.Now()},
	})

	results, err := j.Search(SearchOptions{Query: "通道"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if !strings.Contains(results[0].Snippet, ">>>通道<<<") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}
}

func TestSessionMessages_CommitOrder(t *testing.T) {
	j := openTemp(t)
	now := time.Now()
	j.RecordCommits([]Record{
		{SessionID: "s1", MsgID: "1", Role: "user", Name: "User", Text: "first", Route: RouteBatch, CommittedAt: now},
		{SessionID: "s1", MsgID: "2", Role: "assistant", Name: "Assistant", Text: "second", Route: RouteBatch, CommittedAt: now},
		{SessionID: "s2", MsgID: "3", Role: "user", Name: "User", Text: "other session", Route: RouteBatch, CommittedAt: now},
	})

	records, err := j.SessionMessages("s1")
	if err != nil {
		t.Fatalf("session messages: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].MsgID != "1" || records[1].MsgID != "2" {
		t.Errorf("order = %s, %s", records[0].MsgID, records[1].MsgID)
	}
}

func TestListRecent_OnePerSession(t *testing.T) {
	j := openTemp(t)
	j.RecordCommits([]Record{
		{SessionID: "s1", MsgID: "1", Role: "user", Name: "User", Text: "old", Route: RouteBatch, CommittedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
		{SessionID: "s1", MsgID: "2", Role: "assistant", Name: "Assistant", Text: "newer", Route: RouteBatch, CommittedAt: time.Date(2026, 8, 1, 10, 0, 5, 0, time.UTC)},
		{SessionID: "s2", MsgID: "3", Role: "user", Name: "User", Text: "latest session", Route: RouteBatch, CommittedAt: time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)},
	})

	results, err := j.ListRecent(0)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].SessionID != "s2" {
		t.Errorf("newest session first, got %s", results[0].SessionID)
	}
	if results[1].Text != "newer" {
		t.Errorf("s1 entry should be its last commit, got %q", results[1].Text)
	}
}

func TestMakeSnippet_NoMatchReturnsHead(t *testing.T) {
	long := strings.Repeat("a", 200)
	s := makeSnippet(long, "zzz", 30)
	if len(s) >= 200 {
		t.Errorf("snippet should truncate, got %d chars", len(s))
	}
}
