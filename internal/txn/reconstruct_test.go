package txn

import (
	"fmt"
	"testing"

	"github.com/engramdev/engram/internal/parse"
)

func msg(role, id, parentID, text string) parse.Message {
	return parse.Message{Role: role, ID: id, ParentID: parentID, Text: text}
}

func ids(messages []parse.Message) []string {
	var out []string
	for _, m := range messages {
		out = append(out, m.ID)
	}
	return out
}

func assertIDs(t *testing.T, got []parse.Message, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("got %v, want %v", ids(got), want)
		}
	}
}

func TestReconstruct_Empty(t *testing.T) {
	if got := Reconstruct(nil, nil); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func TestReconstruct_SimpleExchange(t *testing.T) {
	messages := []parse.Message{
		msg("user", "1", "", "Hi"),
		msg("assistant", "2", "1", "Hello"),
	}
	got := Reconstruct(messages, nil)
	assertIDs(t, got, "1", "2")
	if got[0].Text != "Hi" || got[1].Text != "Hello" {
		t.Errorf("texts = %q, %q", got[0].Text, got[1].Text)
	}
}

func TestReconstruct_StopsAtLatestExchange(t *testing.T) {
	// two full exchanges; only the second should be reconstructed
	messages := []parse.Message{
		msg("user", "1", "", "first question"),
		msg("assistant", "2", "1", "first answer"),
		msg("user", "3", "2", "second question"),
		msg("assistant", "4", "3", "second answer"),
	}
	got := Reconstruct(messages, nil)
	assertIDs(t, got, "3", "4")
}

func TestReconstruct_NoAssistantFallsBackToAll(t *testing.T) {
	messages := []parse.Message{
		msg("user", "1", "", "a"),
		msg("user", "2", "1", "b"),
	}
	got := Reconstruct(messages, nil)
	assertIDs(t, got, "1", "2")
}

func TestReconstruct_SkipsContentlessAncestors(t *testing.T) {
	// record "t" (a tool result) sits between the user message and the
	// assistant tail; it produced no Message but its parent pointer must
	// be followed
	messages := []parse.Message{
		msg("user", "1", "", "run it"),
		msg("assistant", "3", "t", "ran"),
	}
	records := []parse.Record{
		{Kind: "user", ID: "1"},
		{Kind: "user", ID: "t", ParentID: "1"},
		{Kind: "assistant", ID: "3", ParentID: "t"},
	}
	got := Reconstruct(messages, records)
	assertIDs(t, got, "1", "3")
}

func TestReconstruct_UnknownParentTerminates(t *testing.T) {
	messages := []parse.Message{
		msg("assistant", "2", "missing", "orphan"),
	}
	got := Reconstruct(messages, []parse.Record{{ID: "2", ParentID: "missing"}})
	assertIDs(t, got, "2")
}

func TestReconstruct_CycleTerminates(t *testing.T) {
	messages := []parse.Message{
		msg("assistant", "a", "b", "x"),
		msg("assistant", "b", "a", "y"),
	}
	got := Reconstruct(messages, nil)
	// walk must terminate; it accumulates each node at most once
	if len(got) > len(messages) {
		t.Fatalf("walk visited more nodes than exist: %v", ids(got))
	}
}

func TestReconstruct_TerminationBound(t *testing.T) {
	// every message points at the next forming a long chain ending in a
	// self-cycle; the walk must finish and never repeat an id
	var messages []parse.Message
	for i := 0; i < 50; i++ {
		parent := fmt.Sprintf("m%d", i+1)
		if i == 49 {
			parent = "m49" // self cycle at the root
		}
		messages = append(messages, msg("assistant", fmt.Sprintf("m%d", i), parent, "t"))
	}
	// tail is the last assistant, which is the cycle node itself
	got := Reconstruct(messages, nil)
	seen := map[string]bool{}
	for _, m := range got {
		if seen[m.ID] {
			t.Fatalf("id %s appears twice", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestCap_ShortUnchanged(t *testing.T) {
	transaction := []parse.Message{
		msg("user", "1", "", "q"),
		msg("assistant", "2", "1", "a"),
	}
	got := Cap(transaction)
	assertIDs(t, got, "1", "2")
}

func TestCap_LongExchange(t *testing.T) {
	transaction := []parse.Message{
		msg("user", "1", "", "opening question"),
		msg("assistant", "2", "1", "a1"),
		msg("user", "3", "2", "followup"),
		msg("assistant", "4", "3", "a2"),
		msg("assistant", "5", "4", "a3"),
	}
	got := Cap(transaction)
	assertIDs(t, got, "1", "4", "5")
	if got[0].Text != "opening question" {
		t.Errorf("first element should be the first user message, got %q", got[0].Text)
	}
}

func TestCap_NeverLongerThanThree(t *testing.T) {
	var transaction []parse.Message
	for i := 0; i < 20; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		transaction = append(transaction, msg(role, fmt.Sprintf("%d", i), "", "t"))
	}
	if got := Cap(transaction); len(got) > 3 {
		t.Fatalf("capped length %d > 3", len(got))
	}
}
