// Package txn reconstructs the current conversational transaction from a
// parsed transcript by walking parent pointers backward from the most
// recent assistant message.
package txn

import "github.com/engramdev/engram/internal/parse"

// Reconstruct assembles the minimal user→assistant exchange ending at the
// last assistant message. Records supply parent pointers for ancestors
// that produced no Message (tool results and the like), so the walk can
// skip over them. When the transcript has no assistant message the whole
// message list is returned unchanged; nothing bounds the transaction then.
//
// The walk stops as soon as a user message becomes the head of the
// accumulated chain. A visited set guarantees termination even when
// parent pointers form a cycle or leave the known record set; the walk
// then returns whatever it accumulated.
func Reconstruct(messages []parse.Message, records []parse.Record) []parse.Message {
	if len(messages) == 0 {
		return nil
	}

	tailIdx := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" {
			tailIdx = i
			break
		}
	}
	if tailIdx < 0 {
		out := make([]parse.Message, len(messages))
		copy(out, messages)
		return out
	}

	tail := messages[tailIdx]
	if tail.ID == "" {
		// nothing to walk without an id; the tail alone is the exchange
		return []parse.Message{tail}
	}

	byID := make(map[string]parse.Message, len(messages))
	for _, m := range messages {
		if m.ID != "" {
			byID[m.ID] = m
		}
	}
	recParent := make(map[string]string, len(records))
	for _, r := range records {
		if r.ID != "" {
			recParent[r.ID] = r.ParentID
		}
	}

	var chain []parse.Message
	visited := make(map[string]bool, len(messages))
	currentID := tail.ID

	for currentID != "" && !visited[currentID] {
		visited[currentID] = true

		msg, ok := byID[currentID]
		if !ok {
			// content-less ancestor: follow its raw parent pointer, if known
			parent, known := recParent[currentID]
			if !known {
				break
			}
			currentID = parent
			continue
		}

		chain = append([]parse.Message{msg}, chain...)
		if msg.Role == "user" {
			break
		}

		next := msg.ParentID
		if next == "" {
			next = recParent[currentID]
		}
		currentID = next
	}

	return chain
}

// maxStoredMessages caps how much of a long exchange is stored.
const maxStoredMessages = 3

// Cap bounds a transaction for storage: three or fewer messages pass
// through unchanged, longer exchanges keep the opening user message plus
// the last two assistant messages in their original relative order.
func Cap(transaction []parse.Message) []parse.Message {
	if len(transaction) <= maxStoredMessages {
		return transaction
	}

	var capped []parse.Message
	for _, m := range transaction {
		if m.Role == "user" {
			capped = append(capped, m)
			break
		}
	}

	var assistants []parse.Message
	for _, m := range transaction {
		if m.Role == "assistant" {
			assistants = append(assistants, m)
		}
	}
	if len(assistants) > 2 {
		assistants = assistants[len(assistants)-2:]
	}

	return append(capped, assistants...)
}
