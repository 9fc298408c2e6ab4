package parse

import "time"

// Record is one JSONL line of a transcript, kept after parsing so the
// transaction walk can follow parent pointers through records that
// produced no Message (tool results, meta records).
type Record struct {
	Kind      string // "user", "assistant", "system", or anything else
	ID        string
	ParentID  string
	Timestamp time.Time
}

// Message is a normalized content-bearing turn. Text is trimmed and
// never empty; ID may be empty when the source record carried no uuid.
type Message struct {
	Role      string // "user" or "assistant"
	Name      string // display name used when committing downstream
	Text      string
	ID        string
	ParentID  string
	Timestamp time.Time
}

// Names maps roles to the display names attached to Messages.
type Names struct {
	User      string
	Assistant string
}

// DefaultNames is used when the caller passes a zero Names.
var DefaultNames = Names{User: "User", Assistant: "Assistant"}

// Result is the parser output: messages in transcript order plus the raw
// records they were derived from.
type Result struct {
	Messages []Message
	Records  []Record
}
