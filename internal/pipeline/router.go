package pipeline

import (
	"unicode/utf8"

	"github.com/engramdev/engram/internal/parse"
)

// Route partitions messages by size: text at or under threshold
// characters goes to the batched thread-append path, anything longer is
// ingested individually as a document. The two downstream paths have
// different payload limits, which is the only reason this split exists.
func Route(messages []parse.Message, threshold int) (short, large []parse.Message) {
	for _, m := range messages {
		if utf8.RuneCountInString(m.Text) <= threshold {
			short = append(short, m)
		} else {
			large = append(large, m)
		}
	}
	return short, large
}
