package parse

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

type transcriptLine struct {
	Type       string          `json:"type"`
	UUID       string          `json:"uuid"`
	ParentUUID string          `json:"parentUuid"`
	IsMeta     bool            `json:"isMeta"`
	Timestamp  string          `json:"timestamp"`
	Message    json.RawMessage `json:"message"`
}

type transcriptMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentBlock struct {
	Type    string          `json:"type"`
	Text    string          `json:"text"`
	Content json.RawMessage `json:"content"`
}

// ParseFile parses the transcript at path. A read error is fatal for the
// caller; malformed lines inside the file are not.
func ParseFile(path string, names Names) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTranscript(f, names)
}

// ParseTranscript reads newline-delimited JSON records and returns the
// content-bearing messages in transcript order, plus every record that
// carried a uuid (the parent-pointer fallback index for reconstruction).
// Lines that fail to parse are skipped; broken transcripts are expected.
func ParseTranscript(r io.Reader, names Names) (*Result, error) {
	if names.User == "" {
		names.User = DefaultNames.User
	}
	if names.Assistant == "" {
		names.Assistant = DefaultNames.Assistant
	}

	result := &Result{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec transcriptLine
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		if rec.UUID != "" {
			result.Records = append(result.Records, Record{
				Kind:      rec.Type,
				ID:        rec.UUID,
				ParentID:  rec.ParentUUID,
				Timestamp: parseTimestamp(rec.Timestamp),
			})
		}

		if rec.Type == "system" || rec.IsMeta || len(rec.Message) == 0 {
			continue
		}
		if rec.Type != "user" && rec.Type != "assistant" {
			continue
		}

		var msg transcriptMessage
		if err := json.Unmarshal(rec.Message, &msg); err != nil {
			continue
		}

		var text string
		switch rec.Type {
		case "assistant":
			text = extractAssistantText(msg.Content)
		case "user":
			text = extractUserText(msg.Content)
		}
		if text == "" {
			continue
		}

		name := names.User
		if rec.Type == "assistant" {
			name = names.Assistant
		}

		result.Messages = append(result.Messages, Message{
			Role:      rec.Type,
			Name:      name,
			Text:      text,
			ID:        rec.UUID,
			ParentID:  rec.ParentUUID,
			Timestamp: parseTimestamp(rec.Timestamp),
		})
	}

	return result, scanner.Err()
}

// extractAssistantText joins the text blocks of an assistant message.
// Tool-use blocks carry no text field and drop out naturally.
func extractAssistantText(raw json.RawMessage) string {
	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// extractUserText handles both content shapes: a plain string, or a list
// of blocks where tool_result blocks are skipped and the text field is
// preferred over a string content field.
func extractUserText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var blocks []contentBlock
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "tool_result" {
			continue
		}
		if b.Text != "" {
			parts = append(parts, b.Text)
			continue
		}
		var inner string
		if err := json.Unmarshal(b.Content, &inner); err == nil && inner != "" {
			parts = append(parts, inner)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
