package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/engramdev/engram/internal/journal"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	sessionID string
	msgID     string
	content   string
	hitLine   int
	err       error
}

// loadPreviewCmd returns a tea.Cmd that renders the full committed
// conversation for the result's session async.
func loadPreviewCmd(j *journal.Journal, r journal.SearchResult, query string, width int) tea.Cmd {
	return func() tea.Msg {
		records, err := j.SessionMessages(r.SessionID)
		if err != nil {
			return previewRenderedMsg{sessionID: r.SessionID, msgID: r.MsgID, err: err}
		}
		content, hitLine := renderSession(records, r, query, width)
		return previewRenderedMsg{
			sessionID: r.SessionID,
			msgID:     r.MsgID,
			content:   content,
			hitLine:   hitLine,
		}
	}
}

// renderSession formats a session's committed messages for the preview
// pane and returns the line index of the hit message.
func renderSession(records []journal.Record, hit journal.SearchResult, query string, width int) (string, int) {
	var lines []string
	hitLine := 0

	for i, rec := range records {
		if i > 0 {
			lines = append(lines, "")
		}

		isHit := rec.MsgID != "" && rec.MsgID == hit.MsgID
		if hit.MsgID == "" {
			isHit = rec.Text == hit.Text
		}
		if isHit {
			hitLine = len(lines)
		}

		roleStyle := stylePreviewUser
		label := "USER"
		if rec.Role == "assistant" {
			roleStyle = stylePreviewAssist
			label = "ASST"
		}
		header := fmt.Sprintf("%s (%d chars, %s)", label, rec.Chars, rec.Route)
		lines = append(lines, roleStyle.Render(header))

		for _, tl := range strings.Split(rec.Text, "\n") {
			lines = append(lines, wrapPlain(highlightQuery(tl, query), width)...)
		}
	}

	return strings.Join(lines, "\n"), hitLine
}

// highlightQuery wraps the first match of query in the hit style.
func highlightQuery(line, query string) string {
	if query == "" {
		return line
	}
	idx := strings.Index(strings.ToLower(line), strings.ToLower(query))
	if idx < 0 {
		return line
	}
	end := idx + len(query)
	return line[:idx] + stylePreviewHit.Render(line[idx:end]) + line[end:]
}

// wrapPlain breaks a line into width-sized pieces by display columns.
// Styled segments stay on one piece; lipgloss escapes are not split.
func wrapPlain(line string, width int) []string {
	if width <= 0 || runewidth.StringWidth(line) <= width {
		return []string{line}
	}
	// Lines carrying escape sequences are left unwrapped rather than
	// risking a split mid-sequence.
	if strings.Contains(line, "\033") {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	w := 0
	for _, r := range line {
		rw := runewidth.RuneWidth(r)
		if w+rw > width {
			result = append(result, cur.String())
			cur.Reset()
			w = 0
		}
		cur.WriteRune(r)
		w += rw
	}
	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	return result
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
