package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/engramdev/engram/internal/parse"
)

const (
	colorReset  = "\033[0m"
	colorUser   = "\033[1;34m" // bold blue
	colorAssist = "\033[1;32m" // bold green
	colorDim    = "\033[2m"
	colorLarge  = "\033[1;33m" // bold yellow for the document route
)

type Options struct {
	Width         int // wrap width (0 = no wrap)
	SizeThreshold int // annotate messages that would go the document path
	ShowIDs       bool
}

// Transaction renders a reconstructed transaction for terminal preview:
// what would be committed, on which route, before anything is sent.
func Transaction(sessionID string, messages []parse.Message, opts Options) string {
	var b strings.Builder
	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
		}
	}

	writeLine(fmt.Sprintf("%s--- session %s: %d message(s) ---%s",
		colorDim, sessionID, len(messages), colorReset))

	separator := colorDim + "--------------------------------------------------" + colorReset
	for i, m := range messages {
		if i > 0 {
			writeLine(separator)
		}

		roleColor := colorUser
		roleLabel := "USER"
		if m.Role == "assistant" {
			roleColor = colorAssist
			roleLabel = "ASST"
		}

		chars := utf8.RuneCountInString(m.Text)
		header := fmt.Sprintf("%s%s >%s %s(%d chars)%s", roleColor, roleLabel, colorReset, colorDim, chars, colorReset)
		if opts.SizeThreshold > 0 && chars > opts.SizeThreshold {
			header += " " + colorLarge + "[document]" + colorReset
		}
		if opts.ShowIDs && m.ID != "" {
			header += " " + colorDim + m.ID + colorReset
		}
		if !m.Timestamp.IsZero() {
			header += " " + colorDim + m.Timestamp.Format("2006-01-02 15:04:05") + colorReset
		}
		writeLine(header)

		for _, tl := range strings.Split(indentLines(m.Text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("")
	}

	return b.String()
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into pieces that fit within maxWidth
// visible columns, skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}
	if len(result) == 0 {
		return []string{""}
	}
	return result
}
