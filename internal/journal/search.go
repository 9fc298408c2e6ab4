package journal

import (
	"fmt"
	"strings"
	"unicode"
)

type SearchResult struct {
	SessionID   string
	MsgID       string
	Role        string
	Name        string
	Text        string
	Snippet     string
	Route       string
	CommittedAt string
	Rank        float64
}

type SearchOptions struct {
	Query string
	Role  string // "" = all
	Limit int
}

// containsCJK reports whether the query holds CJK ideographs; FTS5's
// unicode61 tokenizer cannot segment those, so we fall back to LIKE.
func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func (j *Journal) Search(opts SearchOptions) ([]SearchResult, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	if containsCJK(opts.Query) {
		return j.searchLike(opts)
	}
	return j.searchFTS(opts)
}

// ListRecent returns the newest committed message per session, most
// recently committed sessions first.
func (j *Journal) ListRecent(limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(`
		SELECT c.session_id, c.msg_id, c.role, c.name, c.text, c.route, c.committed_at
		FROM commits c
		JOIN (
			SELECT session_id, MAX(rowid) AS last
			FROM commits GROUP BY session_id
		) latest ON c.rowid = latest.last
		ORDER BY c.committed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SessionID, &r.MsgID, &r.Role, &r.Name, &r.Text,
			&r.Route, &r.CommittedAt); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(r.Text, "", 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (j *Journal) searchFTS(opts SearchOptions) ([]SearchResult, error) {
	conditions := []string{"commits_fts MATCH ?"}
	args := []interface{}{opts.Query}

	if opts.Role != "" {
		conditions = append(conditions, "c.role = ?")
		args = append(args, opts.Role)
	}

	query := fmt.Sprintf(`
		SELECT
			c.session_id,
			c.msg_id,
			c.role,
			c.name,
			c.text,
			snippet(commits_fts, 0, '>>>', '<<<', '...', 40) AS snip,
			c.route,
			c.committed_at,
			bm25(commits_fts, 1.0) AS rank
		FROM commits_fts
		JOIN commits c ON commits_fts.rowid = c.rowid
		WHERE %s
		ORDER BY rank
		LIMIT ?
	`, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SessionID, &r.MsgID, &r.Role, &r.Name, &r.Text,
			&r.Snippet, &r.Route, &r.CommittedAt, &r.Rank); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (j *Journal) searchLike(opts SearchOptions) ([]SearchResult, error) {
	conditions := []string{"c.text LIKE ?"}
	args := []interface{}{"%" + opts.Query + "%"}

	if opts.Role != "" {
		conditions = append(conditions, "c.role = ?")
		args = append(args, opts.Role)
	}

	query := fmt.Sprintf(`
		SELECT c.session_id, c.msg_id, c.role, c.name, c.text, c.route, c.committed_at
		FROM commits c
		WHERE %s
		ORDER BY c.committed_at DESC
		LIMIT ?
	`, strings.Join(conditions, " AND "))
	args = append(args, opts.Limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.SessionID, &r.MsgID, &r.Role, &r.Name, &r.Text,
			&r.Route, &r.CommittedAt); err != nil {
			return nil, err
		}
		r.Snippet = makeSnippet(r.Text, opts.Query, 30)
		results = append(results, r)
	}
	return results, rows.Err()
}

// makeSnippet extracts context around the first occurrence of query,
// wrapping the match in the same >>> <<< markers snippet() uses.
func makeSnippet(text, query string, contextChars int) string {
	lower := strings.ToLower(text)
	idx := -1
	if query != "" {
		idx = strings.Index(lower, strings.ToLower(query))
	}
	if idx < 0 {
		runes := []rune(text)
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}

	runes := []rune(text)
	qLen := len([]rune(query))
	runePos := len([]rune(text[:idx]))

	start := runePos - contextChars
	if start < 0 {
		start = 0
	}
	end := runePos + qLen + contextChars
	if end > len(runes) {
		end = len(runes)
	}

	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	return prefix +
		string(runes[start:runePos]) +
		">>>" + string(runes[runePos:runePos+qLen]) + "<<<" +
		string(runes[runePos+qLen:end]) +
		suffix
}
