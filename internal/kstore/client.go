// Package kstore is the HTTP client for the external knowledge store:
// thread appends, document ingestion, and graph search. The store does no
// deduplication of its own, which is why the ledger exists on our side.
package kstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ThreadMessage is one role/name/text message appended to a thread.
type ThreadMessage struct {
	Role string `json:"role"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// Document is one arbitrary-length blob ingested under a scope
// (a user or project identifier).
type Document struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Scope   string `json:"scope"`
}

// Entity is a scored node returned by graph search, and the payload for
// entity creation.
type Entity struct {
	ID    string  `json:"id,omitempty"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind"`
	Score float64 `json:"score,omitempty"`
}

// Relation is one edge between two entities.
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Client talks to one knowledge-store endpoint.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// AppendMessages appends a batch of messages to the thread in one call.
func (c *Client) AppendMessages(ctx context.Context, threadID string, msgs []ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	body := map[string]any{"messages": msgs}
	return c.post(ctx, "/v1/threads/"+threadID+"/messages", body, nil)
}

// IngestDocument ingests a single document.
func (c *Client) IngestDocument(ctx context.Context, doc Document) error {
	return c.post(ctx, "/v1/documents", doc, nil)
}

// SearchEntities runs a free-text graph search and returns scored nodes.
func (c *Client) SearchEntities(ctx context.Context, query string) ([]Entity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/graph/search?q="+urlQueryEscape(query), nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Entities []Entity `json:"entities"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Entities, nil
}

// CreateEntity creates one entity and returns its id.
func (c *Client) CreateEntity(ctx context.Context, e Entity) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/entities", e, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// CreateRelation creates one edge.
func (c *Client) CreateRelation(ctx context.Context, r Relation) error {
	return c.post(ctx, "/v1/relations", r, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("knowledge store call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s",
			req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func urlQueryEscape(s string) string {
	return url.QueryEscape(s)
}
