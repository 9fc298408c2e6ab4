// Package pipeline runs one transcript-storage invocation end to end:
// parse, reconstruct, dedupe against the ledger, route by size, commit to
// the knowledge store, persist the ledger, and mirror into the local
// journal. Entity processing runs concurrently behind its gate.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/engramdev/engram/internal/gate"
	"github.com/engramdev/engram/internal/journal"
	"github.com/engramdev/engram/internal/kstore"
	"github.com/engramdev/engram/internal/ledger"
	"github.com/engramdev/engram/internal/parse"
	"github.com/engramdev/engram/internal/txn"
)

// Store is the slice of the knowledge store the pipeline writes to.
type Store interface {
	AppendMessages(ctx context.Context, threadID string, msgs []kstore.ThreadMessage) error
	IngestDocument(ctx context.Context, doc kstore.Document) error
}

// EntityRunner runs gated entity processing; nil disables it.
type EntityRunner interface {
	Run(ctx context.Context, projectPath, sessionID string) (bool, gate.Result)
}

// Options carries the per-invocation inputs.
type Options struct {
	SessionID      string
	TranscriptPath string
	ProjectPath    string // working directory of the session; "" skips entities
	UserID         string // scope for large-document ingestion
	Names          parse.Names
	SizeThreshold  int // characters; messages above go the document path
}

// Summary reports what one run did.
type Summary struct {
	Parsed       int
	Transaction  int
	New          int
	Short        int
	Large        int
	Committed    int
	CommitErrors []string
	EntityRan    bool
	EntityResult gate.Result
}

type Pipeline struct {
	store    Store
	ledger   ledger.Store
	entities EntityRunner
	journal  *journal.Journal // optional, best-effort
	log      zerolog.Logger
}

func New(store Store, ledgerStore ledger.Store, entities EntityRunner, j *journal.Journal, log zerolog.Logger) *Pipeline {
	return &Pipeline{store: store, ledger: ledgerStore, entities: entities, journal: j, log: log}
}

// Run executes one ingestion. Only an unreadable transcript is fatal;
// commit failures are logged, reported in the summary, and leave the
// affected ids out of the ledger so the next run retries them.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Summary, error) {
	if opts.SessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if opts.SizeThreshold <= 0 {
		opts.SizeThreshold = 2400
	}

	parsed, err := parse.ParseFile(opts.TranscriptPath, opts.Names)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	// entity processing is independent of message storage; overlap them
	type entityOutcome struct {
		ran    bool
		result gate.Result
	}
	var entityCh chan entityOutcome
	if p.entities != nil && opts.ProjectPath != "" {
		entityCh = make(chan entityOutcome, 1)
		go func() {
			ran, result := p.entities.Run(ctx, opts.ProjectPath, opts.SessionID)
			entityCh <- entityOutcome{ran: ran, result: result}
		}()
	}

	summary := &Summary{Parsed: len(parsed.Messages)}

	transaction := txn.Cap(txn.Reconstruct(parsed.Messages, parsed.Records))
	summary.Transaction = len(transaction)

	stored, err := p.ledger.Load(opts.SessionID)
	if err != nil {
		p.log.Warn().Err(err).Msg("ledger unreadable, treating as empty")
		stored = map[string]bool{}
	}

	fresh := ledger.FilterNew(transaction, stored)
	summary.New = len(fresh)

	short, large := Route(fresh, opts.SizeThreshold)
	summary.Short = len(short)
	summary.Large = len(large)

	committed := p.commit(ctx, opts, short, large, summary)

	if len(committed) > 0 {
		for _, c := range committed {
			if c.msg.ID != "" {
				stored[c.msg.ID] = true
			}
		}
		// persisted only after the commits above succeeded; a crash in
		// between just means a harmless re-send next run
		if err := p.ledger.Save(opts.SessionID, stored); err != nil {
			p.log.Warn().Err(err).Msg("ledger write failed; messages may be re-sent")
		}
		p.record(opts, committed)
	}

	if entityCh != nil {
		outcome := <-entityCh
		summary.EntityRan = outcome.ran
		summary.EntityResult = outcome.result
	}

	return summary, nil
}

type committedMsg struct {
	msg   parse.Message
	route string
}

// commit pushes the short batch and each large message, returning the
// messages that made it downstream and which path carried each.
func (p *Pipeline) commit(ctx context.Context, opts Options, short, large []parse.Message, summary *Summary) []committedMsg {
	var committed []committedMsg

	if len(short) > 0 {
		batch := make([]kstore.ThreadMessage, 0, len(short))
		for _, m := range short {
			batch = append(batch, kstore.ThreadMessage{Role: m.Role, Name: m.Name, Text: m.Text})
		}
		if err := p.store.AppendMessages(ctx, opts.SessionID, batch); err != nil {
			p.log.Error().Err(err).Int("messages", len(short)).Msg("batch append failed")
			summary.CommitErrors = append(summary.CommitErrors, fmt.Sprintf("batch append: %v", err))
		} else {
			for _, m := range short {
				committed = append(committed, committedMsg{msg: m, route: journal.RouteBatch})
			}
		}
	}

	for _, m := range large {
		chars := len([]rune(m.Text))
		doc := kstore.Document{
			ID:      uuid.NewString(),
			Title:   fmt.Sprintf("%s message (%d chars)", m.Name, chars),
			Content: m.Text,
			Scope:   opts.UserID,
		}
		if err := p.store.IngestDocument(ctx, doc); err != nil {
			// one oversized message failing must not sink the rest
			p.log.Error().Err(err).Str("id", m.ID).Int("chars", chars).Msg("document ingest failed")
			summary.CommitErrors = append(summary.CommitErrors, fmt.Sprintf("document %s: %v", m.ID, err))
			continue
		}
		committed = append(committed, committedMsg{msg: m, route: journal.RouteDocument})
	}

	summary.Committed = len(committed)
	return committed
}

func (p *Pipeline) record(opts Options, committed []committedMsg) {
	if p.journal == nil {
		return
	}

	now := time.Now()
	records := make([]journal.Record, 0, len(committed))
	for _, c := range committed {
		records = append(records, journal.Record{
			SessionID:   opts.SessionID,
			MsgID:       c.msg.ID,
			Role:        c.msg.Role,
			Name:        c.msg.Name,
			Text:        c.msg.Text,
			Chars:       len([]rune(c.msg.Text)),
			Route:       c.route,
			CommittedAt: now,
		})
	}
	if err := p.journal.RecordCommits(records); err != nil {
		p.log.Warn().Err(err).Msg("journal write failed")
	}
}
