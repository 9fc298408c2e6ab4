package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/entities"
	"github.com/engramdev/engram/internal/gate"
	"github.com/engramdev/engram/internal/journal"
	"github.com/engramdev/engram/internal/kstore"
	"github.com/engramdev/engram/internal/ledger"
	"github.com/engramdev/engram/internal/parse"
	"github.com/engramdev/engram/internal/pipeline"
	"github.com/engramdev/engram/internal/scan"
)

func storeCmd() *cobra.Command {
	var sessionID, transcript, cwd, logLevel string
	var noEntities bool

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Store the latest transaction of a session in the knowledge store",
		Long: `Parse a Claude Code transcript, reconstruct the transaction that ended
the session's latest exchange, and commit its unstored messages to the
knowledge store. Safe to call repeatedly; already-stored messages are
skipped via the per-session ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				return fmt.Errorf("--session-id is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel == "" {
				logLevel = cfg.LogLevel
			}
			log := newLogger(logLevel)

			if transcript == "" {
				transcript, err = scan.FindTranscript(cfg.ClaudeRoot, sessionID)
				if err != nil {
					return fmt.Errorf("locate transcript: %w", err)
				}
			}
			if cwd == "" {
				cwd, _ = os.Getwd()
			}

			client := kstore.NewClient(cfg.Endpoint, cfg.APIKey, log)

			var runner pipeline.EntityRunner
			if !noEntities {
				g := gate.New(gate.NewFileStore(cfg.EntityCacheDir()))
				runner = entities.NewProcessor(client, g, cfg.ConfidenceThreshold, log)
			}

			// journal failures never block storage
			var j *journal.Journal
			if j, err = journal.Open(cfg.JournalPath); err != nil {
				log.Warn().Err(err).Msg("journal unavailable")
				j = nil
			} else {
				defer j.Close()
			}

			p := pipeline.New(client, ledger.NewFileStore(cfg.LedgerDir()), runner, j, log)
			summary, err := p.Run(cmd.Context(), pipeline.Options{
				SessionID:      sessionID,
				TranscriptPath: transcript,
				ProjectPath:    cwd,
				UserID:         cfg.UserID,
				Names:          parse.Names{User: cfg.UserName, Assistant: cfg.AssistantName},
				SizeThreshold:  cfg.SizeThreshold,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Parsed %d message(s), transaction %d, new %d (%d batch, %d document), committed %d.\n",
				summary.Parsed, summary.Transaction, summary.New,
				summary.Short, summary.Large, summary.Committed)
			for _, e := range summary.CommitErrors {
				fmt.Fprintf(os.Stderr, "  commit error: %s\n", e)
			}
			if summary.EntityRan {
				fmt.Fprintf(os.Stderr, "Entity detection: %d technology(ies), success=%v.\n",
					len(summary.EntityResult.Technologies), summary.EntityResult.Success)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session-id", "", "Session id of the transcript (required)")
	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript path (found via the projects root when empty)")
	cmd.Flags().StringVar(&cwd, "cwd", "", "Project working directory for entity detection (default: current dir)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Diagnostics level (trace/debug/info/warn/error)")
	cmd.Flags().BoolVar(&noEntities, "no-entities", false, "Skip technology/entity detection")

	return cmd
}
