package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/journal"
	"github.com/engramdev/engram/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify roots, state dirs, journal, FTS5, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			// check roots and state
			fmt.Println("=== Paths ===")
			checkDir("Claude projects", cfg.ClaudeRoot)
			checkDir("Ledger", cfg.LedgerDir())
			checkDir("Entity cache", cfg.EntityCacheDir())
			fmt.Printf("  Endpoint: %s\n", cfg.Endpoint)

			// transcript scan
			fmt.Println("\n=== Transcripts ===")
			files, err := scan.ScanTranscripts(cfg.ClaudeRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				fmt.Printf("  JSONL transcripts: %d\n", len(files))
			}

			// ledger + gate state
			fmt.Println("\n=== State ===")
			fmt.Printf("  Ledger sessions: %d\n", countFiles(cfg.LedgerDir(), ".ids"))
			fmt.Printf("  Gated projects:  %d\n", countFiles(cfg.EntityCacheDir(), ".yaml"))

			// check journal
			fmt.Println("\n=== Journal ===")
			fmt.Printf("  Path: %s\n", cfg.JournalPath)
			if _, err := os.Stat(cfg.JournalPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'engram store' first)")
				return nil
			}

			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			sessionCount, err := j.SessionCount()
			if err != nil {
				return fmt.Errorf("count sessions: %w", err)
			}

			messageCount, err := j.MessageCount()
			if err != nil {
				return fmt.Errorf("count messages: %w", err)
			}

			fmt.Printf("  Sessions: %d\n", sessionCount)
			fmt.Printf("  Messages: %d\n", messageCount)

			// check FTS5
			fmt.Println("\n=== FTS5 ===")
			ftsCount, err := j.FTSCount()
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == messageCount {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (messages=%d, fts=%d)\n", messageCount, ftsCount)
				}
			}

			// check journal file size
			if info, err := os.Stat(cfg.JournalPath); err == nil {
				sizeMB := float64(info.Size()) / 1024 / 1024
				fmt.Printf("\n=== Journal Size: %.1f MB ===\n", sizeMB)
			}

			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}

// countFiles counts regular files with the given extension in dir,
// returning 0 when the dir does not exist yet.
func countFiles(dir, ext string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			n++
		}
	}
	return n
}
