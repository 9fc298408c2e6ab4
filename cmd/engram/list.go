package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/journal"
	"github.com/engramdev/engram/internal/tui"
)

func listCmd() *cobra.Command {
	var role string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Browse stored sessions sorted by last commit time",
		Long:  `Opens a TUI panel showing sessions with committed messages, newest first. Type to search across committed content.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			j, err := journal.Open(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			opts := journal.SearchOptions{
				Role:  role,
				Limit: limit,
			}

			return tui.RunList(j, opts)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Filter by role (user/assistant)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = default)")

	return cmd
}
