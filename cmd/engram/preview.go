package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/parse"
	"github.com/engramdev/engram/internal/render"
	"github.com/engramdev/engram/internal/scan"
	"github.com/engramdev/engram/internal/txn"
)

func previewCmd() *cobra.Command {
	var transcript string
	var width int
	var showIDs bool

	cmd := &cobra.Command{
		Use:   "preview <sessionId>",
		Short: "Show what 'store' would commit for a session, without committing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if transcript == "" {
				transcript, err = scan.FindTranscript(cfg.ClaudeRoot, args[0])
				if err != nil {
					return fmt.Errorf("locate transcript: %w", err)
				}
			}

			names := parse.Names{User: cfg.UserName, Assistant: cfg.AssistantName}
			parsed, err := parse.ParseFile(transcript, names)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			transaction := txn.Cap(txn.Reconstruct(parsed.Messages, parsed.Records))
			out := render.Transaction(args[0], transaction, render.Options{
				Width:         width,
				SizeThreshold: cfg.SizeThreshold,
				ShowIDs:       showIDs,
			})
			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&transcript, "transcript", "", "Transcript path (found via the projects root when empty)")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 = no wrap)")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show message ids")

	return cmd
}
