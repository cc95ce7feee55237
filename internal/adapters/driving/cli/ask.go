package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driving"
)

var (
	askOwner    string
	askDocument string

	historyOwner    string
	historyDocument string
	historyLimit    int
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your documents",
	Long: `Retrieves the most relevant chunks for the question and streams a
generated answer grounded in them. Scope the search to one document with
--document, otherwise all of the owner's completed documents are searched.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent question/answer exchanges",
	RunE:  runHistory,
}

func init() {
	askCmd.Flags().StringVar(&askOwner, "owner", "", "asking user (required)")
	askCmd.Flags().StringVar(&askDocument, "document", "", "restrict the search to one document")
	_ = askCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(askCmd)

	historyCmd.Flags().StringVar(&historyOwner, "owner", "", "user whose history to show (required)")
	historyCmd.Flags().StringVar(&historyDocument, "document", "", "restrict to one document")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of exchanges")
	_ = historyCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(historyCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := initEngine(true); err != nil {
		return err
	}

	// Ctrl-C cancels generation; the partial answer is not persisted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stream, err := chatService.Ask(ctx, driving.AskRequest{
		OwnerID:    askOwner,
		DocumentID: askDocument,
		Question:   args[0],
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoRelevantContext) {
			cmd.Println("Your documents do not appear to cover this topic.")
			return nil
		}
		return fmt.Errorf("ask failed: %w", err)
	}

	for delta := range stream {
		if delta.Err != nil {
			cmd.Println()
			return fmt.Errorf("generation failed: %w", delta.Err)
		}
		if delta.Content != "" {
			cmd.Print(delta.Content)
		}
		if delta.Done {
			cmd.Println()
		}
	}

	if ctx.Err() != nil {
		cmd.Println()
		cmd.Println("(cancelled)")
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := initEngine(false); err != nil {
		return err
	}

	exchanges, err := chatService.History(context.Background(), historyOwner, historyDocument, historyLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	if len(exchanges) == 0 {
		cmd.Println("No exchanges yet.")
		return nil
	}

	for i := range exchanges {
		ex := &exchanges[i]
		cmd.Printf("[%s] Q: %s\n", ex.CreatedAt.Format("2006-01-02 15:04"), ex.Question)
		cmd.Printf("A: %s\n", ex.Answer)
		for _, src := range ex.Sources {
			cmd.Printf("  - %s (chunk %d, score %.2f)\n", src.DocumentName, src.Position, src.Score)
		}
		cmd.Println()
	}
	return nil
}
