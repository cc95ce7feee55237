package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

var (
	ingestOwner string
	ingestName  string
	ingestWait  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Index a document for question answering",
	Long: `Reads extracted text from a file, registers it as a document and runs
the indexing pipeline: chunk, embed, store vectors. By default the command
waits for indexing to finish and reports the final status.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [document-id]",
	Short: "Re-run indexing for a failed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runReindex,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner of the document (required)")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "display name (defaults to the file name)")
	ingestCmd.Flags().BoolVar(&ingestWait, "wait", true, "wait for indexing to finish")
	_ = ingestCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := initEngine(false); err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	name := ingestName
	if name == "" {
		name = filepath.Base(path)
	}

	ctx := context.Background()
	doc, err := ingestService.Ingest(ctx, ingestOwner, name, string(data))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Document %s registered (%s)\n", doc.ID, doc.Status)

	if !ingestWait || doc.Status.Terminal() {
		return nil
	}

	enginePool.Wait()

	final, err := ingestService.Status(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("checking status: %w", err)
	}

	switch final.Status {
	case domain.StatusCompleted:
		cmd.Printf("Indexed %d chunks with %s\n", final.NumChunks, final.EmbeddingModel)
	case domain.StatusFailed:
		return fmt.Errorf("indexing failed: %s", final.ErrorDetail)
	default:
		cmd.Printf("Document is %s\n", final.Status)
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	if err := initEngine(false); err != nil {
		return err
	}

	ctx := context.Background()
	if err := ingestService.Reindex(ctx, args[0]); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	enginePool.Wait()

	final, err := ingestService.Status(ctx, args[0])
	if err != nil {
		return fmt.Errorf("checking status: %w", err)
	}
	if final.Status == domain.StatusFailed {
		return fmt.Errorf("indexing failed: %s", final.ErrorDetail)
	}

	cmd.Printf("Document %s is %s\n", final.ID, final.Status)
	return nil
}
