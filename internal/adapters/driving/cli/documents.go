package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

var (
	documentsOwner string
	documentsJSON  bool
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Manage indexed documents",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents for an owner",
	RunE:  runDocumentsList,
}

var documentsStatusCmd = &cobra.Command{
	Use:   "status [document-id]",
	Short: "Show a document's indexing status",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsStatus,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document, its chunks and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsListCmd.Flags().StringVar(&documentsOwner, "owner", "", "owner whose documents to list (required)")
	documentsListCmd.Flags().BoolVar(&documentsJSON, "json", false, "output as JSON")
	_ = documentsListCmd.MarkFlagRequired("owner")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsStatusCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, args []string) error {
	if err := initEngine(false); err != nil {
		return err
	}

	docs, err := ingestService.List(context.Background(), documentsOwner)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}

	if documentsJSON {
		data, err := json.MarshalIndent(docs, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal documents: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}

	for i := range docs {
		printDocument(cmd, &docs[i])
	}
	return nil
}

func runDocumentsStatus(cmd *cobra.Command, args []string) error {
	if err := initEngine(false); err != nil {
		return err
	}

	doc, err := ingestService.Status(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("getting status: %w", err)
	}

	printDocument(cmd, doc)
	if doc.Status == domain.StatusFailed && doc.ErrorDetail != "" {
		cmd.Printf("  error: %s\n", doc.ErrorDetail)
	}
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := initEngine(false); err != nil {
		return err
	}

	if err := ingestService.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	cmd.Printf("Document %s deleted\n", args[0])
	return nil
}

func printDocument(cmd *cobra.Command, doc *domain.Document) {
	cmd.Printf("%s  %-10s  %s", doc.ID, doc.Status, doc.Name)
	if doc.Status == domain.StatusCompleted {
		cmd.Printf("  (%d chunks, %s)", doc.NumChunks, doc.EmbeddingModel)
	}
	cmd.Println()
}
