// Package cli provides the command-line interface for the RAG engine.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veritas-labs/veritas-rag/internal/adapters/driven/ai"
	cachememory "github.com/veritas-labs/veritas-rag/internal/adapters/driven/cache/memory"
	configfile "github.com/veritas-labs/veritas-rag/internal/adapters/driven/config/file"
	"github.com/veritas-labs/veritas-rag/internal/adapters/driven/storage/sqlite"
	"github.com/veritas-labs/veritas-rag/internal/chunker"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driving"
	"github.com/veritas-labs/veritas-rag/internal/core/services"
	"github.com/veritas-labs/veritas-rag/internal/dispatch"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

var (
	verbose   bool
	configDir string
	dataDir   string
)

// Services wired by initEngine and consumed by the commands.
var (
	ingestService driving.IngestionService
	chatService   driving.ChatService
	engineStore   *sqlite.Store
	enginePool    *dispatch.Pool
	embeddingSvc  driven.EmbeddingService
	generationSvc driven.GenerationService
)

var rootCmd = &cobra.Command{
	Use:   "veritas-rag",
	Short: "Index documents and ask questions about them",
	Long: `veritas-rag is a retrieval-augmented answering engine.
Documents are chunked, embedded and stored locally; questions are answered
by a language model grounded in the most relevant chunks.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.veritas-rag)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.veritas-rag/data)")
}

// Execute runs the root command.
func Execute() error {
	defer closeEngine()
	return rootCmd.Execute()
}

// initEngine wires storage, providers and services. Commands that need the
// engine call it at the top of their RunE; cheap commands skip it entirely.
// needGeneration controls whether the answer-side provider is required.
func initEngine(needGeneration bool) error {
	if ingestService != nil {
		return nil
	}

	settings, err := configfile.LoadSettings(configDir)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	engineStore = store

	embeddingSvc, err = ai.CreateAndValidateEmbeddingService(settings.Embedding)
	if err != nil {
		return err
	}
	if embeddingSvc == nil {
		return fmt.Errorf("embedding provider is not configured; edit %s", "config.toml")
	}

	if needGeneration {
		generationSvc, err = ai.CreateAndValidateGenerationService(settings.Generation)
		if err != nil {
			return err
		}
		if generationSvc == nil {
			return fmt.Errorf("generation provider is not configured; edit %s", "config.toml")
		}
	}

	docStore := store.DocumentStore()
	vectorIndex := store.VectorIndex()

	embedder := services.NewEmbedder(embeddingSvc, cachememory.New(), settings.Indexing, settings.Query)
	splitter := chunker.New(
		chunker.WithTargetSize(settings.Indexing.ChunkSize),
		chunker.WithOverlap(settings.Indexing.ChunkOverlap),
	)

	enginePool = dispatch.New(dispatch.DefaultWorkers)

	ingestService = services.NewIndexer(docStore, vectorIndex, embedder, splitter, enginePool)

	retriever := services.NewRetriever(embedder, vectorIndex, settings.Query)
	builder := services.NewContextBuilder(docStore, settings.Query)
	chatService = services.NewChat(retriever, builder, generationSvc, store.ChatStore(), settings.Query)

	return nil
}

// closeEngine releases everything initEngine opened.
func closeEngine() {
	if enginePool != nil {
		enginePool.Close()
	}
	if embeddingSvc != nil {
		embeddingSvc.Close()
	}
	if generationSvc != nil {
		generationSvc.Close()
	}
	if engineStore != nil {
		if err := engineStore.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing store: %v\n", err)
		}
	}
}
