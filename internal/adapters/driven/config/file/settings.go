package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

// fileSettings mirrors the TOML layout of the config file. Zero values mean
// "use the default"; only fields the user sets override DefaultAppSettings.
type fileSettings struct {
	Embedding struct {
		Provider   string `toml:"provider"`
		Model      string `toml:"model"`
		BaseURL    string `toml:"base_url"`
		APIKey     string `toml:"api_key"`
		Dimensions int    `toml:"dimensions"`
	} `toml:"embedding"`

	Generation struct {
		Provider string `toml:"provider"`
		Model    string `toml:"model"`
		BaseURL  string `toml:"base_url"`
		APIKey   string `toml:"api_key"`
	} `toml:"generation"`

	Indexing struct {
		ChunkSize    int    `toml:"chunk_size"`
		ChunkOverlap int    `toml:"chunk_overlap"`
		BatchSize    int    `toml:"batch_size"`
		MaxRetries   int    `toml:"max_retries"`
		RetryDelay   string `toml:"retry_delay"`
		Concurrency  int    `toml:"concurrency"`
	} `toml:"indexing"`

	Query struct {
		TopK                 int     `toml:"top_k"`
		MinScore             float64 `toml:"min_score"`
		TokenBudget          int     `toml:"token_budget"`
		HistoryWindow        int     `toml:"history_window"`
		CacheTTL             string  `toml:"cache_ttl"`
		AnswerWithoutContext *bool   `toml:"answer_without_context"`
	} `toml:"query"`
}

// LoadSettings reads engine settings from configDir/config.toml, layered over
// the defaults, with environment variables taking final precedence for
// credentials. A .env file next to the config is loaded first if present.
// A missing config file yields the defaults.
func LoadSettings(configDir string) (domain.AppSettings, error) {
	settings := domain.DefaultAppSettings()

	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return settings, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".veritas-rag")
	}

	// A missing .env is the common case and not an error.
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err == nil {
		logger.Debug("Loaded environment from %s", filepath.Join(configDir, ".env"))
	}

	path := filepath.Join(configDir, "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&settings)
			return settings, nil
		}
		return settings, fmt.Errorf("reading config: %w", err)
	}

	var fs fileSettings
	if err := toml.Unmarshal(data, &fs); err != nil {
		return settings, fmt.Errorf("parsing config: %w", err)
	}

	applyFileSettings(&settings, fs)
	applyEnvOverrides(&settings)

	if err := validate(settings); err != nil {
		return settings, err
	}
	return settings, nil
}

// applyFileSettings overlays non-zero file values onto settings.
func applyFileSettings(settings *domain.AppSettings, fs fileSettings) {
	if fs.Embedding.Provider != "" {
		settings.Embedding.Provider = domain.AIProvider(fs.Embedding.Provider)
	}
	if fs.Embedding.Model != "" {
		settings.Embedding.Model = fs.Embedding.Model
	}
	if fs.Embedding.BaseURL != "" {
		settings.Embedding.BaseURL = fs.Embedding.BaseURL
	}
	if fs.Embedding.APIKey != "" {
		settings.Embedding.APIKey = fs.Embedding.APIKey
	}
	if fs.Embedding.Dimensions > 0 {
		settings.Embedding.Dimensions = fs.Embedding.Dimensions
	}

	if fs.Generation.Provider != "" {
		settings.Generation.Provider = domain.AIProvider(fs.Generation.Provider)
	}
	if fs.Generation.Model != "" {
		settings.Generation.Model = fs.Generation.Model
	}
	if fs.Generation.BaseURL != "" {
		settings.Generation.BaseURL = fs.Generation.BaseURL
	}
	if fs.Generation.APIKey != "" {
		settings.Generation.APIKey = fs.Generation.APIKey
	}

	if fs.Indexing.ChunkSize > 0 {
		settings.Indexing.ChunkSize = fs.Indexing.ChunkSize
	}
	if fs.Indexing.ChunkOverlap > 0 {
		settings.Indexing.ChunkOverlap = fs.Indexing.ChunkOverlap
	}
	if fs.Indexing.BatchSize > 0 {
		settings.Indexing.BatchSize = fs.Indexing.BatchSize
	}
	if fs.Indexing.MaxRetries > 0 {
		settings.Indexing.MaxRetries = fs.Indexing.MaxRetries
	}
	if d, err := time.ParseDuration(fs.Indexing.RetryDelay); err == nil && d > 0 {
		settings.Indexing.RetryDelay = d
	}
	if fs.Indexing.Concurrency > 0 {
		settings.Indexing.Concurrency = fs.Indexing.Concurrency
	}

	if fs.Query.TopK > 0 {
		settings.Query.TopK = fs.Query.TopK
	}
	if fs.Query.MinScore > 0 {
		settings.Query.MinScore = fs.Query.MinScore
	}
	if fs.Query.TokenBudget > 0 {
		settings.Query.TokenBudget = fs.Query.TokenBudget
	}
	if fs.Query.HistoryWindow > 0 {
		settings.Query.HistoryWindow = fs.Query.HistoryWindow
	}
	if d, err := time.ParseDuration(fs.Query.CacheTTL); err == nil && d > 0 {
		settings.Query.CacheTTL = d
	}
	if fs.Query.AnswerWithoutContext != nil {
		settings.Query.AnswerWithoutContext = *fs.Query.AnswerWithoutContext
	}
}

// applyEnvOverrides lets credentials live in the environment rather than in
// a file on disk.
func applyEnvOverrides(settings *domain.AppSettings) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if settings.Embedding.Provider == domain.AIProviderOpenAI && settings.Embedding.APIKey == "" {
			settings.Embedding.APIKey = key
		}
		if settings.Generation.Provider == domain.AIProviderOpenAI && settings.Generation.APIKey == "" {
			settings.Generation.APIKey = key
		}
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if settings.Generation.Provider == domain.AIProviderAnthropic && settings.Generation.APIKey == "" {
			settings.Generation.APIKey = key
		}
	}
	if url := os.Getenv("OLLAMA_HOST"); url != "" {
		if settings.Embedding.Provider == domain.AIProviderOllama && settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = url
		}
		if settings.Generation.Provider == domain.AIProviderOllama && settings.Generation.BaseURL == "" {
			settings.Generation.BaseURL = url
		}
	}
}

// validate rejects configurations the engine cannot run with.
func validate(settings domain.AppSettings) error {
	if !settings.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if !settings.Generation.Provider.IsValid() {
		return fmt.Errorf("%w: unknown generation provider %q", domain.ErrInvalidInput, settings.Generation.Provider)
	}
	if settings.Indexing.ChunkOverlap >= settings.Indexing.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap %d must be smaller than chunk_size %d",
			domain.ErrInvalidInput, settings.Indexing.ChunkOverlap, settings.Indexing.ChunkSize)
	}
	if settings.Query.MinScore < 0 || settings.Query.MinScore > 1 {
		return fmt.Errorf("%w: min_score %.2f must be within [0, 1]", domain.ErrInvalidInput, settings.Query.MinScore)
	}
	return nil
}
