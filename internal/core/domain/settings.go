package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions is the expected vector size for Model.
	// Every returned vector is validated against it.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// GenerationSettings holds generation provider configuration.
type GenerationSettings struct {
	// Provider is the generation service provider.
	Provider AIProvider

	// Model is the generation model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the generation provider is set up.
func (g GenerationSettings) IsConfigured() bool {
	if !g.Provider.IsValid() {
		return false
	}
	if g.Provider.RequiresAPIKey() && g.APIKey == "" {
		return false
	}
	return true
}

// IndexingSettings holds chunking and batch embedding configuration.
type IndexingSettings struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int

	// ChunkOverlap is the overlap between adjacent chunks in characters.
	ChunkOverlap int

	// BatchSize is the number of chunks per embedding provider call.
	BatchSize int

	// MaxRetries is the retry limit per batch before the document fails.
	MaxRetries int

	// RetryDelay is the base backoff delay; doubled per attempt.
	RetryDelay time.Duration

	// Concurrency bounds parallel embedding batches within one document.
	Concurrency int
}

// QuerySettings holds retrieval and answering configuration.
type QuerySettings struct {
	// TopK is the number of chunks retrieved per query.
	TopK int

	// MinScore excludes results below this similarity, even within top-k.
	MinScore float64

	// TokenBudget caps the assembled context size in tokens.
	TokenBudget int

	// HistoryWindow bounds how many recent exchanges enter the prompt.
	HistoryWindow int

	// CacheTTL is the query embedding cache lifetime.
	CacheTTL time.Duration

	// AnswerWithoutContext answers from conversation history alone when
	// no chunk clears MinScore; when false the question is declined.
	AnswerWithoutContext bool
}

// AppSettings holds all engine settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// Generation holds generation provider settings.
	Generation GenerationSettings

	// Indexing holds chunking and batching settings.
	Indexing IndexingSettings

	// Query holds retrieval and answering settings.
	Query QuerySettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Providers are left unconfigured; callers must fill in at least the
// embedding provider before indexing.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider:   AIProviderOllama,
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Generation: GenerationSettings{
			Provider: AIProviderOllama,
			Model:    "llama3.2",
		},
		Indexing: IndexingSettings{
			ChunkSize:    1500,
			ChunkOverlap: 200,
			BatchSize:    10,
			MaxRetries:   3,
			RetryDelay:   time.Second,
			Concurrency:  3,
		},
		Query: QuerySettings{
			TopK:                 10,
			MinScore:             0.3,
			TokenBudget:          4000,
			HistoryWindow:        10,
			CacheTTL:             time.Hour,
			AnswerWithoutContext: true,
		},
	}
}
