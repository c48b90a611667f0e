package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

const (
	DefaultConfigPath = "./configs/config.yaml"
	DefaultEnvFile    = ".env"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StoreChromem  = "chromem"
	StorePgvector = "pgvector"
)

// Config is built once at startup and treated as read-only afterwards.
// The yaml keys are the lower-case names of the environment variables.
type Config struct {
	APIKey         string `yaml:"openai_api_key" json:"-"`
	Provider       string `yaml:"provider" json:"provider"`
	BaseURL        string `yaml:"openai_base_url" json:"base_url,omitempty"`
	OllamaURL      string `yaml:"ollama_url" json:"ollama_url"`
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	LLMModel       string `yaml:"llm_model" json:"llm_model"`

	DocsDir        string   `yaml:"docs_dir" json:"docs_dir"`
	Extensions     []string `yaml:"doc_extensions" json:"extensions"`
	PersistDir     string   `yaml:"persist_dir" json:"persist_dir"`
	CollectionName string   `yaml:"collection_name" json:"collection_name"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	BatchSize    int `yaml:"batch_size" json:"batch_size"`

	RetrievalK       int     `yaml:"retrieval_k" json:"retrieval_k"`
	MinSimilarity    float64 `yaml:"min_similarity" json:"min_similarity"`
	Temperature      float64 `yaml:"temperature" json:"temperature"`
	MaxHistoryTurns  int     `yaml:"max_history_turns" json:"max_history_turns"`
	CondenseQuestion bool    `yaml:"condense_question" json:"condense_question"`

	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay" json:"retry_delay"`
	GenerationRetries int           `yaml:"generation_retries" json:"generation_retries"`

	VectorStore   string `yaml:"vector_store" json:"vector_store"`
	DatabaseURL   string `yaml:"database_url" json:"-"`
	DatabaseDebug bool   `yaml:"database_debug" json:"database_debug"`
	ExportFile    string `yaml:"export_file" json:"export_file,omitempty"`
	EncryptionKey string `yaml:"encryption_key" json:"-"`
	Compress      bool   `yaml:"compress" json:"compress"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Options tells Load where to look for settings
type Options struct {
	File         string
	FileRequired bool
	EnvFile      string
}

// defaults returns the built-in settings
func defaults() *Config {
	return &Config{
		Provider:       ProviderOpenAI,
		OllamaURL:      "http://localhost:11434",
		EmbeddingModel: "text-embedding-3-small",
		LLMModel:       "gpt-4o-mini",

		DocsDir:        "docs",
		Extensions:     []string{".pdf"},
		PersistDir:     "db",
		CollectionName: models.DefaultCollectionName,

		ChunkSize:    1000,
		ChunkOverlap: 200,
		BatchSize:    100,

		RetrievalK:       4,
		Temperature:      0.1,
		MaxHistoryTurns:  10,
		CondenseQuestion: true,

		MaxRetries:        3,
		RetryDelay:        time.Second,
		GenerationRetries: 1,

		VectorStore: StoreChromem,
		LogLevel:    "info",
	}
}

// Load starts from the defaults and applies the YAML file, the dotfile and
// the environment, in increasing order of precedence, then validates.
func Load(opts Options) (*Config, error) {
	cfg := defaults()
	if err := loadFile(opts.File, opts.FileRequired, cfg); err != nil {
		return nil, err
	}

	if opts.EnvFile != "" {
		// godotenv never overrides variables that are already set
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: failed to load %s: %v", models.ErrConfiguration, opts.EnvFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Provider = strings.ToLower(cfg.Provider)
	cfg.VectorStore = strings.ToLower(cfg.VectorStore)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Extensions = normalizeExtensions(cfg.Extensions)

	return cfg, cfg.Validate()
}

// loadFile decodes the YAML file at path over cfg. Keys missing from the
// file keep the values already in cfg.
func loadFile(path string, required bool, cfg *Config) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("%w: failed to read config file: %v", models.ErrConfiguration, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: failed to parse %s: %v", models.ErrConfiguration, path, err)
	}
	return nil
}

// applyEnv overrides fields with the environment variables that are set
func (c *Config) applyEnv() error {
	e := &envOverlay{}
	e.str("OPENAI_API_KEY", &c.APIKey)
	e.str("PROVIDER", &c.Provider)
	e.str("OPENAI_BASE_URL", &c.BaseURL)
	e.str("OLLAMA_URL", &c.OllamaURL)
	e.str("EMBEDDING_MODEL", &c.EmbeddingModel)
	e.str("LLM_MODEL", &c.LLMModel)

	e.str("DOCS_DIR", &c.DocsDir)
	e.list("DOC_EXTENSIONS", &c.Extensions)
	e.str("PERSIST_DIR", &c.PersistDir)
	e.str("COLLECTION_NAME", &c.CollectionName)

	e.int("CHUNK_SIZE", &c.ChunkSize)
	e.int("CHUNK_OVERLAP", &c.ChunkOverlap)
	e.int("BATCH_SIZE", &c.BatchSize)

	e.int("RETRIEVAL_K", &c.RetrievalK)
	e.float("MIN_SIMILARITY", &c.MinSimilarity)
	e.float("TEMPERATURE", &c.Temperature)
	e.int("MAX_HISTORY_TURNS", &c.MaxHistoryTurns)
	e.bool("CONDENSE_QUESTION", &c.CondenseQuestion)

	e.int("MAX_RETRIES", &c.MaxRetries)
	e.duration("RETRY_DELAY", &c.RetryDelay)
	e.int("GENERATION_RETRIES", &c.GenerationRetries)

	e.str("VECTOR_STORE", &c.VectorStore)
	e.str("DATABASE_URL", &c.DatabaseURL)
	e.bool("DATABASE_DEBUG", &c.DatabaseDebug)
	e.str("EXPORT_FILE", &c.ExportFile)
	e.str("ENCRYPTION_KEY", &c.EncryptionKey)
	e.bool("COMPRESS", &c.Compress)

	e.str("LOG_LEVEL", &c.LogLevel)
	return e.err
}

// Validate checks the invariants between settings
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return configErr("missing required setting OPENAI_API_KEY")
		}
	case ProviderOllama:
	default:
		return configErr("PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, c.Provider)
	}

	positive := []struct {
		key string
		val int
	}{
		{"CHUNK_SIZE", c.ChunkSize},
		{"BATCH_SIZE", c.BatchSize},
		{"RETRIEVAL_K", c.RetrievalK},
		{"MAX_RETRIES", c.MaxRetries},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return configErr("%s must be a positive number, got %d", p.key, p.val)
		}
	}
	if c.ChunkOverlap < 0 {
		return configErr("CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return configErr("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.GenerationRetries < 0 {
		return configErr("GENERATION_RETRIES must not be negative, got %d", c.GenerationRetries)
	}
	if c.MaxHistoryTurns < 0 {
		return configErr("MAX_HISTORY_TURNS must not be negative, got %d", c.MaxHistoryTurns)
	}
	if c.RetryDelay < 0 {
		return configErr("RETRY_DELAY must not be negative, got %s", c.RetryDelay)
	}
	if len(c.Extensions) == 0 {
		return configErr("DOC_EXTENSIONS must list at least one extension")
	}
	for _, ext := range c.Extensions {
		if !parser.Supported(ext) {
			return configErr("DOC_EXTENSIONS contains unsupported extension %q", ext)
		}
	}

	switch c.VectorStore {
	case StoreChromem:
	case StorePgvector:
		if c.DatabaseURL == "" {
			return configErr("DATABASE_URL is required when VECTOR_STORE=%s", StorePgvector)
		}
	default:
		return configErr("VECTOR_STORE must be %q or %q, got %q", StoreChromem, StorePgvector, c.VectorStore)
	}

	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return configErr("ENCRYPTION_KEY must be 32 bytes long")
	}
	if c.ExportFile != "" && c.EncryptionKey == "" {
		return configErr("EXPORT_FILE requires ENCRYPTION_KEY")
	}
	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrConfiguration, fmt.Sprintf(format, args...))
}

// envOverlay keeps the first parse error so every variable is read in one pass
type envOverlay struct {
	err error
}

func (e *envOverlay) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *envOverlay) fail(key, value, kind string) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s=%q is not a valid %s", models.ErrConfiguration, key, value, kind)
	}
}

func (e *envOverlay) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		*dst = v
	}
}

func (e *envOverlay) int(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, "integer")
		return
	}
	*dst = i
}

func (e *envOverlay) float(key string, dst *float64) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, "number")
		return
	}
	*dst = f
}

func (e *envOverlay) bool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "boolean")
		return
	}
	*dst = b
}

func (e *envOverlay) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, "duration")
		return
	}
	*dst = d
}

func (e *envOverlay) list(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
