package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	EmbedLLM LLMConfig      `yaml:"embed_llm"`
	ChatLLM  LLMConfig      `yaml:"chat_llm"`
	Reranker RerankerConfig `yaml:"reranker"`
	RAG      RAGConfig      `yaml:"rag"`
}

type DatabaseConfig struct {
	Path  string `yaml:"path"`
	Debug bool   `yaml:"debug"`
}

// LLMConfig configures one model endpoint. Provider is "openai" (any
// OpenAI-compatible API, e.g. OpenRouter) or "ollama".
type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RerankerConfig struct {
	BaseURL        string `yaml:"base_url"`
	Key            string `yaml:"key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type RAGConfig struct {
	VectorDBPath         string  `yaml:"vector_db_path"`
	CollectionName       string  `yaml:"collection_name"`
	NotesPath            string  `yaml:"notes_path"`
	HistoryLimit         int     `yaml:"history_limit"`
	MaxPageSize          int     `yaml:"max_page_size"`
	MinPageSize          int     `yaml:"min_page_size"`
	SlidingWindowSize    int     `yaml:"sliding_window_size"`
	SlidingWindowOverlap int     `yaml:"sliding_window_overlap"`
	CandidatePoolSize    int     `yaml:"candidate_pool_size"`
	TopDocuments         int     `yaml:"top_documents"`
	FinalTopK            int     `yaml:"final_top_k"`
	MinChunksPerDoc      int     `yaml:"min_chunks_per_doc"`
	DocScoreWeight       float64 `yaml:"doc_score_weight"`
	CoverageBonus        float64 `yaml:"coverage_bonus"`
	EmbedCacheSize       int     `yaml:"embed_cache_size"`
	EmbedMaxAttempts     int     `yaml:"embed_max_attempts"`
}

const (
	defaultMaxPageSize          = 8000
	defaultMinPageSize          = 100
	defaultSlidingWindowSize    = 1000
	defaultSlidingWindowOverlap = 200
	defaultCandidatePoolSize    = 150
	defaultTopDocuments         = 3
	defaultFinalTopK            = 30
	defaultMinChunksPerDoc      = 1
	defaultDocScoreWeight       = 0.6
	defaultCoverageBonus        = 0.1
	defaultEmbedCacheSize       = 4096
	defaultEmbedMaxAttempts     = 4
)

// LoadConfig reads the YAML config. ${VAR} references are expanded from the
// environment so secrets can live in .env instead of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config with every tunable at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "./data/metadata.db"
	}
	if c.RAG.VectorDBPath == "" {
		c.RAG.VectorDBPath = "./data/chromemdb"
	}
	if c.RAG.CollectionName == "" {
		c.RAG.CollectionName = "knowledge_base"
	}
	if c.RAG.NotesPath == "" {
		c.RAG.NotesPath = "./data/manual_information.txt"
	}
	if c.RAG.HistoryLimit == 0 {
		c.RAG.HistoryLimit = 10
	}
	if c.RAG.MaxPageSize == 0 {
		c.RAG.MaxPageSize = defaultMaxPageSize
	}
	if c.RAG.MinPageSize == 0 {
		c.RAG.MinPageSize = defaultMinPageSize
	}
	if c.RAG.SlidingWindowSize == 0 {
		c.RAG.SlidingWindowSize = defaultSlidingWindowSize
	}
	if c.RAG.SlidingWindowOverlap == 0 {
		c.RAG.SlidingWindowOverlap = defaultSlidingWindowOverlap
	}
	if c.RAG.CandidatePoolSize == 0 {
		c.RAG.CandidatePoolSize = defaultCandidatePoolSize
	}
	if c.RAG.TopDocuments == 0 {
		c.RAG.TopDocuments = defaultTopDocuments
	}
	if c.RAG.FinalTopK == 0 {
		c.RAG.FinalTopK = defaultFinalTopK
	}
	if c.RAG.MinChunksPerDoc == 0 {
		c.RAG.MinChunksPerDoc = defaultMinChunksPerDoc
	}
	if c.RAG.DocScoreWeight == 0 {
		c.RAG.DocScoreWeight = defaultDocScoreWeight
	}
	if c.RAG.CoverageBonus == 0 {
		c.RAG.CoverageBonus = defaultCoverageBonus
	}
	if c.RAG.EmbedCacheSize == 0 {
		c.RAG.EmbedCacheSize = defaultEmbedCacheSize
	}
	if c.RAG.EmbedMaxAttempts == 0 {
		c.RAG.EmbedMaxAttempts = defaultEmbedMaxAttempts
	}
	if c.Reranker.TimeoutSeconds == 0 {
		c.Reranker.TimeoutSeconds = 30
	}
}
