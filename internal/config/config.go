package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"docintel/internal/models"
)

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type EmbedderConfig struct {
	Provider    string `yaml:"provider"` // "ollama" or "openai"
	BaseURL     string `yaml:"base_url"`
	APIKey      string `yaml:"api_key"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	MaxRetries  int    `yaml:"max_retries"`
	Concurrency int    `yaml:"concurrency"`
	BatchSize   int    `yaml:"batch_size"`
}

type BlobConfig struct {
	Dir string `yaml:"dir"`
}

type RAGConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type SearchConfig struct {
	Threshold      float64 `yaml:"threshold"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	Limit          int     `yaml:"limit"`
}

type CacheConfig struct {
	Dir        string `yaml:"dir"`
	Collection string `yaml:"collection"`
}

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Blob     BlobConfig     `yaml:"blob"`
	RAG      RAGConfig      `yaml:"rag"`
	Search   SearchConfig   `yaml:"search"`
	Cache    CacheConfig    `yaml:"cache"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = models.EmbeddingDim
	}
	if c.Embedder.MaxRetries == 0 {
		c.Embedder.MaxRetries = 3
	}
	if c.Embedder.Concurrency == 0 {
		c.Embedder.Concurrency = 4
	}
	if c.Embedder.BatchSize == 0 {
		c.Embedder.BatchSize = 32
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 1000
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
	if c.Search.Threshold == 0 {
		c.Search.Threshold = 0.5
	}
	if c.Search.SemanticWeight == 0 {
		c.Search.SemanticWeight = 0.7
	}
	if c.Search.Limit == 0 {
		c.Search.Limit = 20
	}
	if c.Blob.Dir == "" {
		c.Blob.Dir = "./blobs"
	}
	if c.Cache.Collection == "" {
		c.Cache.Collection = "document_chunks"
	}
}
