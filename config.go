package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogFile        string   `yaml:"log"`
	ServerAddr     string   `yaml:"server_addr"`
	McpAddr        string   `yaml:"mcp_addr"`
	UploadDir      string   `yaml:"upload_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MergeEventsMs  int      `yaml:"write_debounce_ms"`

	VectorStore string `yaml:"vector_store"`
	Chroma      struct {
		Url        string `yaml:"url"`
		Collection string `yaml:"collection"`
	} `yaml:"chroma"`

	Embedding struct {
		Model string `yaml:"model"`
	} `yaml:"embedding"`
	Llm struct {
		Model string `yaml:"model"`
	} `yaml:"llm"`

	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	RetrievalK          int     `yaml:"retrieval_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	Dedup               struct {
		Enabled           *bool   `yaml:"enabled"`
		MaxPerPage        int     `yaml:"max_per_page"`
		ContentSimilarity float64 `yaml:"content_similarity"`
	} `yaml:"dedup"`
	MaxHistory         int `yaml:"max_history"`
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`
	RequestSize        int `yaml:"request_size"`
}

func readConfig(cfgPath string) (*Config, error) {
	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer cfgFile.Close()

	cfg := &Config{}
	dec := yaml.NewDecoder(cfgFile)
	err = dec.Decode(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}

	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MergeEventsMs <= 0 {
		c.MergeEventsMs = 500
	}
	if c.VectorStore == "" {
		c.VectorStore = "memory"
	}
	if c.Chroma.Url == "" {
		c.Chroma.Url = "http://localhost:8000"
	}
	if c.Chroma.Collection == "" {
		c.Chroma.Collection = "documents"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-004"
	}
	if c.Llm.Model == "" {
		c.Llm.Model = "gemini-2.0-flash"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = 200
	}
	if c.RetrievalK <= 0 {
		c.RetrievalK = 5
	}
	if c.SimilarityThreshold == 0 {
		c.SimilarityThreshold = 0.7
	}
	if c.Dedup.Enabled == nil {
		enabled := true
		c.Dedup.Enabled = &enabled
	}
	if c.Dedup.MaxPerPage <= 0 {
		c.Dedup.MaxPerPage = 2
	}
	if c.Dedup.ContentSimilarity == 0 {
		c.Dedup.ContentSimilarity = 0.8
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 5
	}
	if c.RequestTimeoutSecs <= 0 {
		c.RequestTimeoutSecs = 30
	}
	if c.RequestSize <= 0 {
		c.RequestSize = 64
	}
}

func (c *Config) requestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}
