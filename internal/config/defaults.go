package config

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8700
	}

	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".photofind/photos.db"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = ".photofind/index.snapshot"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = ".photofind/keyword.bleve"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = ".photofind/uploads"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "PHOTOFIND_API_KEY"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}

	if cfg.Analyzer.Provider == "" {
		cfg.Analyzer.Provider = "mock"
	}
	if cfg.Analyzer.Model == "" {
		cfg.Analyzer.Model = "qwen-vl-plus"
	}
	if cfg.Analyzer.APIKeyEnv == "" {
		cfg.Analyzer.APIKeyEnv = "PHOTOFIND_API_KEY"
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "l2"
	}

	if cfg.Flush.MaxPending == 0 {
		cfg.Flush.MaxPending = 32
	}
	if cfg.Flush.IntervalSeconds == 0 {
		cfg.Flush.IntervalSeconds = 5
	}

	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}

	if len(cfg.Watch.Extensions) == 0 {
		cfg.Watch.Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}
	}
}
