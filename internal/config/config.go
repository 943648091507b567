package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//serverTimeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 30 * time.Minute //engine invocations on big contexts are slow
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 30 * time.Second

	//server listening port - original bridge listened on 8000
	ServerListenAddr = ":8000"

	//llama.cpp defaults, same values the original bridge read from its env
	DefaultModelPath  = "/usr/local/llamacpp/models/gemma-4b.gguf"
	DefaultMaxContext = 128000
	DefaultThreads    = 4
	DefaultBatchSize  = 1024

	DefaultKVCacheDir    = "/data/kv_caches"
	DefaultMasterKVCache = "/data/kv_caches/master_cache.bin"
	DefaultTempDir       = "/data/temp_chunks"
	DefaultDBDir         = "/data/db"

	DefaultCreateScript = "/usr/local/bin/cag-scripts/create_kv_cache.sh"
	DefaultQueryScript  = "/usr/local/bin/cag-scripts/query_kv_cache.sh"

	//generation defaults - conservative, accuracy over creativity
	DefaultMaxTokens     = 1024
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.9
	DefaultRepeatPenalty = 1.1

	//multi cache combine: per-cache partial extraction budget,
	//independent of the final answer budget
	ExtractTokenBudget = 512

	//eviction policy
	DefaultEvictionMaxAge  = 30 * 24 * time.Hour
	DefaultEvictionMinSize = 100 << 20 //100MB - smaller artifacts are not worth reclaiming

	//a large-context cache below this size is suspicious, warn but serve
	CacheSizeWarnBytes = 1 << 20

	//how long a build/query may wait for the single engine slot
	DefaultQueueTimeout = 10 * time.Minute

	//hard ceiling on one engine invocation
	EngineInvocationTimeout = 25 * time.Minute
)

// Config is built once in main and handed to every component.
// Nothing outside Load reads the process environment.
type Config struct {
	ListenAddr string
	AuthToken  string

	ModelPath  string
	MaxContext int
	Threads    int
	BatchSize  int

	KVCacheDir    string
	TempDir       string
	MasterKVCache string
	DBDir         string

	CreateScriptPath string
	QueryScriptPath  string

	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64

	EvictionMaxAge  time.Duration
	EvictionMinSize int64

	QueueTimeout time.Duration
}

func Load() Config {
	cfg := Config{
		ListenAddr:       ServerListenAddr,
		AuthToken:        os.Getenv("CAG_BRIDGE_TOKEN"),
		ModelPath:        envOr("LLAMACPP_MODEL_PATH", DefaultModelPath),
		MaxContext:       envIntOr("LLAMACPP_MAX_CONTEXT", DefaultMaxContext),
		Threads:          envIntOr("LLAMACPP_THREADS", DefaultThreads),
		BatchSize:        envIntOr("LLAMACPP_BATCH_SIZE", DefaultBatchSize),
		KVCacheDir:       envOr("LLAMACPP_KV_CACHE_DIR", DefaultKVCacheDir),
		TempDir:          envOr("CAG_TEMP_DIR", DefaultTempDir),
		MasterKVCache:    envOr("MASTER_KV_CACHE", DefaultMasterKVCache),
		DBDir:            envOr("CAG_DB_DIR", DefaultDBDir),
		CreateScriptPath: envOr("CAG_CREATE_SCRIPT", DefaultCreateScript),
		QueryScriptPath:  envOr("CAG_QUERY_SCRIPT", DefaultQueryScript),
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		TopP:             DefaultTopP,
		RepeatPenalty:    DefaultRepeatPenalty,
		EvictionMaxAge:   DefaultEvictionMaxAge,
		EvictionMinSize:  DefaultEvictionMinSize,
		QueueTimeout:     DefaultQueueTimeout,
	}
	if port := os.Getenv("CAG_BRIDGE_PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	return cfg
}

// DBPath is where the registry database lives.
func (c Config) DBPath() string {
	return filepath.Join(c.DBDir, "cag_registry.db")
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
