package api

type CreateCacheResponse struct {
	Success     bool   `json:"success"`
	DocumentId  string `json:"documentId,omitempty"`
	ChunkId     string `json:"chunkId,omitempty"`
	KVCachePath string `json:"kvCachePath,omitempty"`
	KVCacheSize int64  `json:"kvCacheSize,omitempty"`
	ContextSize int    `json:"contextSize,omitempty"`
	Reused      bool   `json:"reused,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
}

type QueryResponse struct {
	Success  bool     `json:"success"`
	Response string   `json:"response,omitempty"`
	Sources  []string `json:"sources,omitempty"`
	Query    string   `json:"query,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type IngestResponse struct {
	Success     bool   `json:"success"`
	DocumentId  string `json:"documentId,omitempty"`
	TotalChunks int    `json:"totalChunks,omitempty"`
	BuiltChunks int    `json:"builtChunks,omitempty"`
	Status      string `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

type HealthConfig struct {
	ModelPath     string `json:"model_path"`
	MasterKVCache string `json:"master_kv_cache"`
	KVCacheDir    string `json:"kv_cache_dir"`
	MaxContext    int    `json:"max_context"`
	Threads       int    `json:"threads"`
	BatchSize     int    `json:"batch_size"`
}

type HealthResponse struct {
	Status string       `json:"status"`
	Issues []string     `json:"issues,omitempty"`
	Config HealthConfig `json:"config"`
}

// requests---------------------

type CreateCacheRequest struct {
	DocumentId      string `json:"documentId" validate:"required"`
	FileName        string `json:"fileName,omitempty"`
	ChunkId         string `json:"chunkId,omitempty"`
	ChunkIndex      int    `json:"chunkIndex,omitempty"`
	TotalChunks     int    `json:"totalChunks,omitempty"`
	SectionTitle    string `json:"sectionTitle,omitempty"`
	Text            string `json:"text,omitempty"`
	TempFilePath    string `json:"tempFilePath,omitempty"` //alternative to inline text
	KVCachePath     string `json:"kvCachePath,omitempty"`
	ContextSize     int    `json:"contextSize,omitempty"`
	EstimatedTokens int    `json:"estimatedTokens,omitempty"` //caller's own estimate, preferred over len/4
	SetAsMaster     bool   `json:"setAsMaster,omitempty"`
}

type QueryRequest struct {
	Query         string  `json:"query" validate:"required"`
	KVCachePath   string  `json:"kvCachePath,omitempty"` //empty = master KV cache
	MaxTokens     int     `json:"maxTokens,omitempty"`
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"topP,omitempty"`
	RepeatPenalty float64 `json:"repeatPenalty,omitempty"`
}

type MultiQueryRequest struct {
	Query         string   `json:"query" validate:"required"`
	KVCachePaths  []string `json:"kvCachePaths" validate:"required"`
	MaxTokens     int      `json:"maxTokens,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"topP,omitempty"`
	RepeatPenalty float64  `json:"repeatPenalty,omitempty"`
}

type IngestRequest struct {
	DocumentId   string `json:"documentId" validate:"required"`
	FileName     string `json:"fileName,omitempty"`
	Text         string `json:"text,omitempty"`
	TempFilePath string `json:"tempFilePath,omitempty"`
	SetAsMaster  bool   `json:"setAsMaster,omitempty"`
}
