package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AbelCoplet/llama-cag-n8N/internal/api"
	"github.com/AbelCoplet/llama-cag-n8N/internal/cag"
	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/engine"
)

type stubService struct {
	OnCreateCache func(ctx context.Context, req cag.CreateCacheRequest) (cag.CreateCacheResult, error)
	OnIngest      func(ctx context.Context, req cag.IngestDocumentRequest) (cag.IngestDocumentResult, error)
	OnQuery       func(ctx context.Context, req cag.QueryRequest) (cag.QueryResult, error)
	OnQueryMulti  func(ctx context.Context, req cag.MultiQueryRequest) (cag.QueryResult, error)
	OnEvict       func(ctx context.Context, opts cag.EvictOptions) (cag.EvictReport, error)
}

func (s *stubService) CreateCache(ctx context.Context, req cag.CreateCacheRequest) (cag.CreateCacheResult, error) {
	if s.OnCreateCache != nil {
		return s.OnCreateCache(ctx, req)
	}
	return cag.CreateCacheResult{}, nil
}

func (s *stubService) IngestDocument(ctx context.Context, req cag.IngestDocumentRequest) (cag.IngestDocumentResult, error) {
	if s.OnIngest != nil {
		return s.OnIngest(ctx, req)
	}
	return cag.IngestDocumentResult{}, nil
}

func (s *stubService) Query(ctx context.Context, req cag.QueryRequest) (cag.QueryResult, error) {
	if s.OnQuery != nil {
		return s.OnQuery(ctx, req)
	}
	return cag.QueryResult{}, nil
}

func (s *stubService) QueryMulti(ctx context.Context, req cag.MultiQueryRequest) (cag.QueryResult, error) {
	if s.OnQueryMulti != nil {
		return s.OnQueryMulti(ctx, req)
	}
	return cag.QueryResult{}, nil
}

func (s *stubService) Evict(ctx context.Context, opts cag.EvictOptions) (cag.EvictReport, error) {
	if s.OnEvict != nil {
		return s.OnEvict(ctx, opts)
	}
	return cag.EvictReport{}, nil
}

type fakeGateway struct {
	issues []string
}

func (g *fakeGateway) BuildCache(ctx context.Context, req engine.BuildRequest) (engine.BuildResult, error) {
	return engine.BuildResult{}, nil
}

func (g *fakeGateway) Generate(ctx context.Context, req engine.GenerateRequest) (string, error) {
	return "", nil
}

func (g *fakeGateway) Healthy() []string { return g.issues }

func (g *fakeGateway) Close() {}

func setup(t *testing.T, svc cag.Service, issues []string) config.Config {
	t.Helper()
	cfg := config.Config{
		ModelPath:     "/models/m.gguf",
		MasterKVCache: "/data/kv_caches/master_cache.bin",
		KVCacheDir:    t.TempDir(),
		MaxContext:    8192,
		Threads:       4,
		BatchSize:     512,
	}
	InitCagHandlers(svc, &fakeGateway{issues: issues}, cfg)
	return cfg
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateCacheHandler(t *testing.T) {
	t.Run("missing documentId", func(t *testing.T) {
		setup(t, &stubService{}, nil)
		rec := postJSON(t, CreateCacheHandler, "/create-cache", api.CreateCacheRequest{Text: "hi"})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("success maps the result", func(t *testing.T) {
		svc := &stubService{
			OnCreateCache: func(ctx context.Context, req cag.CreateCacheRequest) (cag.CreateCacheResult, error) {
				if req.DocumentId != "doc1" || req.Text != "chunk text" || req.EstimatedTokens != 512 {
					t.Errorf("unexpected service request: %+v", req)
				}
				return cag.CreateCacheResult{
					DocumentId:  "doc1",
					ChunkId:     "doc1_chunk000",
					CachePath:   "/data/kv_caches/doc1_chunk000.bin",
					SizeBytes:   4096,
					ContextSize: 2048,
				}, nil
			},
		}
		setup(t, svc, nil)

		rec := postJSON(t, CreateCacheHandler, "/create-cache", api.CreateCacheRequest{
			DocumentId:      "doc1",
			Text:            "chunk text",
			EstimatedTokens: 512,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
		var resp api.CreateCacheResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Success || resp.KVCachePath != "/data/kv_caches/doc1_chunk000.bin" || resp.KVCacheSize != 4096 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("default cache path is derived from the document id", func(t *testing.T) {
		var gotPath string
		svc := &stubService{
			OnCreateCache: func(ctx context.Context, req cag.CreateCacheRequest) (cag.CreateCacheResult, error) {
				gotPath = req.CachePath
				return cag.CreateCacheResult{}, nil
			},
		}
		cfg := setup(t, svc, nil)

		postJSON(t, CreateCacheHandler, "/create-cache", api.CreateCacheRequest{
			DocumentId: "doc1",
			Text:       "t",
		})
		want := cfg.KVCacheDir + "/doc1.bin"
		if gotPath != want {
			t.Errorf("cache path %q, want %q", gotPath, want)
		}
	})

	t.Run("service failure becomes a structured error", func(t *testing.T) {
		svc := &stubService{
			OnCreateCache: func(ctx context.Context, req cag.CreateCacheRequest) (cag.CreateCacheResult, error) {
				return cag.CreateCacheResult{}, cag.ErrEmptyInput
			},
		}
		setup(t, svc, nil)

		rec := postJSON(t, CreateCacheHandler, "/create-cache", api.CreateCacheRequest{
			DocumentId: "doc1",
			Text:       " ",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d", rec.Code)
		}
		var resp api.CreateCacheResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Success || resp.Error == "" {
			t.Errorf("expected a structured failure, got %+v", resp)
		}
	})
}

func TestQueryHandler(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		setup(t, &stubService{}, nil)
		rec := postJSON(t, QueryHandler, "/query", api.QueryRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		svc := &stubService{
			OnQuery: func(ctx context.Context, req cag.QueryRequest) (cag.QueryResult, error) {
				return cag.QueryResult{Response: "answer"}, nil
			},
		}
		setup(t, svc, nil)

		rec := postJSON(t, QueryHandler, "/query", api.QueryRequest{Query: "what?"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d", rec.Code)
		}
		var resp api.QueryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if !resp.Success || resp.Response != "answer" || resp.Query != "what?" {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("missing cache maps to 404", func(t *testing.T) {
		svc := &stubService{
			OnQuery: func(ctx context.Context, req cag.QueryRequest) (cag.QueryResult, error) {
				return cag.QueryResult{}, cag.ErrCacheNotFound
			},
		}
		setup(t, svc, nil)

		rec := postJSON(t, QueryHandler, "/query", api.QueryRequest{Query: "what?"})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status %d", rec.Code)
		}
	})
}

func TestQueryMultiHandler(t *testing.T) {
	svc := &stubService{
		OnQueryMulti: func(ctx context.Context, req cag.MultiQueryRequest) (cag.QueryResult, error) {
			if len(req.CachePaths) != 2 {
				t.Errorf("cache paths not forwarded: %+v", req)
			}
			return cag.QueryResult{Response: "combined", Sources: []string{"a.txt", "b.txt"}}, nil
		},
	}
	setup(t, svc, nil)

	rec := postJSON(t, QueryMultiHandler, "/query-multi", api.MultiQueryRequest{
		Query:        "compare",
		KVCachePaths: []string{"/a.bin", "/b.bin"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp api.QueryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("sources not mapped: %+v", resp)
	}
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		cfg := setup(t, &stubService{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		HealthHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status %d", rec.Code)
		}
		var resp api.HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "healthy" || resp.Config.ModelPath != cfg.ModelPath {
			t.Errorf("unexpected response: %+v", resp)
		}
	})

	t.Run("unhealthy lists issues", func(t *testing.T) {
		setup(t, &stubService{}, []string{"Model not found at: /models/m.gguf"})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		HealthHandler(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status %d", rec.Code)
		}
		var resp api.HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != "unhealthy" || len(resp.Issues) != 1 {
			t.Errorf("unexpected response: %+v", resp)
		}
	})
}
