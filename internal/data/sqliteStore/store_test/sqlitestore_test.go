package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbelCoplet/llama-cag-n8N/internal/data/sqliteStore"
	"github.com/AbelCoplet/llama-cag-n8N/internal/domain/cagModel"
)

func newStore(t *testing.T) *sqliteStore.Store {
	t.Helper()
	store, err := sqliteStore.NewStore(filepath.Join(t.TempDir(), "cag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func saveDoc(t *testing.T, store *sqliteStore.Store, id string) {
	t.Helper()
	require.NoError(t, store.SaveDocument(context.Background(), cagModel.Document{
		Id: id, FileName: id + ".txt", Status: cagModel.DocProcessing,
	}))
}

func TestDocumentRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveDoc(t, store, "doc1")

	doc, found, err := store.GetDocument(ctx, "doc1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "doc1.txt", doc.FileName)

	_, found, err = store.GetDocument(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteDocument_CascadesToChunks(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	saveDoc(t, store, "doc1")
	require.NoError(t, store.SaveChunk(ctx, cagModel.ChunkRecord{
		ChunkId: "doc1_chunk000", DocumentId: "doc1", TotalChunks: 1, ContentHash: "h1",
	}))

	require.NoError(t, store.DeleteDocument(ctx, "doc1"))

	_, found, err := store.GetChunk(ctx, "doc1_chunk000")
	require.NoError(t, err)
	assert.False(t, found, "chunk rows must go with their document")
}

func TestQueryLogRoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	entry := cagModel.QueryLog{
		QueryId:          "q1",
		QueryText:        "what is the refund policy?",
		ResponseText:     "30 days",
		DocumentSources:  []string{"policy.txt (section 1 of 2)", "policy.txt (section 2 of 2)"},
		ProcessingTimeMs: 1234,
		Success:          true,
	}
	require.NoError(t, store.SaveQueryLog(ctx, entry))

	entries, err := store.RecentQueries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.QueryText, entries[0].QueryText)
	assert.Equal(t, entry.DocumentSources, entries[0].DocumentSources)
	assert.True(t, entries[0].Success)
}

func TestEvictionCandidates_FilterAndOrder(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDoc(t, store, "doc1")

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	older := now.Add(-96 * time.Hour)

	chunks := []cagModel.ChunkRecord{
		// never used: evicted first
		{ChunkId: "never", DocumentId: "doc1", ContentHash: "h1",
			CacheStatus: cagModel.CacheCached, CachePath: "/c/never.bin", CacheSizeBytes: 500},
		// oldest last_used next
		{ChunkId: "older", DocumentId: "doc1", ContentHash: "h2",
			CacheStatus: cagModel.CacheCached, CachePath: "/c/older.bin", CacheSizeBytes: 500,
			LastUsed: &older, UsageCount: 3},
		{ChunkId: "old", DocumentId: "doc1", ContentHash: "h3",
			CacheStatus: cagModel.CacheCached, CachePath: "/c/old.bin", CacheSizeBytes: 500,
			LastUsed: &old, UsageCount: 1},
		// too recent: excluded
		{ChunkId: "fresh", DocumentId: "doc1", ContentHash: "h4",
			CacheStatus: cagModel.CacheCached, CachePath: "/c/fresh.bin", CacheSizeBytes: 500,
			LastUsed: &now, UsageCount: 9},
		// too small: excluded
		{ChunkId: "tiny", DocumentId: "doc1", ContentHash: "h5",
			CacheStatus: cagModel.CacheCached, CachePath: "/c/tiny.bin", CacheSizeBytes: 10,
			LastUsed: &older},
		// wrong status: excluded
		{ChunkId: "pending", DocumentId: "doc1", ContentHash: "h6",
			CacheStatus: cagModel.CachePending, CacheSizeBytes: 500},
	}
	for _, c := range chunks {
		require.NoError(t, store.SaveChunk(ctx, c))
	}

	cutoff := now.Add(-24 * time.Hour)
	candidates, err := store.ListEvictionCandidates(ctx, cutoff, 100)
	require.NoError(t, err)

	var ids []string
	for _, c := range candidates {
		ids = append(ids, c.Chunk.ChunkId)
		assert.Equal(t, "doc1.txt", c.FileName)
	}
	assert.Equal(t, []string{"never", "older", "old"}, ids)
}

func TestRecordUsage_NeverMovesBackward(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDoc(t, store, "doc1")
	require.NoError(t, store.SaveChunk(ctx, cagModel.ChunkRecord{
		ChunkId: "c1", DocumentId: "doc1", ContentHash: "h1",
		CacheStatus: cagModel.CacheCached, CachePath: "/c/c1.bin", CacheSizeBytes: 100,
	}))

	later := time.Now().UTC()
	earlier := later.Add(-time.Hour)

	require.NoError(t, store.RecordUsage(ctx, "c1", later))
	require.NoError(t, store.RecordUsage(ctx, "c1", earlier))

	chunk, _, err := store.GetChunk(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), chunk.UsageCount)
	require.NotNil(t, chunk.LastUsed)
	assert.WithinDuration(t, later, *chunk.LastUsed, time.Second)
}

func TestProcessingErrors_ResolveKeepsRows(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDoc(t, store, "doc1")

	require.NoError(t, store.AppendError(ctx, cagModel.ProcessingError{
		DocumentId: "doc1", ChunkId: "c1", Category: cagModel.ErrBuild, Message: "boom",
	}))
	require.NoError(t, store.ResolveErrors(ctx, "doc1"))

	errs, err := store.ErrorsByDocument(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, errs, 1, "resolved errors are kept, not deleted")
	assert.True(t, errs[0].Resolved)
}

func TestStatsAggregation(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	saveDoc(t, store, "doc1")

	require.NoError(t, store.SaveChunk(ctx, cagModel.ChunkRecord{
		ChunkId: "c1", DocumentId: "doc1", ContentHash: "h1",
		CacheStatus: cagModel.CacheCached, CachePath: "/c/c1.bin", CacheSizeBytes: 1000,
	}))
	require.NoError(t, store.SaveChunk(ctx, cagModel.ChunkRecord{
		ChunkId: "c2", DocumentId: "doc1", ContentHash: "h2",
		CacheStatus: cagModel.CacheFailed,
	}))
	require.NoError(t, store.SaveQueryLog(ctx, cagModel.QueryLog{QueryId: "q1", QueryText: "q", Success: true}))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 2, stats.TotalChunks)
	assert.Equal(t, 1, stats.CachedChunks)
	assert.Equal(t, 1, stats.FailedChunks)
	assert.Equal(t, int64(1000), stats.TotalCacheBytes)
	assert.Equal(t, int64(1), stats.TotalQueries)
}
