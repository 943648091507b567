package cag

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"short", "abcd", 1},
		{"rounds down", "abcdefg", 1},
		{"longer", strings.Repeat("x", 4000), 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChooseContextSize(t *testing.T) {
	tests := []struct {
		name       string
		estimated  int
		requested  int
		maxContext int
		want       int
	}{
		{"caller value is verbatim", 1000, 3000, 128000, 3000},
		{"caller value ignores cap", 1000, 200000, 128000, 200000},
		{"floor for tiny chunks", 10, 0, 128000, MinContextSize},
		{"padding then granularity", 4000, 0, 128000, 4352}, // 4256 rounds up to 4352
		{"already aligned", 3840, 0, 128000, 4096},
		{"capped at max context", 120000, 0, 8192, 8192},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChooseContextSize(tt.estimated, tt.requested, tt.maxContext); got != tt.want {
				t.Errorf("ChooseContextSize(%d, %d, %d) = %d, want %d",
					tt.estimated, tt.requested, tt.maxContext, got, tt.want)
			}
		})
	}
}

func TestSplitIntoChunks(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		chunks := splitIntoChunks("hello world", 100, 10)
		if len(chunks) != 1 || chunks[0] != "hello world" {
			t.Fatalf("got %v", chunks)
		}
	})

	t.Run("splits on paragraph boundaries", func(t *testing.T) {
		text := strings.Repeat("para one. ", 10) + "\n\n" + strings.Repeat("para two. ", 10)
		chunks := splitIntoChunks(text, 120, 20)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		for i, c := range chunks {
			if len(c) > 120+20 {
				t.Errorf("chunk %d exceeds limit: %d chars", i, len(c))
			}
		}
	})

	t.Run("consecutive chunks overlap", func(t *testing.T) {
		var words []string
		for i := 0; i < 100; i++ {
			words = append(words, "word")
		}
		text := strings.Join(words, " ")
		chunks := splitIntoChunks(text, 120, 20)
		if len(chunks) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(chunks))
		}
		tail := chunks[0][len(chunks[0])-10:]
		if !strings.Contains(chunks[1], tail) {
			t.Errorf("chunk 1 does not carry overlap from chunk 0")
		}
	})

	t.Run("no separators falls back to hard split", func(t *testing.T) {
		text := strings.Repeat("x", 250)
		chunks := splitIntoChunks(text, 100, 10)
		if len(chunks) != 3 {
			t.Fatalf("expected 3 chunks, got %d", len(chunks))
		}
		if len(chunks[0]) != 100 || len(chunks[2]) != 50 {
			t.Errorf("unexpected chunk sizes: %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
		}
	})
}
