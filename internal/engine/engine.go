package engine

import (
	"context"
	"errors"
	"fmt"
)

// Gateway serializes access to the external llama.cpp capability. It is the
// only path to the engine: one invocation at a time, FIFO admission.
type Gateway interface {
	BuildCache(ctx context.Context, req BuildRequest) (BuildResult, error)
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Healthy() []string
	Close()
}

type BuildRequest struct {
	Text        string
	CachePath   string
	ContextSize int
}

type BuildResult struct {
	CachePath string
	SizeBytes int64
	Output    string //engine stdout, surfaced in the bridge response
}

type GenerateRequest struct {
	CachePath     string
	Prompt        string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

var (
	// ErrModelNotFound means the engine is misconfigured. Fatal, never retried.
	ErrModelNotFound = errors.New("model file not found")

	// ErrQueueTimeout means the request waited too long for the engine slot.
	// The request is removed from the queue with no side effects; retryable.
	ErrQueueTimeout = errors.New("timed out waiting for engine slot")

	ErrGatewayClosed = errors.New("engine gateway is shut down")
)

// InvocationError reports a failed engine subprocess run.
type InvocationError struct {
	Op       string //"build" or "generate"
	ExitCode int
	Stderr   string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("engine %s failed with exit code %d: %s", e.Op, e.ExitCode, e.Stderr)
}
