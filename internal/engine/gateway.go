package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

// llamaGateway models the external engine as one serially-reusable resource:
// a single worker goroutine drains a FIFO task queue, so at most one
// subprocess holds the model in memory at any time. Waiters that give up are
// skipped by the worker without side effects.
type llamaGateway struct {
	cfg    config.Config
	runner *Runner
	logger *logger_i.Logger

	queue chan *task
	done  chan struct{}
	wg    sync.WaitGroup

	closed   atomic.Bool
	closeOne sync.Once
}

type task struct {
	ctx     context.Context
	run     func(ctx context.Context) error
	claimed atomic.Bool //worker vs abandoning caller; first CAS wins
	started chan struct{}
	done    chan struct{}
	err     error
}

// claim decides whether the task will run: the worker claims it to execute,
// an abandoning caller claims it to withdraw.
func (t *task) claim() bool {
	return t.claimed.CompareAndSwap(false, true)
}

func NewGateway(cfg config.Config) Gateway {
	g := &llamaGateway{
		cfg:    cfg,
		runner: NewRunner(cfg),
		logger: logger_i.NewLogger("EngineGateway"),
		queue:  make(chan *task, 256),
		done:   make(chan struct{}),
	}
	g.wg.Add(1)
	go g.worker()
	return g
}

func (g *llamaGateway) worker() {
	defer g.wg.Done()
	for {
		select {
		case t := <-g.queue:
			g.runTask(t)
		case <-g.done:
			// drain what was queued before the close, then stop
			for {
				select {
				case t := <-g.queue:
					g.runTask(t)
				default:
					return
				}
			}
		}
	}
}

func (g *llamaGateway) runTask(t *task) {
	metrics.DecrementEngineQueueDepth()
	if !t.claim() {
		// caller already gave up while queued
		return
	}
	close(t.started)
	t.err = t.run(t.ctx)
	close(t.done)
}

// submit enqueues fn and waits for it to run. The wait for the engine slot
// is bounded by the queue timeout and by caller cancellation; once started,
// only the caller's context (and the invocation ceiling) can stop it.
func (g *llamaGateway) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.closed.Load() {
		return ErrGatewayClosed
	}

	t := &task{
		ctx:     ctx,
		run:     fn,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}

	waitTimer := time.NewTimer(g.cfg.QueueTimeout)
	defer waitTimer.Stop()

	select {
	case g.queue <- t:
		metrics.IncrementEngineQueueDepth()
	case <-g.done:
		return ErrGatewayClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrQueueTimeout, ctx.Err())
	case <-waitTimer.C:
		return ErrQueueTimeout
	}

	select {
	case <-t.started:
	case <-g.done:
		if t.claim() {
			// enqueued just as the gateway shut down, worker never saw it
			return ErrGatewayClosed
		}
		<-t.done
		return t.err
	case <-ctx.Done():
		if t.claim() {
			// withdrawn before the worker picked it up, no side effects
			return fmt.Errorf("%w: %v", ErrQueueTimeout, ctx.Err())
		}
		// the worker won the race; fall through and wait for the result
		<-t.done
		return t.err
	case <-waitTimer.C:
		if t.claim() {
			return ErrQueueTimeout
		}
		<-t.done
		return t.err
	}

	<-t.done
	return t.err
}

// BuildCache stages the chunk text into a scratch file, runs the create
// script through the single engine slot and verifies the artifact. The
// scratch directory is removed on every exit path.
func (g *llamaGateway) BuildCache(ctx context.Context, req BuildRequest) (BuildResult, error) {
	if err := os.MkdirAll(filepath.Dir(req.CachePath), 0750); err != nil {
		return BuildResult{}, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.MkdirAll(g.cfg.TempDir, 0750); err != nil {
		return BuildResult{}, fmt.Errorf("creating temp directory: %w", err)
	}

	scratchDir, err := os.MkdirTemp(g.cfg.TempDir, "build-*")
	if err != nil {
		return BuildResult{}, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	textPath := filepath.Join(scratchDir, "chunk.txt")
	if err := os.WriteFile(textPath, []byte(req.Text), 0640); err != nil {
		return BuildResult{}, fmt.Errorf("staging chunk text: %w", err)
	}

	var result BuildResult
	err = g.submit(ctx, func(runCtx context.Context) error {
		runResult, runErr := g.runner.CreateCache(runCtx, textPath, req.CachePath, req.ContextSize)
		result.Output = runResult.Stdout
		if runErr != nil {
			return runErr
		}

		info, statErr := os.Stat(req.CachePath)
		if statErr != nil {
			return &InvocationError{Op: "build", ExitCode: runResult.ExitCode,
				Stderr: fmt.Sprintf("engine exited cleanly but wrote no artifact: %v", statErr)}
		}
		if info.Size() == 0 {
			os.Remove(req.CachePath)
			return &InvocationError{Op: "build", ExitCode: runResult.ExitCode,
				Stderr: "engine produced a zero-byte artifact"}
		}
		result.CachePath = req.CachePath
		result.SizeBytes = info.Size()
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func (g *llamaGateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	var response string
	err := g.submit(ctx, func(runCtx context.Context) error {
		runResult, runErr := g.runner.Query(runCtx, req.CachePath, req.Prompt,
			req.MaxTokens, req.Temperature, req.TopP, req.RepeatPenalty)
		if runErr != nil {
			return runErr
		}
		response = strings.TrimSpace(runResult.Stdout)
		return nil
	})
	if err != nil {
		return "", err
	}
	return response, nil
}

// Healthy mirrors the startup file checks of the original bridge. A missing
// master cache is only a warning, not an issue.
func (g *llamaGateway) Healthy() []string {
	var issues []string
	if _, err := os.Stat(g.cfg.QueryScriptPath); err != nil {
		issues = append(issues, fmt.Sprintf("Query script not found at: %s", g.cfg.QueryScriptPath))
	}
	if _, err := os.Stat(g.cfg.CreateScriptPath); err != nil {
		issues = append(issues, fmt.Sprintf("Create script not found at: %s", g.cfg.CreateScriptPath))
	}
	if _, err := os.Stat(g.cfg.ModelPath); err != nil {
		issues = append(issues, fmt.Sprintf("Model not found at: %s", g.cfg.ModelPath))
	}
	if _, err := os.Stat(g.cfg.MasterKVCache); err != nil {
		g.logger.Warn("Master KV cache not found. This is fine if you haven't created it yet.",
			"path", g.cfg.MasterKVCache)
	}
	return issues
}

// Close stops the worker after it drains what is already queued. The queue
// channel itself is never closed, so a submit racing a Close gets
// ErrGatewayClosed instead of a send on a closed channel.
func (g *llamaGateway) Close() {
	g.closeOne.Do(func() {
		g.closed.Store(true)
		close(g.done)
	})
	g.wg.Wait()
}
