package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

func newTestGateway(cfg config.Config) *llamaGateway {
	g := &llamaGateway{
		cfg:    cfg,
		runner: NewRunner(cfg),
		logger: logger_i.NewLogger("EngineGateway"),
		queue:  make(chan *task, 16),
		done:   make(chan struct{}),
	}
	g.wg.Add(1)
	go g.worker()
	return g
}

func TestGateway_RunsTasksInSubmissionOrder(t *testing.T) {
	g := newTestGateway(config.Config{QueueTimeout: 5 * time.Second})
	defer g.Close()

	gate := make(chan struct{})
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	errs := make([]error, 4)

	// the first task occupies the engine slot so the rest queue up in order
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs[0] = g.submit(context.Background(), func(ctx context.Context) error {
			<-gate
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	for i := 1; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = g.submit(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		time.Sleep(20 * time.Millisecond) // serialize enqueue order
	}

	close(gate)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("task %d failed: %v", i, err)
		}
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order %v, want sequential", order)
		}
	}
}

func TestGateway_QueueTimeout(t *testing.T) {
	g := newTestGateway(config.Config{QueueTimeout: 50 * time.Millisecond})
	defer g.Close()

	blocker := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.submit(context.Background(), func(ctx context.Context) error {
			<-blocker
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ran := false
	err := g.submit(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrQueueTimeout) {
		t.Fatalf("expected ErrQueueTimeout, got %v", err)
	}

	close(blocker)
	if err := <-done; err != nil {
		t.Errorf("first task failed: %v", err)
	}
	g.Close()
	if ran {
		t.Error("timed-out task must never run")
	}
}

func TestGateway_AbandonWhileQueued(t *testing.T) {
	g := newTestGateway(config.Config{QueueTimeout: 5 * time.Second})
	defer g.Close()

	blocker := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.submit(context.Background(), func(ctx context.Context) error {
			<-blocker
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	abandoned := make(chan error, 1)
	ran := false
	go func() {
		abandoned <- g.submit(ctx, func(ctx context.Context) error {
			ran = true
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-abandoned; !errors.Is(err, ErrQueueTimeout) {
		t.Fatalf("expected a queue timeout on cancellation, got %v", err)
	}

	close(blocker)
	if err := <-done; err != nil {
		t.Errorf("first task failed: %v", err)
	}
	g.Close()
	if ran {
		t.Error("withdrawn task must never run")
	}
}

func TestGateway_SubmitAfterClose(t *testing.T) {
	g := newTestGateway(config.Config{QueueTimeout: time.Second})
	g.Close()

	err := g.submit(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrGatewayClosed) {
		t.Fatalf("expected ErrGatewayClosed, got %v", err)
	}
}

func TestGateway_CloseRacingSubmitDoesNotPanic(t *testing.T) {
	g := newTestGateway(config.Config{QueueTimeout: 100 * time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := g.submit(context.Background(), func(ctx context.Context) error { return nil })
			if err != nil && !errors.Is(err, ErrGatewayClosed) && !errors.Is(err, ErrQueueTimeout) {
				t.Errorf("unexpected submit error: %v", err)
			}
		}()
	}
	g.Close()
	wg.Wait()
}

func TestGateway_TaskErrorPropagates(t *testing.T) {
	g := newTestGateway(config.Config{QueueTimeout: time.Second})
	defer g.Close()

	boom := errors.New("boom")
	err := g.submit(context.Background(), func(ctx context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestGateway_HealthyReportsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		ModelPath:        filepath.Join(dir, "missing-model.gguf"),
		CreateScriptPath: filepath.Join(dir, "missing-create.sh"),
		QueryScriptPath:  filepath.Join(dir, "missing-query.sh"),
		MasterKVCache:    filepath.Join(dir, "missing-master.bin"),
		QueueTimeout:     time.Second,
	}
	g := newTestGateway(cfg)
	defer g.Close()

	issues := g.Healthy()
	if len(issues) != 3 {
		t.Fatalf("expected 3 issues (model and both scripts), got %v", issues)
	}
}
