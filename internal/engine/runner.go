package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/AbelCoplet/llama-cag-n8N/internal/config"
	"github.com/AbelCoplet/llama-cag-n8N/internal/metrics"
	"github.com/AbelCoplet/llama-cag-n8N/pkg/logger_i"
)

// Runner invokes the llama.cpp wrapper scripts. Arguments are passed as a
// vector, never interpolated into a shell string; exit code, stdout and
// stderr are always captured.
type Runner struct {
	cfg    config.Config
	logger *logger_i.Logger
}

type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

func NewRunner(cfg config.Config) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logger_i.NewLogger("EngineRunner"),
	}
}

// CreateCache runs create_kv_cache.sh <model> <textFile> <cachePath> <ctx> <threads> <batch>.
func (r *Runner) CreateCache(ctx context.Context, textFilePath string, cachePath string, contextSize int) (RunResult, error) {
	if err := r.checkModel(); err != nil {
		return RunResult{}, err
	}
	args := []string{
		r.cfg.ModelPath,
		textFilePath,
		cachePath,
		strconv.Itoa(contextSize),
		strconv.Itoa(r.cfg.Threads),
		strconv.Itoa(r.cfg.BatchSize),
	}
	return r.run(ctx, "build", r.cfg.CreateScriptPath, args)
}

// Query runs query_kv_cache.sh <model> <cachePath> <prompt> <maxTokens> <temp> <topP> <repeatPenalty>.
func (r *Runner) Query(ctx context.Context, cachePath string, prompt string, maxTokens int, temperature, topP, repeatPenalty float64) (RunResult, error) {
	if err := r.checkModel(); err != nil {
		return RunResult{}, err
	}
	args := []string{
		r.cfg.ModelPath,
		cachePath,
		prompt,
		strconv.Itoa(maxTokens),
		strconv.FormatFloat(temperature, 'f', 2, 64),
		strconv.FormatFloat(topP, 'f', 2, 64),
		strconv.FormatFloat(repeatPenalty, 'f', 2, 64),
	}
	return r.run(ctx, "generate", r.cfg.QueryScriptPath, args)
}

func (r *Runner) checkModel() error {
	if _, err := os.Stat(r.cfg.ModelPath); err != nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, r.cfg.ModelPath)
	}
	return nil
}

func (r *Runner) run(ctx context.Context, op string, script string, args []string) (RunResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, config.EngineInvocationTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, script, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	metrics.CaptureEngineInvocation(op, elapsed)

	result := RunResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
		Duration: elapsed,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			if result.Stderr == "" {
				result.Stderr = err.Error()
			}
		}
		if ctxErr := runCtx.Err(); ctxErr != nil {
			// killed: caller cancellation or the invocation ceiling
			r.logger.Warn("Engine invocation terminated", "op", op, "reason", ctxErr, "elapsed", elapsed)
			return result, fmt.Errorf("engine %s terminated: %w", op, ctxErr)
		}
		r.logger.Error("Engine invocation failed", "op", op, "exitCode", result.ExitCode, "elapsed", elapsed)
		return result, &InvocationError{Op: op, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}

	if result.Stderr != "" {
		r.logger.Warn("Engine stderr output", "op", op, "stderr", result.Stderr)
	}
	r.logger.Info("Engine invocation complete", "op", op, "elapsed", elapsed)
	return result, nil
}
