package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"microtexture/internal/logging"
)

// ErrRunnerNotFound is returned when the PipelineRunner executable is missing.
var ErrRunnerNotFound = errors.New("PipelineRunner not found")

// DefaultTimeout bounds a runner invocation when Runner.Timeout is zero.
const DefaultTimeout = 120 * time.Second

// Runner invokes DREAM3D's PipelineRunner on a pipeline JSON file.
type Runner struct {
	// Path is the PipelineRunner executable.
	Path string

	Timeout time.Duration
	Logger  *slog.Logger
}

// Check verifies that the runner executable exists.
func (r *Runner) Check() error {
	info, err := os.Stat(r.Path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w at: %s", ErrRunnerNotFound, r.Path)
	}
	return nil
}

// Run executes `PipelineRunner -p jsonPath`. Output is captured and logged
// when the runner fails or times out.
func (r *Runner) Run(ctx context.Context, jsonPath string) error {
	log := logging.OrDefault(r.Logger)
	if err := r.Check(); err != nil {
		return err
	}
	if _, err := os.Stat(jsonPath); err != nil {
		return fmt.Errorf("pipeline file %s: %w", jsonPath, err)
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, "-p", jsonPath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		log.Error("PipelineRunner failed",
			"pipeline", jsonPath,
			"stdout", stdout.String(),
			"stderr", stderr.String())
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("PipelineRunner timed out after %s for %s: %w", timeout, jsonPath, ctx.Err())
		}
		return fmt.Errorf("PipelineRunner failed for %s: %w", jsonPath, err)
	}

	log.Info("PipelineRunner executed successfully",
		"pipeline", jsonPath,
		"elapsed", time.Since(start).Round(time.Millisecond))
	log.Debug("PipelineRunner output", "stdout", stdout.String())
	return nil
}
