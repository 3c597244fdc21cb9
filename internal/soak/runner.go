package soak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Conventional artifact file names inside one iteration's workflow dir.
const (
	TraceFileName   = "events.ndjson"
	SummaryFileName = "run_summary.json"
)

// RunArtifacts points at everything one workflow iteration left behind.
type RunArtifacts struct {
	Workflow    string
	Iteration   int
	Dir         string
	TracePath   string
	SummaryPath string
}

// WorkflowRunner resolves the artifacts of one workflow iteration. The
// production implementation reads directories an external runner already
// populated; tests substitute their own.
type WorkflowRunner interface {
	Run(ctx context.Context, workflow string, iteration int) (RunArtifacts, error)
}

// DirRunner resolves artifacts from the conventional soak layout:
//
//	<root>/iter-0001/<workflow>/events.ndjson
//	<root>/iter-0001/<workflow>/run_summary.json
type DirRunner struct {
	Root string
}

// Run implements WorkflowRunner.
func (r DirRunner) Run(_ context.Context, workflow string, iteration int) (RunArtifacts, error) {
	dir := filepath.Join(r.Root, fmt.Sprintf("iter-%04d", iteration), workflow)
	info, err := os.Stat(dir)
	if err != nil {
		return RunArtifacts{}, fmt.Errorf("iteration directory: %w", err)
	}
	if !info.IsDir() {
		return RunArtifacts{}, fmt.Errorf("not a directory: %s", dir)
	}
	return RunArtifacts{
		Workflow:    workflow,
		Iteration:   iteration,
		Dir:         dir,
		TracePath:   filepath.Join(dir, TraceFileName),
		SummaryPath: filepath.Join(dir, SummaryFileName),
	}, nil
}
