package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/complyops/autopilot/internal/evidence"
)

// DefaultTimeout bounds one background scan end to end.
const DefaultTimeout = 5 * time.Minute

// demoProjectPath is the project used by demo scans against the mock remote.
const demoProjectPath = "demo/example-project"

// Service is the application-level orchestrator for scans. It depends only
// on port interfaces.
type Service struct {
	Opener    RemoteOpener
	Demo      RemoteOpener // serves demo scans; may be nil to disable them
	Store     Store
	Evaluator Evaluator // may be nil: scans then carry the summary only
	Log       *slog.Logger

	// Timeout bounds a background scan; zero selects DefaultTimeout.
	Timeout time.Duration
	// FetchBudget is forwarded to the assembler; zero selects its default.
	FetchBudget int
}

// Start registers a new scan and runs it in the background. The returned
// record is in running state; callers poll Get for completion.
func (s *Service) Start(ctx context.Context, req Request) (*Scan, error) {
	frameworks := req.Frameworks
	if len(frameworks) == 0 {
		frameworks = defaultFrameworks
	}

	job := Scan{
		ID:          newScanID(),
		ProjectPath: req.ProjectPath,
		Frameworks:  frameworks,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	if err := s.Store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save scan %q: %w", job.ID, err)
	}

	// The scan must outlive the HTTP request that started it, so the
	// background context is detached from ctx.
	go func() {
		runCtx, cancel := context.WithTimeout(context.Background(), s.timeout())
		defer cancel()
		s.run(runCtx, job, s.Opener)
	}()

	return &job, nil
}

// RunDemo executes a synchronous scan against the seeded mock remote.
// Demo scans are not persisted.
func (s *Service) RunDemo(ctx context.Context) (*Scan, error) {
	if s.Demo == nil {
		return nil, fmt.Errorf("demo scans are not configured")
	}
	job := Scan{
		ID:          newScanID(),
		ProjectPath: demoProjectPath,
		Frameworks:  defaultFrameworks,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}
	finished, err := s.execute(ctx, job, s.Demo)
	if err != nil {
		return nil, err
	}
	return finished, nil
}

// Get returns one scan, or NotFoundError.
func (s *Service) Get(ctx context.Context, id string) (*Scan, error) {
	job, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get scan %q: %w", id, err)
	}
	if job == nil {
		return nil, NotFoundError{ID: id}
	}
	return job, nil
}

// List returns all known scans.
func (s *Service) List(ctx context.Context) ([]Scan, error) {
	scans, err := s.Store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return scans, nil
}

// run executes a scan in the background and persists its terminal state.
func (s *Service) run(ctx context.Context, job Scan, opener RemoteOpener) {
	finished, err := s.execute(ctx, job, opener)
	if err != nil {
		now := time.Now().UTC()
		job.Status = StatusFailed
		job.Error = err.Error()
		job.CompletedAt = &now
		finished = &job
		s.Log.Error("scan failed", "scanId", job.ID, "project", job.ProjectPath, "error", err)
	} else {
		s.Log.Info("scan completed", "scanId", job.ID, "project", job.ProjectPath,
			"files", finished.Summary.FilesFetched)
	}

	// Persisting the terminal state must not inherit the (possibly expired)
	// scan context.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Store.Save(saveCtx, *finished); err != nil {
		s.Log.Error("failed to persist scan result", "scanId", job.ID, "error", err)
	}
}

// execute assembles the snapshot and, when an evaluator is configured,
// scores it. Returns the completed scan record.
func (s *Service) execute(ctx context.Context, job Scan, opener RemoteOpener) (*Scan, error) {
	remote, err := opener.Open(job.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("open remote for %q: %w", job.ProjectPath, err)
	}

	assembler := &evidence.Assembler{
		Remote:      remote,
		Log:         s.Log,
		FetchBudget: s.FetchBudget,
	}
	snapshot, err := assembler.Assemble(ctx, job.ProjectPath)
	if err != nil {
		return nil, err
	}

	job.Summary = summarize(snapshot)

	if s.Evaluator != nil {
		result, err := s.Evaluator.Evaluate(ctx, snapshot, job.Frameworks)
		if err != nil {
			return nil, fmt.Errorf("evaluate snapshot: %w", err)
		}
		job.Result = result
	}

	now := time.Now().UTC()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	return &job, nil
}

func summarize(snapshot *evidence.RepoSnapshot) *Summary {
	return &Summary{
		DefaultBranch:   snapshot.DefaultBranch,
		FilesFetched:    len(snapshot.Files),
		FailedFetches:   len(snapshot.FailedFetches),
		MergeRequests:   len(snapshot.RecentMRs),
		BranchProtected: snapshot.BranchRules.Protected,
		Incomplete:      snapshot.Incomplete,
	}
}

// newScanID returns a short, URL-friendly scan identifier.
func newScanID() string {
	return uuid.New().String()[:8]
}

func (s *Service) timeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}
