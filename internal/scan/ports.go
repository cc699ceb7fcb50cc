package scan

import (
	"context"

	"github.com/complyops/autopilot/internal/evidence"
)

// Store persists scan records. Implementations live in internal/scan/store
// (in-memory, Redis, PostgreSQL).
type Store interface {
	Save(ctx context.Context, s Scan) error
	// Get returns nil, nil when the scan does not exist.
	Get(ctx context.Context, id string) (*Scan, error)
	List(ctx context.Context) ([]Scan, error)
}

// RemoteOpener opens an evidence.Remote scoped to one project path.
// Platform hubs (GitLab, GitHub, mock) implement it.
type RemoteOpener interface {
	Open(projectPath string) (evidence.Remote, error)
}

// Evaluator scores an assembled snapshot against the requested compliance
// frameworks. The control catalog lives outside this service; a nil
// evaluator is allowed and leaves scans with evidence summaries only.
type Evaluator interface {
	Evaluate(ctx context.Context, snapshot *evidence.RepoSnapshot, frameworks []string) (*Result, error)
}
