package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/complyops/autopilot/internal/evidence"
	"github.com/complyops/autopilot/internal/platform/mockremote"
	"github.com/complyops/autopilot/internal/platform/validation"
	"github.com/complyops/autopilot/internal/scan"
	"github.com/complyops/autopilot/internal/scan/handler"
	"github.com/complyops/autopilot/internal/scan/store"
	"github.com/complyops/autopilot/schemas"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ─── Stubs ────────────────────────────────────────────────────────────────────

type stubOpener struct {
	openFn func(projectPath string) (evidence.Remote, error)
}

func (o *stubOpener) Open(projectPath string) (evidence.Remote, error) {
	if o.openFn != nil {
		return o.openFn(projectPath)
	}
	return mockremote.Seeded(projectPath), nil
}

// ─── Test server builder ──────────────────────────────────────────────────────

type testServer struct {
	router *gin.Engine
	store  *store.MemoryStore
	opener *stubOpener
	svc    *scan.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:  store.NewMemoryStore(),
		opener: &stubOpener{},
	}
	ts.svc = &scan.Service{
		Opener: ts.opener,
		Demo:   mockremote.Opener{},
		Store:  ts.store,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	r := gin.New()
	handler.RegisterRoutes(r, ts.svc, slog.Default())
	ts.router = r
	return ts
}

func newTestServerWithValidation(t *testing.T) *testServer {
	t.Helper()
	ts := newTestServer(t)
	mw, err := validation.New(schemas.OpenAPISpec)
	require.NoError(t, err)
	r := gin.New()
	r.Use(mw)
	handler.RegisterRoutes(r, ts.svc, slog.Default())
	ts.router = r
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// waitForStatus polls the store until the scan reaches the expected status.
func (ts *testServer) waitForStatus(t *testing.T, id string, status scan.Status) scan.Scan {
	t.Helper()
	var job *scan.Scan
	require.Eventually(t, func() bool {
		var err error
		job, err = ts.store.Get(context.Background(), id)
		require.NoError(t, err)
		return job != nil && job.Status == status
	}, 5*time.Second, 10*time.Millisecond)
	return *job
}
