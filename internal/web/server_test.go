package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/datacleaner/internal/config"
	"github.com/JonMunkholm/datacleaner/internal/core"
	"github.com/JonMunkholm/datacleaner/internal/errs"
	"github.com/JonMunkholm/datacleaner/internal/resource"
)

type testServer struct {
	root string
	srv  *Server
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Config{}
	cfg.Server.DataRoot = root
	cfg.Security.EnableCSP = true
	for _, m := range mutate {
		m(cfg)
	}

	svc := core.NewService(core.Options{
		ConvertDir: filepath.Join(root, "converted"),
		OutputDir:  filepath.Join(root, "cleaned"),
		Probe: resource.ProbeFunc(func(context.Context) (uint64, error) {
			return 16 << 30, nil
		}),
		Workers: 2,
		MaxWait: time.Second,
	})
	ts := &testServer{root: root, srv: NewServer(svc, cfg)}
	t.Cleanup(func() { ts.srv.Shutdown(context.Background()) })
	return ts
}

func (ts *testServer) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(ts.root, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "web-test")
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type runBody struct {
	ID      string   `json:"id"`
	Phase   string   `json:"phase"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
	Output  string   `json:"output"`
	Origin  struct {
		Source    string `json:"source"`
		UserAgent string `json:"user_agent"`
	} `json:"origin"`
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "jobs")
	assert.Contains(t, body, "cache")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestStartRun_Sync(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "people.csv", "First Name,Age\nAnn,30\n")

	rec := ts.do(t, http.MethodPost, "/api/runs", map[string]any{"input": "people.csv"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[runBody](t, rec)
	assert.Equal(t, "complete", res.Phase)
	assert.Equal(t, []string{"first_name", "age"}, res.Columns)
	assert.Equal(t, 1, res.Rows)
	assert.Equal(t, filepath.Join(ts.root, "cleaned", "people.cleaned.csv"), res.Output)
	assert.Equal(t, "http", res.Origin.Source)
	assert.Equal(t, "web-test", res.Origin.UserAgent)
}

func TestStartRun_Errors(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "ok.csv", "id\n1\n")

	tests := []struct {
		name     string
		body     any
		wantCode int
		wantErr  string
		wantRun  bool
	}{
		{"escapes root", map[string]any{"input": "../outside.csv"}, http.StatusBadRequest, "FILE001", false},
		{"missing file", map[string]any{"input": "missing.csv"}, http.StatusNotFound, "FILE002", true},
		{"bad output format", map[string]any{"input": "ok.csv", "output_format": "xml"}, http.StatusBadRequest, "JOB005", false},
		{"invalid json", "{", http.StatusBadRequest, "REQ001", false},
		{"unknown field", map[string]any{"input": "ok.csv", "bogus": true}, http.StatusBadRequest, "REQ001", false},
		{"empty body", "", http.StatusBadRequest, "REQ001", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			body := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.wantErr, body.Code)
			if tt.wantRun {
				assert.NotEmpty(t, body.RunID)
			} else {
				assert.Empty(t, body.RunID)
			}
		})
	}
}

func TestStartRun_UnsupportedFormatIsUnprocessable(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "notes.doc", "hello")

	rec := ts.do(t, http.MethodPost, "/api/runs", map[string]any{"input": "notes.doc"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "FILE004", decode[ErrorResponse](t, rec).Code)
}

func TestStartRun_Async(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "a.csv", "x\n1\n")

	rec := ts.do(t, http.MethodPost, "/api/runs?async=true", map[string]any{"input": "a.csv", "dry_run": true})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	started := decode[startedResponse](t, rec)
	require.NotEmpty(t, started.ID)
	assert.Equal(t, "/api/runs/"+started.ID, started.StatusURL)
	assert.Equal(t, started.StatusURL, rec.Header().Get("Location"))

	assert.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, started.StatusURL, nil)
		rec := httptest.NewRecorder()
		ts.srv.Router().ServeHTTP(rec, req)
		var res runBody
		return rec.Code == http.StatusOK &&
			json.Unmarshal(rec.Body.Bytes(), &res) == nil &&
			res.Phase == "complete"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunBatch(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "a.csv", "x\n1\n")
	ts.write(t, "b.csv", "y\n2\n")

	rec := ts.do(t, http.MethodPost, "/api/runs/batch", map[string]any{
		"runs": []map[string]any{
			{"input": "a.csv", "dry_run": true},
			{"input": "missing.csv"},
			{"input": "b.csv", "dry_run": true},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Runs []runBody `json:"runs"`
	}](t, rec)
	require.Len(t, body.Runs, 3)
	assert.Equal(t, []string{"x"}, body.Runs[0].Columns)
	assert.Equal(t, "failed", body.Runs[1].Phase)
	assert.Equal(t, []string{"y"}, body.Runs[2].Columns)

	rec = ts.do(t, http.MethodPost, "/api/runs/batch", map[string]any{"runs": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/runs/batch", map[string]any{
		"runs": []map[string]any{{"input": "/etc/passwd"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndGetRuns(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "a.csv", "x\n1\n")
	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/runs", map[string]any{"input": "a.csv", "dry_run": true})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Runs []runBody `json:"runs"`
	}](t, rec)
	require.Len(t, list.Runs, 2)

	rec = ts.do(t, http.MethodGet, "/api/runs/"+list.Runs[0].ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, list.Runs[0].ID, decode[runBody](t, rec).ID)

	rec = ts.do(t, http.MethodGet, "/api/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB002", decode[ErrorResponse](t, rec).Code)
}

func TestAssessAndConvert(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "data.tsv", "a\tb\n1\t2\n")

	rec := ts.do(t, http.MethodGet, "/api/assess?path=data.tsv", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	as := decode[map[string]any](t, rec)
	assert.Equal(t, filepath.Join(ts.root, "data.tsv"), as["path"])

	rec = ts.do(t, http.MethodGet, "/api/assess", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/convert", map[string]any{"path": "data.tsv", "output_dir": "out"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conv := decode[map[string]any](t, rec)
	assert.Equal(t, true, conv["converted"])
	assert.Equal(t, filepath.Join(ts.root, "out", "data.converted.csv"), conv["path"])

	b, err := os.ReadFile(filepath.Join(ts.root, "out", "data.converted.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(b))
}

func TestLookupCacheEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "orders.csv", "id,v\n1,a\n")
	lk := ts.write(t, "lk.csv", "id,w\n1,x\n")

	rec := ts.do(t, http.MethodPost, "/api/runs", map[string]any{
		"input":   "orders.csv",
		"dry_run": true,
		"lookup":  map[string]any{"path": "lk.csv", "key": "id", "fields": []string{"w"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/lookup-cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[struct {
		Entries int      `json:"entries"`
		Paths   []string `json:"paths"`
	}](t, rec)
	assert.Equal(t, 1, stats.Entries)

	rec = ts.do(t, http.MethodDelete, "/api/lookup-cache?path=lk.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	evicted := decode[map[string]any](t, rec)
	assert.Equal(t, true, evicted["evicted"])
	assert.Equal(t, lk, evicted["path"])

	rec = ts.do(t, http.MethodDelete, "/api/lookup-cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["reset"])
}

func TestRunPages(t *testing.T) {
	ts := newTestServer(t)
	ts.write(t, "a.csv", "x\n1\n")
	rec := ts.do(t, http.MethodPost, "/api/runs", map[string]any{"input": "a.csv", "dry_run": true})
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[runBody](t, rec).ID

	rec = ts.do(t, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/runs/"+id)

	rec = ts.do(t, http.MethodGet, "/runs/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)

	rec = ts.do(t, http.MethodGet, "/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "JOB002")
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	rec := ts.do(t, http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health and pages stay open.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestRunEndpointsRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.Rate.Enabled = true
		c.Rate.RequestsPerMinute = 100
		c.Rate.RunLimit = 1
	})

	first := ts.do(t, http.MethodPost, "/api/runs", "{")
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := ts.do(t, http.MethodPost, "/api/runs", "{")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, second).Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))

	// Read endpoints use the general limit.
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/runs", nil).Code)
}

func TestRateLimiterWindow(t *testing.T) {
	stop := make(chan struct{})
	defer close(stop)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute, stop)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("2.2.2.2"), "limits are per client")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.allow("1.1.1.1"))
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		root    string
		path    string
		want    string
		wantErr bool
	}{
		{"relative inside root", root, "a/b.csv", filepath.Join(root, "a", "b.csv"), false},
		{"absolute inside root", root, filepath.Join(root, "x.csv"), filepath.Join(root, "x.csv"), false},
		{"dot dot inside root", root, "a/../b.csv", filepath.Join(root, "b.csv"), false},
		{"escapes with dot dot", root, "../b.csv", "", true},
		{"absolute outside root", root, "/etc/passwd", "", true},
		{"blank", root, "  ", "", true},
		{"no root cleans", "", "a/./b.csv", filepath.Join("a", "b.csv"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePath(tt.root, tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, statusFor(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolvePathFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.csv"), []byte("a\n1\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root, "data"), filepath.Join(root, "alias")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone"), filepath.Join(root, "dangling")))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{"link to outside dir", "escape/secret.csv", errOutsideRoot},
		{"link itself", "escape", errOutsideRoot},
		{"new file under outside link", "escape/new/out.csv", errOutsideRoot},
		{"dangling link", "dangling", errDanglingLink},
		{"link inside root", "alias/in.csv", nil},
		{"missing file inside root", "data/later/out.csv", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePath(root, tt.path)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, errs.ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.path), got)
		})
	}
}

func TestResolveRequestSkipsPostgresOutput(t *testing.T) {
	ts := newTestServer(t)
	req := core.RunRequest{Input: "a.csv", OutputFormat: "postgres", Output: "customers"}
	require.NoError(t, ts.srv.resolveRequest(&req))
	assert.Equal(t, "customers", req.Output)
	assert.True(t, strings.HasPrefix(req.Input, ts.root))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrTooManyJobs, http.StatusServiceUnavailable},
		{core.ErrRunNotFound, http.StatusNotFound},
		{core.ErrInvalidRequest, http.StatusBadRequest},
		{&errs.KeyTypeError{Key: "id", MainKind: "text", LookupKind: "int"}, http.StatusUnprocessableEntity},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
