package cli

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapboard/internal/api"
	"github.com/leapstack-labs/leapboard/internal/cli/testutil"
	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/internal/metrics"
	"github.com/leapstack-labs/leapboard/internal/query"
	"github.com/leapstack-labs/leapboard/internal/state"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

func run(t *testing.T, args ...string) testutil.Result {
	t.Helper()
	return testutil.Execute(context.Background(), NewRootCmd(), args...)
}

func TestRootCmd_Version(t *testing.T) {
	res := run(t, "version")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "leapboard v"+Version)
}

func TestRootCmd_DashboardLifecycle(t *testing.T) {
	t.Chdir(t.TempDir())
	statePath := testutil.StatePath(t)

	res := run(t, "create", "Latency", "--state", statePath, "--tag", "apm", "--description", "p99")
	require.NoError(t, res.Err, res.ErrOut)
	id := testutil.CreatedID(t, res.Out)

	res = run(t, "list", "--state", statePath)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, id)
	assert.Contains(t, res.Out, "Latency")
	testutil.AssertNoANSI(t, res.Out)

	res = run(t, "list", "--state", statePath, "-o", "json")
	require.NoError(t, res.Err)
	var list []*core.Dashboard
	require.NoError(t, json.Unmarshal([]byte(res.Out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, []string{"apm"}, list[0].Data.Tags)
	assert.Equal(t, "cli", list[0].CreatedBy)

	res = run(t, "export", id, "--state", statePath, "--format", "yaml")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "title: Latency")

	exported := filepath.Join(t.TempDir(), "latency.json")
	res = run(t, "export", id, "--state", statePath, "--file", exported)
	require.NoError(t, res.Err)

	res = run(t, "import", exported, "--state", statePath, "--user", "ops")
	require.NoError(t, res.Err, res.ErrOut)
	assert.Contains(t, res.Out, "Imported "+exported)

	res = run(t, "list", "--state", statePath, "--search", "latency", "-o", "json")
	require.NoError(t, res.Err)
	require.NoError(t, json.Unmarshal([]byte(res.Out), &list))
	require.Len(t, list, 2)
	assert.NotEqual(t, list[0].ID, list[1].ID)

	res = run(t, "delete", list[0].ID, list[1].ID, "--state", statePath)
	require.NoError(t, res.Err)

	res = run(t, "list", "--state", statePath)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "(0 dashboards)")
}

func TestRootCmd_CreateDefaultTitle(t *testing.T) {
	t.Chdir(t.TempDir())
	statePath := testutil.StatePath(t)

	res := run(t, "create", "--state", statePath, "-o", "json")
	require.NoError(t, res.Err)

	var d core.Dashboard
	require.NoError(t, json.Unmarshal([]byte(res.Out), &d))
	assert.Equal(t, dashboards.DefaultTitle, d.Data.Title)
	assert.NotEmpty(t, d.ID)
}

func TestRootCmd_ImportStdin(t *testing.T) {
	t.Chdir(t.TempDir())
	statePath := testutil.StatePath(t)

	cmd := NewRootCmd()
	cmd.SetIn(strings.NewReader(`{"title":"From stdin","layout":[{"i":"a","x":0,"y":0,"w":2,"h":2}]}`))
	res := testutil.Execute(context.Background(), cmd, "import", "-", "--state", statePath)

	require.NoError(t, res.Err, res.ErrOut)
	assert.Contains(t, res.Out, "From stdin")
}

func TestRootCmd_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	statePath := testutil.StatePath(t)
	invalid := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"title":"x","layout":[{"i":""}]}`), 0600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"export missing", []string{"export", "nope", "--state", statePath}, "not found"},
		{"export bad format", []string{"export", "x", "--format", "xml", "--state", statePath}, "unsupported export format"},
		{"import invalid", []string{"import", invalid, "--state", statePath}, "failed to import"},
		{"import missing file", []string{"import", "missing.json", "--state", statePath}, "failed to read"},
		{"bad output", []string{"list", "-o", "xml", "--state", statePath}, "invalid output"},
		{"migrate remote", []string{"migrate", "--backend", "http://localhost:1"}, "unset --backend"},
		{"bad backend", []string{"list", "--backend", "ftp://x"}, "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.args...)
			require.Error(t, res.Err)
			assert.Contains(t, res.Err.Error(), tt.want)
		})
	}
}

func TestRootCmd_Migrate(t *testing.T) {
	t.Chdir(t.TempDir())
	statePath := testutil.StatePath(t)

	res := run(t, "migrate", "--state", statePath)

	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "schema version 1")
	assert.FileExists(t, statePath)
}

func TestRootCmd_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapboard.yaml"),
		[]byte("state_path: custom/state.db\nuser: from-file\noutput: json\n"), 0600))

	res := run(t, "create", "Configured")
	require.NoError(t, res.Err, res.ErrOut)

	var d core.Dashboard
	require.NoError(t, json.Unmarshal([]byte(res.Out), &d))
	assert.Equal(t, "from-file", d.CreatedBy)
	assert.FileExists(t, filepath.Join(dir, "custom", "state.db"))
}

func TestRootCmd_RemoteBackend(t *testing.T) {
	t.Chdir(t.TempDir())

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	svc := dashboards.NewService(store, query.NewCache[*core.Dashboard](query.Options{}), metrics.NewDashboardMetrics(nil), nil)

	r := chi.NewRouter()
	api.SetupRoutes(r, svc, "s3cret", nil, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	res := run(t, "list", "--backend", srv.URL)
	require.Error(t, res.Err, "requests without the backend token are rejected")

	t.Setenv("LEAPBOARD_BACKEND__TOKEN", "s3cret")
	res = run(t, "create", "Remote", "--backend", srv.URL, "--user", "remote-user")
	require.NoError(t, res.Err, res.ErrOut)
	id := testutil.CreatedID(t, res.Out)

	stored, err := store.GetDashboard(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Remote", stored.Data.Title)

	res = run(t, "list", "--backend", srv.URL, "-o", "yaml")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Out, "title: Remote")
}

func TestRootCmd_Serve(t *testing.T) {
	t.Chdir(t.TempDir())
	statePath := testutil.StatePath(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res := testutil.Execute(ctx, NewRootCmd(), "serve", "--state", statePath, "--host", "127.0.0.1", "--port", "0")

	assert.NoError(t, res.Err)
}
