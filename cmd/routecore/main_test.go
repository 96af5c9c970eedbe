package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/routecore/internal/config"
	"github.com/vango-dev/routecore/internal/errors"
	"github.com/vango-dev/routecore/internal/manifest"
	"github.com/vango-dev/routecore/pkg/router"
)

const site = `
root:
  loader:
    data: {nav: [home, about]}
routes:
  - path: /
    loader:
      data: home
  - path: about
    loader:
      data: about
  - path: posts
    children:
      - path: $postId
        params: {postId: int}
        loader:
          data: {id: "{postId}"}
          defer:
            comments: {delay: 1ms, data: ["on {postId}"]}
  - path: old
    loader:
      redirect: /about
`

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(site), 0o644))
	return path
}

// run executes the CLI with args against the test manifest.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--manifest", writeManifest(t), "--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, err := run(t, "routes")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Contains(t, out, "/posts/$postId")
	assert.Contains(t, out, "/about")
	assert.Less(t, strings.Index(out, "/posts/$postId"), strings.Index(out, "/posts "), "longer paths rank first")
}

func TestMatchCommand(t *testing.T) {
	out, err := run(t, "match", "/posts/7")
	require.NoError(t, err)
	assert.Contains(t, out, "__root__")
	assert.Contains(t, out, "/posts/7")
	assert.Contains(t, out, "postId=7")
	assert.NotContains(t, out, "not-found")

	out, err = run(t, "match", "/nope")
	require.NoError(t, err)
	assert.Contains(t, out, "renders not-found")
}

func TestMatchCommandLoadJSON(t *testing.T) {
	out, err := run(t, "match", "/posts/7", "--load", "--json")
	require.NoError(t, err)

	var state router.DehydratedState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.Equal(t, http.StatusOK, state.StatusCode)
	assert.Equal(t, "/posts/7", state.Location.Pathname)
	require.Len(t, state.Matches, 3)
	for _, m := range state.Matches {
		assert.Equal(t, router.StatusSuccess, m.Status, m.ID)
	}
}

func TestNavigateCommand(t *testing.T) {
	out, err := run(t, "navigate", "/posts/1", "/old", "back")
	require.NoError(t, err)

	assert.Contains(t, out, "→ /posts/1")
	assert.Contains(t, out, "[idle 200] /posts/1")

	// The redirect replaces /old with /about.
	afterOld := out[strings.Index(out, "→ /old"):strings.Index(out, "→ back")]
	assert.Contains(t, afterOld, "[idle 200] /about")

	afterBack := out[strings.Index(out, "→ back"):]
	assert.Contains(t, afterBack, "[idle 200] /posts/1")
}

func TestNavigateCommandBadGo(t *testing.T) {
	_, err := run(t, "navigate", "go:x")
	assert.True(t, errors.HasCode(err, "R400"), "got %v", err)
}

func TestMissingManifest(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--manifest", filepath.Join(t.TempDir(), "none.yaml"), "--env-file", "", "routes"})
	err := cmd.Execute()
	assert.True(t, errors.HasCode(err, "R300"), "got %v", err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--short"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.New()
	cfg.Server.Metrics = true
	m, err := manifest.Load(writeManifest(t))
	require.NoError(t, err)

	s, err := newServer(context.Background(), cfg, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(s.close)
	h, err := s.handler()
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestServeSSR(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/posts/3")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	var state router.DehydratedState
	require.NoError(t, json.Unmarshal(sc.Bytes(), &state))
	assert.Equal(t, "/posts/3", state.Location.Pathname)

	require.True(t, sc.Scan())
	assert.Contains(t, sc.Text(), "on 3")
}

func TestServeLiveNavigate(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Post(srv.URL+config.DefaultLivePath+"/navigate", "application/json", strings.NewReader(`{"href": "/about"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state router.DehydratedState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.Equal(t, "/about", state.Location.Pathname)

	resp, err = http.Post(srv.URL+config.DefaultLivePath+"/navigate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeMetrics(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/about")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + config.DefaultMetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "routecore_loads_total")
	assert.Contains(t, string(body), `routecore_navigations_total{code="200"}`)
	assert.Contains(t, string(body), "go_goroutines")
}
