package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "newsboard.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestPanelsListsPriorityOrder(t *testing.T) {
	t.Setenv("NEWSBOARD_CONFIG", "")
	path := writeConfig(t, `
panels:
  - key: latest
    title: Latest
    scanner: api
  - key: tech
    scanner: rss
    url: https://example.org/tech.xml
`)

	out, _, err := execute(t, "panels", "--config", path)
	if err != nil {
		t.Fatalf("panels: %v", err)
	}
	want := "1. latest (api) Latest\n2. tech (rss)\n"
	if out != want {
		t.Fatalf("unexpected output:\n%q\nwant\n%q", out, want)
	}
}

func TestRenderPrintsBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/panels/latest" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"items":[{"id":1,"title":"Monsoon arrives early"},{"id":"2","title":"Markets rally"}]}`)
	}))
	defer srv.Close()

	t.Setenv("NEWSBOARD_CONFIG", "")
	t.Setenv("CONTENT_API_URL", srv.URL)
	t.Setenv("LOG_LEVEL", "error")
	path := writeConfig(t, `
board:
  target: 5
  visibleBatch: 2
  backgroundDelay: 10ms
  debounce: 20ms
panels:
  - key: latest
    title: Latest
    scanner: api
`)

	out, _, err := execute(t, "render", "--config", path, "--timeout", "5s")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"== Latest (", "Monsoon arrives early", "Markets rally"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestUnknownScannerFailsCommand(t *testing.T) {
	t.Setenv("NEWSBOARD_CONFIG", "")
	path := writeConfig(t, `
panels:
  - key: latest
    scanner: carrier-pigeon
`)

	if _, _, err := execute(t, "panels", "--config", path); err == nil {
		t.Fatalf("expected an error for an unknown scanner")
	}
}

func TestResolveVersion(t *testing.T) {
	t.Parallel()

	cases := []struct {
		ldflags string
		info    *debug.BuildInfo
		want    string
	}{
		{ldflags: "v1.2.3", info: &debug.BuildInfo{Main: debug.Module{Version: "v0.0.1"}}, want: "v1.2.3"},
		{ldflags: "dev", info: &debug.BuildInfo{Main: debug.Module{Version: "v1.2.3"}}, want: "v1.2.3"},
		{ldflags: "dev", info: &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, want: "dev"},
		{ldflags: "dev", info: nil, want: "dev"},
	}
	for _, tc := range cases {
		if got := resolveVersion(tc.ldflags, tc.info); got != tc.want {
			t.Fatalf("resolveVersion(%q) = %q, want %q", tc.ldflags, got, tc.want)
		}
	}
}
