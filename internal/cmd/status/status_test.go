package status

import (
	"bytes"
	"context"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"42"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.PageURL != "http://localhost:8080/" {
		t.Fatalf("PageURL = %q, want %q", cfg.PageURL, "http://localhost:8080/")
	}
	if cfg.Network != "facebook" {
		t.Fatalf("Network = %q, want %q", cfg.Network, "facebook")
	}
	if cfg.Interval != 0 {
		t.Fatalf("Interval = %s, want 0", cfg.Interval)
	}
	if cfg.LogLevel != "normal" {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, "normal")
	}
}

func TestParseConfigEnvThenFlags(t *testing.T) {
	t.Setenv("STATUSFRAG_PAGE_URL", "http://env.test/")
	t.Setenv("STATUSFRAG_NETWORK", "google")
	t.Setenv("STATUSFRAG_INTERVAL", "5s")

	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-page-url", "http://flag.test/", "7"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	if cfg.PageURL != "http://flag.test/" {
		t.Fatalf("PageURL = %q, want flag value", cfg.PageURL)
	}
	if cfg.Network != "google" {
		t.Fatalf("Network = %q, want env value", cfg.Network)
	}
	if cfg.Interval != 5*time.Second {
		t.Fatalf("Interval = %s, want 5s", cfg.Interval)
	}
}

func TestParseConfigBindings(t *testing.T) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"42", "hero=7", "player-9=", ""})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	want := []Binding{
		{Target: "player-42", ID: "42"},
		{Target: "hero", ID: "7"},
		{Target: "player-9", ID: ""},
		{Target: "player-", ID: ""},
	}
	if diff := cmp.Diff(want, cfg.Bindings); diff != "" {
		t.Fatalf("bindings mismatch (-want +got):\n%s", diff)
	}
}

func TestParseConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no_ids", args: nil},
		{name: "short_interval", args: []string{"-interval", "10ms", "42"}},
		{name: "negative_interval", args: []string{"-interval", "-1s", "42"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := flag.NewFlagSet("status", flag.ContinueOnError)
			fs.SetOutput(io.Discard)
			if _, err := ParseConfig(fs, tc.args); err == nil {
				t.Fatalf("ParseConfig(%q) expected error", tc.args)
			}
		})
	}
}

// playerServer serves a status fragment per player and counts requests.
type playerServer struct {
	*httptest.Server

	mu     sync.Mutex
	bodies map[string]string
	hits   map[string]int
	gates  map[string]chan struct{}
}

func newPlayerServer(t *testing.T, bodies map[string]string) *playerServer {
	t.Helper()
	s := &playerServer{bodies: bodies, hits: map[string]int{}, gates: map[string]chan struct{}{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		body, ok := s.bodies[r.URL.Path]
		gate := s.gates[r.URL.Path]
		s.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if !ok {
			http.Error(w, "unknown player", http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

// hang blocks responses for path until the test ends.
func (s *playerServer) hang(t *testing.T, path string) {
	t.Helper()
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()
	t.Cleanup(func() { close(gate) })
}

func (s *playerServer) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func testConfig(pageURL string, bindings ...Binding) Config {
	return Config{
		Settings: Settings{
			PageURL:  pageURL,
			Network:  "facebook",
			LogLevel: "none",
		},
		Bindings: bindings,
	}
}

func TestRunRendersSections(t *testing.T) {
	t.Setenv("STATUSFRAG_OTEL_ENDPOINT", "")
	srv := newPlayerServer(t, map[string]string{
		"/api/status/facebook/42": "<div>Online</div>",
	})

	cfg := testConfig(srv.URL+"/",
		Binding{Target: "player-42", ID: "42"},
		Binding{Target: "player-0", ID: ""},
		Binding{Target: "player-404", ID: "404"},
	)
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := `<section id="player-42"><div>Online</div></section>
<section id="player-0"></section>
<section id="player-404"></section>
`
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
	if got := srv.hitsFor("/api/status/facebook/42"); got != 1 {
		t.Fatalf("requests for 42 = %d, want 1", got)
	}
}

func TestRunUsesNetworkPath(t *testing.T) {
	t.Setenv("STATUSFRAG_OTEL_ENDPOINT", "")
	srv := newPlayerServer(t, map[string]string{
		"/api/status/google/abc": "<p>healing</p>",
	})

	cfg := testConfig(srv.URL+"/", Binding{Target: "hero", ID: "abc"})
	cfg.Network = "google"
	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := out.String(); got != "<section id=\"hero\"><p>healing</p></section>\n" {
		t.Fatalf("output = %q", got)
	}
}

const hostPage = `<!DOCTYPE html><html><head><title>players</title></head><body>` +
	`<section id="player-42"><em>loading</em></section>` +
	`<section id="player-7"><em>stale</em></section>` +
	`<section id="player-404"><em>keep me</em></section>` +
	`</body></html>`

func writeHostPage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(path, []byte(hostPage), 0o600); err != nil {
		t.Fatalf("write host page: %v", err)
	}
	return path
}

func TestRunFillsHostPage(t *testing.T) {
	t.Setenv("STATUSFRAG_OTEL_ENDPOINT", "")
	srv := newPlayerServer(t, map[string]string{
		"/api/status/facebook/42": "<div>Online</div>",
	})

	cfg := testConfig(srv.URL+"/",
		ParseBinding("42"),
		ParseBinding("player-7="),
		ParseBinding("404"),
	)
	cfg.HostPage = writeHostPage(t)

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	got := out.String()
	for _, want := range []string{
		`<section id="player-42"><div>Online</div></section>`,
		`<section id="player-7"></section>`,
		`<section id="player-404"><em>keep me</em></section>`,
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRunRejectsUnknownHostElement(t *testing.T) {
	t.Setenv("STATUSFRAG_OTEL_ENDPOINT", "")
	cfg := testConfig("http://localhost:8080/", ParseBinding("99"))
	cfg.HostPage = writeHostPage(t)

	if err := Run(context.Background(), cfg, io.Discard); err == nil {
		t.Fatal("expected error for missing player-99 element")
	}
}

func TestBoardRefreshesUntilCanceled(t *testing.T) {
	srv := newPlayerServer(t, map[string]string{
		"/api/status/facebook/42": "<div>Online</div>",
	})
	b, err := newBoard(testConfig(srv.URL+"/", ParseBinding("42")), zap.NewNop())
	if err != nil {
		t.Fatalf("newBoard() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- b.run(ctx, 10*time.Millisecond, &out) }()

	deadline := time.After(5 * time.Second)
	for srv.hitsFor("/api/status/facebook/42") < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for refreshes")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if got := strings.Count(out.String(), `<section id="player-42"><div>Online</div></section>`); got < 3 {
		t.Fatalf("rendered %d refreshes, want at least 3", got)
	}
}

func TestBoardRendersWhenEndpointHangs(t *testing.T) {
	srv := newPlayerServer(t, map[string]string{
		"/api/status/facebook/42": "<div>Online</div>",
		"/api/status/facebook/9":  "<div>never</div>",
	})
	srv.hang(t, "/api/status/facebook/9")

	b, err := newBoard(testConfig(srv.URL+"/", ParseBinding("42"), ParseBinding("9")), zap.NewNop())
	if err != nil {
		t.Fatalf("newBoard() error = %v", err)
	}
	b.waitCap = 50 * time.Millisecond

	var out bytes.Buffer
	if err := b.run(context.Background(), 0, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	want := `<section id="player-42"><div>Online</div></section>
<section id="player-9"></section>
`
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestBoardRoundReturnsOnCancel(t *testing.T) {
	srv := newPlayerServer(t, map[string]string{"/api/status/facebook/9": "<div>never</div>"})
	srv.hang(t, "/api/status/facebook/9")

	b, err := newBoard(testConfig(srv.URL+"/", ParseBinding("9")), zap.NewNop())
	if err != nil {
		t.Fatalf("newBoard() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := b.round(ctx); err == nil {
		t.Fatal("expected round to report cancellation")
	}
}
