package bootstrap_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/cloudgate/adapters/hasher"
	"github.com/artpar/cloudgate/adapters/sqlite"
	"github.com/artpar/cloudgate/bootstrap"
	"github.com/artpar/cloudgate/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(content))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *bootstrap.App {
	t.Helper()
	a, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{
		Registry:  prometheus.NewRegistry(),
		LogOutput: io.Discard,
	})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	return a
}

func get(t *testing.T, a *bootstrap.App, path, user, password string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if user != "" {
		req.SetBasicAuth(user, password)
	}
	rec := httptest.NewRecorder()
	a.HTTPServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestBootstrap_Integration(t *testing.T) {
	a := newApp(t, loadConfig(t, "logging:\n  level: debug\n  format: console\n"))
	defer a.Shutdown()

	if a.DB != nil {
		t.Error("memory storage should not open a database")
	}
	if a.HTTPServer == nil || a.Service == nil || a.Driver == nil {
		t.Fatal("app components should be initialized")
	}
	if a.HTTPServer.Addr != "0.0.0.0:3001" {
		t.Errorf("Addr = %s", a.HTTPServer.Addr)
	}

	rec := get(t, a, "/api/realms", "mockuser", "mockpassword")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/realms status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `<realm `) {
		t.Errorf("body = %s", rec.Body.String())
	}

	if rec := get(t, a, "/api/realms", "mockuser", "wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rec.Code)
	}
}

func TestBootstrap_SQLiteStorage(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "bootstrap-test.db")
	cfg := loadConfig(t, "storage:\n  driver: sqlite\n  dsn: "+dbPath+"\n")

	a := newApp(t, cfg)
	if a.DB == nil {
		t.Fatal("DB should be opened for sqlite storage")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	if err := a.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM instances").Scan(&count); err != nil {
		t.Fatalf("query instances table: %v", err)
	}
	if count == 0 {
		t.Error("seed instances should be stored")
	}

	if err := a.Shutdown(); err != nil {
		t.Errorf("shutdown error: %v", err)
	}
	if _, err := a.DB.Query("SELECT 1"); err == nil {
		t.Error("expected error querying closed database")
	}
}

func TestBootstrap_HashedPassword(t *testing.T) {
	hash, err := hasher.NewBcrypt(4).Hash("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := loadConfig(t, "auth:\n  user: ops\n  password_hash: \""+string(hash)+"\"\n")

	a := newApp(t, cfg)
	defer a.Shutdown()

	if rec := get(t, a, "/api/realms", "ops", "s3cret"); rec.Code != http.StatusOK {
		t.Errorf("correct password status = %d, want 200", rec.Code)
	}
	if rec := get(t, a, "/api/realms", "ops", string(hash)); rec.Code != http.StatusUnauthorized {
		t.Errorf("hash as password status = %d, want 401", rec.Code)
	}
}

func TestBootstrap_Metrics(t *testing.T) {
	a := newApp(t, loadConfig(t, "metrics:\n  enabled: true\n  path: /internal/metrics\n"))
	defer a.Shutdown()

	get(t, a, "/api/realms", "mockuser", "mockpassword")

	rec := get(t, a, "/internal/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cloudgate_requests_total") {
		t.Error("metrics output should contain cloudgate_requests_total")
	}
}

func TestBootstrap_ACMEUsesDatabaseCache(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tls-test.db")
	cfg := loadConfig(t, `
server:
  tls:
    acme_domains: [api.example.com]
    acme_staging: true
storage:
  driver: sqlite
  dsn: `+dbPath+"\n")

	a := newApp(t, cfg)
	defer a.Shutdown()

	if a.TLS == nil || a.TLS.Manager == nil {
		t.Fatal("ACME should be configured")
	}
	if _, ok := a.TLS.Manager.Cache.(*sqlite.CertCache); !ok {
		t.Errorf("cache = %T, want *sqlite.CertCache", a.TLS.Manager.Cache)
	}
	if a.HTTPServer.TLSConfig == nil {
		t.Error("server TLSConfig should be set")
	}
}

func TestBootstrap_TLSMissingFiles(t *testing.T) {
	cfg := loadConfig(t, "server:\n  tls:\n    cert_file: /nonexistent/c.pem\n    key_file: /nonexistent/k.pem\n")
	if _, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{LogOutput: io.Discard}); err == nil {
		t.Fatal("expected error for missing certificate files")
	}
}

func TestBootstrap_UnknownSeedFile(t *testing.T) {
	cfg := loadConfig(t, "driver:\n  seed_file: "+filepath.Join(t.TempDir(), "missing.yaml")+"\n")
	_, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{LogOutput: io.Discard})
	if err == nil {
		t.Fatal("expected error for missing seed file")
	}
}

func TestBootstrap_ReloadChangesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudgate.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}
	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}

	a, err := bootstrap.New(context.Background(), holder.Get(), bootstrap.Options{
		Holder:    holder,
		LogOutput: io.Discard,
	})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer a.Shutdown()
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := os.WriteFile(path, []byte("logging:\n  level: error\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := holder.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Errorf("global level = %v, want error", zerolog.GlobalLevel())
	}
}

func TestBootstrap_RunStopsOnCancel(t *testing.T) {
	cfg := loadConfig(t, "server:\n  host: 127.0.0.1\n  port: 38917\n")
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	logger := bootstrap.SetupLogger(&buf, "warn", "json")
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("log output = %s", out)
	}

	buf.Reset()
	logger = bootstrap.SetupLogger(&buf, "bogus", "console")
	logger.Info().Msg("console line")
	if !strings.Contains(buf.String(), "console line") {
		t.Errorf("console output = %s", buf.String())
	}
}
