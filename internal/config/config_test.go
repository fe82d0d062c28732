package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

// chdir moves into a fresh directory so no project config or .env leaks in.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("HOME", dir)
	for _, k := range []string{EnvLogLevel, EnvLogFormat, EnvSessionRoot, EnvJournalPath, EnvRenderEndpoint, EnvDiagnosticsDir} {
		t.Setenv(k, "")
	}
	return dir
}

func TestSampleConfigMatchesDefaults(t *testing.T) {
	var fromSample Config
	if err := toml.Unmarshal([]byte(SampleConfig()), &fromSample); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	def := Default()
	if def.Segment.TrimTrailing {
		t.Error("trailing paragraph trimming must be opt-in")
	}
	if fromSample.Segment.Mode != def.Segment.Mode ||
		fromSample.Segment.TrimTrailing != def.Segment.TrimTrailing ||
		strings.Join(fromSample.Segment.Patterns, " ") != strings.Join(def.Segment.Patterns, " ") ||
		fromSample.Resources.IDPolicy != def.Resources.IDPolicy ||
		fromSample.Build.BundleCompression != def.Build.BundleCompression ||
		fromSample.Images.MaxWidth != def.Images.MaxWidth ||
		fromSample.Render.Endpoint != def.Render.Endpoint ||
		fromSample.Merge.StyleMode != def.Merge.StyleMode ||
		fromSample.Session.IdleTimeoutSeconds != def.Session.IdleTimeoutSeconds ||
		fromSample.Journal.Path != def.Journal.Path ||
		fromSample.Logging.Format != def.Logging.Format {
		t.Errorf("sample and defaults disagree:\nsample %+v\ndefault %+v", fromSample, def)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	home := chdir(t)
	cfg, path, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Errorf("exists = true for %s", path)
	}
	if cfg.Segment.Mode != "text" || cfg.Resources.IDPolicy != "attribute" {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := filepath.Join(home, ".local/share/hwpxkit/journal.db"); cfg.Journal.Path != want {
		t.Errorf("journal.path = %s, want %s", cfg.Journal.Path, want)
	}
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "custom.toml")
	os.WriteFile(path, []byte(`
[segment]
mode = "INDEX"
num_type = "endnote"
patterns = ["Q{n}", "", "Q{n}"]

[resources]
id_policy = "filename"
payload_extensions = ["PNG", ".jpg"]

[images]
workers = 0

[session]
root = "~/sessions"
`), 0644)

	cfg, got, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || got != path {
		t.Errorf("path = %s exists = %v", got, exists)
	}
	if cfg.Segment.Mode != "index" || cfg.Segment.NumType != "ENDNOTE" {
		t.Errorf("segment = %+v", cfg.Segment)
	}
	if strings.Join(cfg.Segment.Patterns, ",") != "Q{n}" {
		t.Errorf("patterns = %v", cfg.Segment.Patterns)
	}
	if strings.Join(cfg.Resources.PayloadExtensions, ",") != ".png,.jpg" {
		t.Errorf("extensions = %v", cfg.Resources.PayloadExtensions)
	}
	if cfg.Images.Workers != defaultImageWorkers {
		t.Errorf("workers = %d", cfg.Images.Workers)
	}
	if cfg.Session.Root != filepath.Join(dir, "sessions") {
		t.Errorf("session.root = %s", cfg.Session.Root)
	}
}

func TestLoadProjectFile(t *testing.T) {
	dir := chdir(t)
	os.WriteFile(filepath.Join(dir, projectConfigName), []byte("[merge]\nstyle_mode = \"uniform\"\n"), 0644)
	cfg, path, exists, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || filepath.Base(path) != projectConfigName || cfg.Merge.StyleMode != "uniform" {
		t.Errorf("path=%s exists=%v mode=%s", path, exists, cfg.Merge.StyleMode)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":   "[segment]\nbogus = 1\n",
		"bad mode":      "[segment]\nmode = \"words\"\n",
		"bad pattern":   "[segment]\npatterns = [\"no placeholder\"]\n",
		"bad policy":    "[resources]\nid_policy = \"guess\"\n",
		"bad quality":   "[images]\nquality = 400\n",
		"bad codec":     "[build]\nbundle_compression = \"zstd\"\n",
		"bad endpoint":  "[render]\nendpoint = \"ftp://x\"\n",
		"bad style":     "[merge]\nstyle_mode = \"loose\"\n",
		"bad log level": "[logging]\nlevel = \"loud\"\n",
		"not toml":      "[segment\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := chdir(t)
			path := filepath.Join(dir, "c.toml")
			os.WriteFile(path, []byte(body), 0644)
			if _, _, _, err := Load(path); err == nil {
				t.Errorf("Load accepted %q", body)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := chdir(t)
	os.WriteFile(filepath.Join(dir, ".env"), []byte("HWPXKIT_LOG_LEVEL=debug\nHWPXKIT_RENDER_ENDPOINT=http://render:9000/x\n"), 0644)
	t.Setenv(EnvJournalPath, filepath.Join(dir, "j.db"))
	// Already set variables win over .env.
	t.Setenv(EnvLogLevel, "warn")
	os.Unsetenv(EnvRenderEndpoint)
	t.Cleanup(func() { os.Unsetenv(EnvRenderEndpoint) })

	cfg, _, _, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %s, want warn", cfg.Logging.Level)
	}
	if cfg.Render.Endpoint != "http://render:9000/x" {
		t.Errorf("endpoint = %s", cfg.Render.Endpoint)
	}
	if cfg.Journal.Path != filepath.Join(dir, "j.db") {
		t.Errorf("journal = %s", cfg.Journal.Path)
	}
}

func TestInit(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "conf", "hwpxkit.toml")
	got, err := Init(path)
	if err != nil || got != path {
		t.Fatalf("Init = %s, %v", got, err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Errorf("written sample does not load: %v", err)
	}
	if _, err := Init(path); err == nil {
		t.Error("Init overwrote an existing file")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.RenderTimeout().Seconds() != 120 || cfg.SessionIdleTimeout().Minutes() != 30 ||
		cfg.SessionReapInterval().Minutes() != 5 || cfg.CacheTTL().Minutes() != 10 {
		t.Errorf("durations: %v %v %v %v", cfg.RenderTimeout(), cfg.SessionIdleTimeout(), cfg.SessionReapInterval(), cfg.CacheTTL())
	}
}
