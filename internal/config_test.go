package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/travelogue/internal/library"
	pkgconfig "github.com/starford/travelogue/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_NeedsFlickrCredentials(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("default flickr source without api key should fail")
	}
	cfg.Source.Flickr.APIKey = "key"
	cfg.Source.Flickr.UserID = "42@N00"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with credentials should pass: %v", err)
	}
}

func TestCacheConfig_PathRequiredForPersistentDrivers(t *testing.T) {
	tests := []struct {
		driver string
		path   string
		ok     bool
	}{
		{"memory", "", true},
		{"sqlite", "", false},
		{"sqlite", "cache.db", true},
		{"badger", "", false},
		{"badger", ":memory:", true},
		{"redis", "x", false},
	}
	for _, tt := range tests {
		cfg := CacheConfig{Driver: tt.driver, Path: tt.path}
		err := cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("driver=%s path=%q: err = %v, want ok=%v", tt.driver, tt.path, err, tt.ok)
		}
	}
}

func TestLibraryConfig_SyntheticPosts(t *testing.T) {
	base := NewDefaultConfig().Library

	dup := base
	dup.SyntheticPosts = []library.Synthetic{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate synthetic ids should fail")
	}

	clash := base
	clash.SyntheticPosts = []library.Synthetic{{ID: "tree", Title: "Tree"}}
	if err := clash.Validate(); err == nil {
		t.Error("synthetic id equal to the tree field should fail")
	}

	sameKey := base
	sameKey.PhotoTagsKey = sameKey.LibraryKey
	if err := sameKey.Validate(); err == nil {
		t.Error("photo tags key must differ from library key")
	}

	sc := base.SyncConfig()
	if sc.LibraryKey != "library" || sc.TreeField != "tree" || sc.PhotoTagsKey != "photoTags" {
		t.Errorf("sync config keys = %+v", sc)
	}
	if len(sc.Build.Synthetic) != 2 || sc.Build.Separator != ":" {
		t.Errorf("build options = %+v", sc.Build)
	}
}

func TestConfig_LoadFromYAML(t *testing.T) {
	t.Setenv("TRAVELOGUE_ADMIN_TOKEN", "s3cret")
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9090
auth:
  mode: token
  token: ${TRAVELOGUE_ADMIN_TOKEN}
cache:
  driver: badger
  path: ` + filepath.Join(dir, "badger") + `
  connect_delay: 500ms
source:
  driver: file
  file:
    dir: ./fixtures
    watch: true
library:
  retry_delay: 3s
  synthetic_posts:
    - id: feature
      title: Featured
`
	if err := os.WriteFile(p, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(p, cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.HTTP.Address() != ":9090" || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if !cfg.Auth.AuthEnabled() || cfg.Auth.Token != "s3cret" {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Cache.Options().ConnectDelay != 500*time.Millisecond || cfg.Cache.ConnectAttempts != 3 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Source.Driver != SourceFile || !cfg.Source.File.Watch {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Library.RetryDelay != 3*time.Second || len(cfg.Library.SyntheticPosts) != 1 {
		t.Errorf("library = %+v", cfg.Library)
	}
	if cfg.Library.TreeField != "tree" {
		t.Error("unset keys should keep defaults")
	}
}
