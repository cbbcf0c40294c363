package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("PICFINDER_TEST_KEY", "value")
	if got := getEnv("PICFINDER_TEST_KEY", "fallback"); got != "value" {
		t.Errorf("getEnv = %q, want %q", got, "value")
	}
	if got := getEnv("PICFINDER_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("getEnv = %q, want fallback", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"false", true, false},
		{"1", false, true},
		{"0", true, false},
		{"", true, true},
		{"notabool", true, true},
	}
	for _, tt := range tests {
		t.Setenv("PICFINDER_TEST_BOOL", tt.value)
		if got := getEnvBool("PICFINDER_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		value string
		def   int
		want  int
	}{
		{"42", 10, 42},
		{" 7 ", 10, 7},
		{"", 10, 10},
		{"notanint", 10, 10},
	}
	for _, tt := range tests {
		t.Setenv("PICFINDER_TEST_INT", tt.value)
		if got := getEnvInt("PICFINDER_TEST_INT", tt.def); got != tt.want {
			t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("OS/Arch = %s/%s, want %s/%s", info.OS, info.Arch, runtime.GOOS, runtime.GOARCH)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PICTURES_DIR", dir)
	t.Setenv("PORT", "9999")
	t.Setenv("BATCH_SIZE", "5")
	t.Setenv("METRICS_ENABLED", "false")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.PicturesDir != dir {
		t.Errorf("PicturesDir = %q, want %q", config.PicturesDir, dir)
	}
	if config.Port != "9999" {
		t.Errorf("Port = %q, want 9999", config.Port)
	}
	if config.BatchSize != 5 {
		t.Errorf("BatchSize = %d, want 5", config.BatchSize)
	}
	if config.MetricsEnabled {
		t.Error("MetricsEnabled = true, want false")
	}
}

func TestLoadConfigRejectsNonDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	t.Setenv("PICTURES_DIR", file)

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted a file as the pictures directory")
	}
}

func TestLoadConfigBadBatchSizeFallsBack(t *testing.T) {
	t.Setenv("PICTURES_DIR", t.TempDir())
	t.Setenv("BATCH_SIZE", "-3")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.BatchSize != defaultBatchSize {
		t.Errorf("BatchSize = %d, want default %d", config.BatchSize, defaultBatchSize)
	}
}

func TestGetRoutes(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/search", func(http.ResponseWriter, *http.Request) {}).Methods("GET")
	router.HandleFunc("/api/index", func(http.ResponseWriter, *http.Request) {}).Methods("POST")

	routes, err := GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("GetRoutes returned %d routes, want 2", len(routes))
	}

	found := map[string]string{}
	for _, route := range routes {
		found[route.Path] = route.Method
	}
	if found["/api/search"] != "GET" || found["/api/index"] != "POST" {
		t.Errorf("Routes = %v", found)
	}
}
