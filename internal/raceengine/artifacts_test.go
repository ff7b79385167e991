package raceengine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
)

const testCircuitsDocument = `{
	"Silverstone": {"total_laps": 52, "pit_loss": 21.0, "base_pace_s": 90.0, "min_compound_variety": 2}
}`

const testModelDocument = `{
	"circuit": "Silverstone",
	"compound": "SOFT",
	"schema_version": 1,
	"survival": {"shape": 2.6, "characteristic_life": 22.0, "temp_sensitivity": 0.18, "reference_temp": 30.0},
	"pace_loss_per_lap": 0.04
}`

func newTestArtifactStore(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/circuits.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testCircuitsDocument))
	})

	mux.HandleFunc("/models/Silverstone_SOFT.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testModelDocument))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestLoadModelCache(t *testing.T) {
	server := newTestArtifactStore(t)

	config := ArtifactStoreConfig{
		BaseURL:   server.URL,
		CacheFile: filepath.Join(t.TempDir(), "artifacts.db"),
		Circuits:  []string{"Silverstone"},
		Compounds: []string{"SOFT"},
	}

	cache, err := NewArtifactLoader(config, logrus.New()).LoadModelCache(context.Background())

	if err != nil {
		t.Fatalf("Expected load to succeed, got %s", err)
	}

	status := cache.Status()

	if !reflect.DeepEqual(status.Keys, []string{"Silverstone/SOFT"}) {
		t.Errorf("Unexpected cache keys: %v", status.Keys)
	}

	artifact, err := cache.Lookup("Silverstone", "SOFT")

	if err != nil {
		t.Fatalf("Expected lookup to succeed, got %s", err)
	}

	if artifact.Meta.TotalLaps != 52 || artifact.Meta.MinCompoundVariety != 2 {
		t.Errorf("Expected circuit metadata to be attached, got %+v", artifact.Meta)
	}
}

func TestLoadModelCacheMirrorFallback(t *testing.T) {
	server := newTestArtifactStore(t)

	config := ArtifactStoreConfig{
		BaseURL:   server.URL,
		CacheFile: filepath.Join(t.TempDir(), "artifacts.db"),
		Circuits:  []string{"Silverstone"},
		Compounds: []string{"SOFT"},
	}

	logger := logrus.New()

	if _, err := NewArtifactLoader(config, logger).LoadModelCache(context.Background()); err != nil {
		t.Fatalf("Expected first load to succeed, got %s", err)
	}

	// store is gone; the mirrored copies must carry the restart
	server.Close()

	cache, err := NewArtifactLoader(config, logger).LoadModelCache(context.Background())

	if err != nil {
		t.Fatalf("Expected mirror fallback to succeed, got %s", err)
	}

	if !cache.Status().Loaded {
		t.Errorf("Expected a populated cache from the mirror")
	}
}

func TestLoadModelCacheMissingArtifactFailsStartup(t *testing.T) {
	server := newTestArtifactStore(t)

	config := ArtifactStoreConfig{
		BaseURL:   server.URL,
		CacheFile: filepath.Join(t.TempDir(), "artifacts.db"),
		Circuits:  []string{"Silverstone"},
		Compounds: []string{"SOFT", "MEDIUM"},
	}

	_, err := NewArtifactLoader(config, logrus.New()).LoadModelCache(context.Background())

	if err == nil {
		t.Fatal("Expected a missing required artifact to fail the load")
	}

	var loadErr *StartupArtifactLoadError

	if !errors.As(err, &loadErr) {
		t.Fatalf("Expected StartupArtifactLoadError, got %T: %s", err, err)
	}

	if loadErr.Artifact != "models/Silverstone_MEDIUM.json" {
		t.Errorf("Expected the missing artifact to be named, got %q", loadErr.Artifact)
	}
}
