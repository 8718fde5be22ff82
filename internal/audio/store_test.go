package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
)

func TestFileStoreFetch(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/sounds/drums.wav", []byte("RIFF"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	store := NewFileStore(fs, "/sounds")

	data, err := store.Fetch(context.Background(), "drums.wav")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "RIFF" {
		t.Errorf("Expected RIFF, got %q", data)
	}

	if _, err := store.Fetch(context.Background(), "missing.wav"); err == nil {
		t.Error("Expected error for missing asset")
	}
}

func TestFileStoreRejectsInvalidIDs(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/secret.wav", []byte("x"), 0644)
	store := NewFileStore(fs, "/sounds")

	for _, id := range []string{"", "../secret.wav", "sub/file.wav", `sub\file.wav`} {
		if _, err := store.Fetch(context.Background(), id); err == nil {
			t.Errorf("Expected error for id %q", id)
		}
	}
}

func TestFileStoreHonoursContext(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/sounds/a.wav", []byte("x"), 0644)
	store := NewFileStore(fs, "/sounds")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Fetch(ctx, "a.wav"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestHTTPStoreFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sounds/bass_c.wav" {
			w.Write([]byte("bass"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store := NewHTTPStore(srv.URL+"/sounds/", srv.Client())

	data, err := store.Fetch(context.Background(), "bass_c.wav")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if string(data) != "bass" {
		t.Errorf("Expected bass, got %q", data)
	}

	if _, err := store.Fetch(context.Background(), "missing.wav"); err == nil {
		t.Error("Expected error for 404")
	}
	if _, err := store.Fetch(context.Background(), "../etc/passwd"); err == nil {
		t.Error("Expected error for invalid id")
	}
}
