package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// AssetStore retrieves encoded audio by asset id.
type AssetStore interface {
	Fetch(ctx context.Context, id string) ([]byte, error)
}

func validAssetID(id string) error {
	if id == "" {
		return fmt.Errorf("asset id is required")
	}
	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("invalid asset id '%s'", id)
	}
	return nil
}

// FileStore reads assets from a directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore serves assets from dir on fs. Pass afero.NewOsFs() for disk.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	return &FileStore{fs: fs, dir: dir}
}

func (s *FileStore) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := validAssetID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, id))
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", id, err)
	}
	return data, nil
}

// HTTPStore fetches assets from <baseURL>/<id>.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a store rooted at baseURL. A nil client uses a
// client with a 30 second timeout.
func NewHTTPStore(baseURL string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPStore{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPStore) Fetch(ctx context.Context, id string) ([]byte, error) {
	if err := validAssetID(id); err != nil {
		return nil, err
	}
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid asset base url: %w", err)
	}
	u.Path = path.Join(u.Path, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", id, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching asset %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching asset %s: unexpected status %s", id, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading asset %s: %w", id, err)
	}
	return data, nil
}
