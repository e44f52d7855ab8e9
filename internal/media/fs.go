package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FSStore writes uploads to a local directory served under baseURL.
// The default for self-hosted deployments.
type FSStore struct { // implements Store
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating media directory: %w", err)
	}
	return &FSStore{
		dir:     dir,
		baseURL: baseURL,
	}, nil
}

func (s *FSStore) Save(_ context.Context, contentType string, data []byte) (string, error) {
	name, err := objectName(contentType)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("error writing media file: %w", err)
	}

	mediaLogger.Debug().Str("name", name).Int("bytes", len(data)).Msg("Media stored locally")

	return joinURL(s.baseURL, name), nil
}
