// Package media stores uploaded images for memorials: portraits, cover
// photos and gallery items. The wizard only ever sees the returned URL;
// storage mechanics stay behind the Store interface.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var mediaLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	mediaLogger = l
}

var ErrUnsupportedType = errors.New("unsupported media type")

// MaxUploadBytes caps a single upload. Phone camera photos fit well
// under this.
const MaxUploadBytes = 20 << 20

var extByContentType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Store interface {
	// Save persists the blob and returns a URL the site can serve it
	// from.
	Save(ctx context.Context, contentType string, data []byte) (string, error)
}

// objectName builds a unique storage key for an upload.
func objectName(contentType string) (string, error) {
	ext, ok := extByContentType[strings.ToLower(contentType)]
	if !ok {
		return "", fmt.Errorf("%q: %w", contentType, ErrUnsupportedType)
	}
	return uuid.New().String() + ext, nil
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + path.Base(name)
}
