// Package media turns message attachments into something the device can open.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"jobchat/internal/constants"
	apperrors "jobchat/internal/errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var dataURIPattern = regexp.MustCompile(`(?s)^data:([^;,]+)(?:;[^,]*)?;base64,(.*)$`)

// Opener hands a resolved URI (remote or file://) to the OS document viewer.
type Opener interface {
	Open(ctx context.Context, uri string) error
}

// DocumentCache decodes data URI attachments into files under cacheDir.
// Files are never removed implicitly; call CleanupOldFiles periodically.
type DocumentCache struct {
	cacheDir string
	logger   *logrus.Logger
	now      func() time.Time
}

func NewDocumentCache(cacheDir string, logger *logrus.Logger) (*DocumentCache, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("document cache directory is required")
	}
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &DocumentCache{cacheDir: cacheDir, logger: logger, now: time.Now}, nil
}

// Resolve returns a URI the viewer can open. Remote URLs pass through
// untouched; data URIs are decoded to a cache file.
func (c *DocumentCache) Resolve(uri string) (string, error) {
	if IsRemoteURL(uri) {
		return uri, nil
	}
	return c.Decode(uri)
}

// Open resolves uri and passes the result to opener.
func (c *DocumentCache) Open(ctx context.Context, uri string, opener Opener) error {
	resolved, err := c.Resolve(uri)
	if err != nil {
		return err
	}
	return opener.Open(ctx, resolved)
}

// Decode writes the payload of a data:<mime>;base64,<payload> string to a
// uniquely named file and returns its file:// URI.
func (c *DocumentCache) Decode(dataURI string) (string, error) {
	mimeType, data, err := ParseDataURI(dataURI)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("doc_%s.%s", uuid.NewString(), constants.DocumentExtension(mimeType))
	path := filepath.Join(c.cacheDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close cache file: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"file_path":  path,
		"mime_type":  mimeType,
		"size_bytes": len(data),
	}).Debug("Decoded document into cache")

	return FileURI(path), nil
}

// CleanupOldFiles removes cache files last modified more than maxAge ago and
// returns how many were removed.
func (c *DocumentCache) CleanupOldFiles(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	cutoff := c.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("failed to get file info: %w", err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.cacheDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove old file: %w", err)
		}
		removed++
	}
	return removed, nil
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded bytes.
func ParseDataURI(dataURI string) (string, []byte, error) {
	m := dataURIPattern.FindStringSubmatch(dataURI)
	if m == nil {
		return "", nil, apperrors.ErrMalformedDataURI
	}

	payload := strings.TrimSpace(m[2])
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "malformed data URI").
				WithUserMessage(apperrors.ErrMalformedDataURI.UserMessage)
		}
	}
	return m[1], data, nil
}

// EncodeDataURI is the inverse of ParseDataURI.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// FileURI converts a local path to a file:// URI.
func FileURI(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// IsRemoteURL reports whether uri is an http(s) URL.
func IsRemoteURL(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}
