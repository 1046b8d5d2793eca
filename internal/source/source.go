// Package source reads the raw knowledge text from a local file or an
// s3://bucket/key location.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragchat/internal/domain"
)

const s3Scheme = "s3://"

// ObjectReader defines the storage interface for remote sources
type ObjectReader interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Loader resolves a location to its text content
type Loader struct {
	objects ObjectReader
}

// NewLoader creates a Loader. objects may be nil, in which case s3://
// locations fail as unavailable.
func NewLoader(objects ObjectReader) *Loader {
	return &Loader{objects: objects}
}

// Load reads location fully. Every failure is reported as SOURCE_UNAVAILABLE.
func (l *Loader) Load(ctx context.Context, location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", domain.SourceUnavailable(location, errors.New("no location configured"))
	}

	var (
		data []byte
		err  error
	)
	if IsS3(location) {
		data, err = l.loadS3(ctx, location)
	} else {
		data, err = loadFile(location)
	}
	if err != nil {
		return "", domain.SourceUnavailable(location, err)
	}

	if !utf8.Valid(data) {
		return "", domain.SourceUnavailable(location, errors.New("content is not valid UTF-8"))
	}
	return string(data), nil
}

func (l *Loader) loadS3(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := ParseS3(location)
	if err != nil {
		return nil, err
	}
	if l.objects == nil {
		return nil, errors.New("s3 storage not configured")
	}
	return l.objects.GetObject(ctx, bucket, key)
}

func loadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return os.ReadFile(path)
}

// IsS3 reports whether location uses the s3:// scheme.
func IsS3(location string) bool {
	return strings.HasPrefix(location, s3Scheme)
}

// ParseS3 splits s3://bucket/key into its bucket and key.
func ParseS3(location string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(location, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q, expected s3://bucket/key", location)
	}
	return bucket, key, nil
}
