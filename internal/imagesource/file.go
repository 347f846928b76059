package imagesource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the default upper bound for a loaded file (20MB).
const DefaultMaxFileSize = 20 * 1024 * 1024

// FileLoader reads whole files into CapturedImages. No content validation is
// done: whatever the picker hands over is passed downstream.
type FileLoader struct {
	maxSize int64
}

// NewFileLoader creates a FileLoader with the default size limit.
func NewFileLoader() *FileLoader {
	return &FileLoader{maxSize: DefaultMaxFileSize}
}

// WithMaxSize sets a custom maximum file size.
func (l *FileLoader) WithMaxSize(maxSize int64) *FileLoader {
	l.maxSize = maxSize
	return l
}

// MaxSize returns the size limit in bytes.
func (l *FileLoader) MaxSize() int64 {
	return l.maxSize
}

// Load reads r to the end and encodes it as a data URI. declaredMIME is the
// type reported by the file picker; when empty it is sniffed from content.
func (l *FileLoader) Load(ctx context.Context, r io.Reader, declaredMIME string) (*CapturedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ReadError{Err: err}
	}

	// Read one byte past the limit to detect oversized input
	data, err := io.ReadAll(io.LimitReader(r, l.maxSize+1))
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	if int64(len(data)) > l.maxSize {
		return nil, &ReadError{Err: fmt.Errorf("file too large: exceeds limit of %d bytes", l.maxSize)}
	}
	if len(data) == 0 {
		return nil, &ReadError{Err: errors.New("file is empty")}
	}

	mimeType := declaredMIME
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return NewCapturedImage(data, mimeType), nil
}

// LoadFromPath opens the file at path and loads it. The MIME type is derived
// from the file extension.
func (l *FileLoader) LoadFromPath(ctx context.Context, path string) (*CapturedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Err: err}
	}
	defer f.Close()

	return l.Load(ctx, f, MIMETypeForPath(path))
}

// MIMETypeForPath maps common image extensions to MIME types. Unknown
// extensions return an empty string so the caller falls back to sniffing.
func MIMETypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return ""
	}
}
