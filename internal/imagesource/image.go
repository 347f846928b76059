// Package imagesource turns user-supplied pictures (uploaded files or camera
// frames) into CapturedImage values ready for display and analysis.
package imagesource

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// CapturedImage is a single acquired picture. It is analyzed once and then
// kept only for display.
type CapturedImage struct {
	Data     []byte
	MIMEType string
	DataURI  string
}

// NewCapturedImage builds a CapturedImage and its data URI.
func NewCapturedImage(data []byte, mimeType string) *CapturedImage {
	return &CapturedImage{
		Data:     data,
		MIMEType: mimeType,
		DataURI:  EncodeDataURI(mimeType, data),
	}
}

// EncodeDataURI returns data as a "data:<mime>;base64,<payload>" string.
func EncodeDataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI splits a base64 data URI into its MIME type and decoded bytes.
// The MIME type is the text between the first ':' and the first ';', the
// payload is everything after the first ','.
func ParseDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}
	semi := strings.Index(uri, ";")
	comma := strings.Index(uri, ",")
	if semi == -1 || comma == -1 || semi > comma {
		return "", nil, fmt.Errorf("malformed data URI")
	}
	if uri[semi+1:comma] != "base64" {
		return "", nil, fmt.Errorf("unsupported data URI encoding %q", uri[semi+1:comma])
	}

	mimeType := uri[len("data:"):semi]
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return mimeType, data, nil
}
