//go:build !gocv

package imagesource

import (
	"context"
	"errors"
)

// GoCVDevice is a placeholder used when built without OpenCV.
type GoCVDevice struct {
	ID int
}

// NewGoCVDevice creates a stub device.
func NewGoCVDevice(id int) *GoCVDevice {
	return &GoCVDevice{ID: id}
}

// Open always fails: camera support needs the gocv build tag.
func (d *GoCVDevice) Open(ctx context.Context) (FrameSource, error) {
	return nil, &PermissionError{Err: errors.New("camera support requires the gocv build tag")}
}
