package imagesource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"

	"github.com/rs/zerolog/log"
)

// jpegQuality matches the default quality browsers use for canvas JPEG export.
const jpegQuality = 92

// ErrStreamReleased is returned when a released stream is used.
var ErrStreamReleased = errors.New("camera stream already released")

// FrameSource is an open video device producing frames.
type FrameSource interface {
	ReadFrame() (image.Image, error)
	Close() error
}

// Device opens a video source. Implementations should prefer the
// environment-facing camera when more than one is present.
type Device interface {
	Open(ctx context.Context) (FrameSource, error)
}

// Camera hands out exclusive streams from a Device.
type Camera struct {
	device Device
}

// NewCamera creates a Camera backed by device.
func NewCamera(device Device) *Camera {
	return &Camera{device: device}
}

// Acquire opens the device. Any failure is reported as a PermissionError.
// The returned stream must be released by the caller on every path.
func (c *Camera) Acquire(ctx context.Context) (*Stream, error) {
	src, err := c.device.Open(ctx)
	if err != nil {
		var permErr *PermissionError
		if errors.As(err, &permErr) {
			return nil, err
		}
		return nil, &PermissionError{Err: err}
	}
	log.Debug().Msg("camera stream acquired")
	return &Stream{src: src}, nil
}

// CaptureOnce acquires a stream, captures a single frame and releases the
// stream before returning.
func (c *Camera) CaptureOnce(ctx context.Context) (*CapturedImage, error) {
	stream, err := c.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.Release()

	return stream.Capture()
}

// Stream is a live camera stream. It is safe for concurrent use.
type Stream struct {
	mu       sync.Mutex
	src      FrameSource
	released bool
}

// Capture grabs the current frame at the device's native resolution and
// encodes it as a JPEG CapturedImage.
func (s *Stream) Capture() (*CapturedImage, error) {
	data, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return NewCapturedImage(data, "image/jpeg"), nil
}

// Snapshot returns the current frame as JPEG bytes.
func (s *Stream) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil, ErrStreamReleased
	}

	frame, err := s.src.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("failed to read camera frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode camera frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Active reports whether the stream has not been released yet.
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.released
}

// Release stops the underlying device. Calling it more than once is a no-op.
func (s *Stream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.released = true
	if err := s.src.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close camera device")
		return
	}
	log.Debug().Msg("camera stream released")
}
