package imagesource

import "fmt"

// ReadError reports that a local file could not be read into an image.
type ReadError struct {
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read image: %v", e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// PermissionError reports that the camera could not be opened, either
// because access was denied or because no device exists.
type PermissionError struct {
	Err error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("camera unavailable: %v", e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }
