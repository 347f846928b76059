//go:build gocv

package imagesource

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// GoCVDevice reads frames from a local video device through OpenCV.
type GoCVDevice struct {
	ID int
}

// NewGoCVDevice creates a device for the given OpenCV device index.
func NewGoCVDevice(id int) *GoCVDevice {
	return &GoCVDevice{ID: id}
}

// Open opens the video device. A device that cannot be opened, because it is
// missing or access was refused, yields a PermissionError.
func (d *GoCVDevice) Open(ctx context.Context) (FrameSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(d.ID)
	if err != nil {
		return nil, &PermissionError{Err: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &PermissionError{Err: fmt.Errorf("video device %d did not open", d.ID)}
	}

	return &gocvFrames{vc: vc, mat: gocv.NewMat()}, nil
}

type gocvFrames struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (f *gocvFrames) ReadFrame() (image.Image, error) {
	if ok := f.vc.Read(&f.mat); !ok || f.mat.Empty() {
		return nil, errors.New("no frame available")
	}
	return f.mat.ToImage()
}

func (f *gocvFrames) Close() error {
	matErr := f.mat.Close()
	if err := f.vc.Close(); err != nil {
		return err
	}
	return matErr
}
