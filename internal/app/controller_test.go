package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, data []byte, mimeType string) (*llm.AnalysisResult, error) {
	args := m.Called(ctx, data, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llm.AnalysisResult), args.Error(1)
}

// blockingAnalyzer returns whatever is sent on results, or the context error
// once the call is canceled.
type blockingAnalyzer struct {
	started  chan struct{}
	results  chan *llm.AnalysisResult
	canceled chan struct{}
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{
		started:  make(chan struct{}, 10),
		results:  make(chan *llm.AnalysisResult),
		canceled: make(chan struct{}, 10),
	}
}

func (b *blockingAnalyzer) Analyze(ctx context.Context, data []byte, mimeType string) (*llm.AnalysisResult, error) {
	b.started <- struct{}{}
	select {
	case r := <-b.results:
		return r, nil
	case <-ctx.Done():
		b.canceled <- struct{}{}
		return nil, &llm.AnalysisError{Err: ctx.Err()}
	}
}

type fakeFrames struct {
	mu      sync.Mutex
	readErr error
	closed  int
}

func (f *fakeFrames) ReadFrame() (image.Image, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img, nil
}

func (f *fakeFrames) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeFrames) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDevice struct {
	frames  *fakeFrames
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context) (imagesource.FrameSource, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.frames, nil
}

func newTestController(t *testing.T, analyzer llm.Analyzer, device imagesource.Device) *Controller {
	t.Helper()
	var camera *imagesource.Camera
	if device != nil {
		camera = imagesource.NewCamera(device)
	}
	c := NewController(analyzer, camera, imagesource.NewFileLoader())
	c.Start()
	t.Cleanup(c.Stop)
	return c
}

func waitForPhase(t *testing.T, c *Controller, phase Phase) State {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().Phase() == phase
	}, time.Second, 5*time.Millisecond, "expected phase %s, got %s", phase, c.Snapshot().Phase())
	return c.Snapshot()
}

func TestController_InitialStateIsIdle(t *testing.T) {
	c := newTestController(t, new(mockAnalyzer), nil)

	s := c.Snapshot()
	assert.True(t, s.IsIdle())
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestController_UploadThenResults(t *testing.T) {
	analyzer := new(mockAnalyzer)
	products := []llm.Product{
		{Name: "Cola", Description: "Soft drink"},
		{Name: "Peanuts", Description: "Snack", HasWarning: true, WarningDetails: "Allergen"},
	}
	analyzer.On("Analyze", mock.Anything, pngBytes, "image/png").
		Return(&llm.AnalysisResult{Products: products}, nil).Once()

	c := newTestController(t, analyzer, nil)

	err := c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png")
	require.NoError(t, err)

	s := waitForPhase(t, c, PhaseResults)
	require.NotNil(t, s.Image)
	assert.Equal(t, pngBytes, s.Image.Data)
	assert.Equal(t, products, s.Products)
	assert.False(t, s.Pending)
	assert.Empty(t, s.Failure)
	analyzer.AssertExpectations(t)
}

func TestController_PendingWhileAnalyzing(t *testing.T) {
	analyzer := newBlockingAnalyzer()
	c := newTestController(t, analyzer, nil)

	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	<-analyzer.started

	s := c.Snapshot()
	assert.Equal(t, PhaseAnalyzing, s.Phase())
	assert.True(t, s.Pending)
	assert.NotNil(t, s.Image)
	assert.Nil(t, s.Products)
	assert.Empty(t, s.Failure)

	analyzer.results <- &llm.AnalysisResult{Products: []llm.Product{{Name: "Tea"}}}
	s = waitForPhase(t, c, PhaseResults)
	assert.Equal(t, "Tea", s.Products[0].Name)
}

func TestController_EmptyResultIsDistinctFromNoResult(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.AnalysisResult{Products: nil}, nil).Once()

	c := newTestController(t, analyzer, nil)
	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))

	s := waitForPhase(t, c, PhaseResults)
	assert.NotNil(t, s.Products)
	assert.Empty(t, s.Products)
}

func TestController_AnalysisFailureKeepsImage(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &llm.AnalysisError{Err: errors.New("bad gateway")}).Once()

	c := newTestController(t, analyzer, nil)
	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))

	s := waitForPhase(t, c, PhaseFailed)
	assert.Equal(t, MsgAnalysisFailed, s.Failure)
	assert.NotNil(t, s.Image)
	assert.Nil(t, s.Products)
	assert.False(t, s.Pending)
}

func TestController_ConfigurationErrorShownVerbatim(t *testing.T) {
	cfgErr := &llm.ConfigurationError{Message: "API key not found."}
	analyzer := new(mockAnalyzer)
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return(nil, cfgErr).Once()

	c := newTestController(t, analyzer, nil)
	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))

	s := waitForPhase(t, c, PhaseFailed)
	assert.Equal(t, "API key not found.", s.Failure)
}

func TestController_ReadFailureEndsFailedWithoutImage(t *testing.T) {
	analyzer := new(mockAnalyzer)
	c := newTestController(t, analyzer, nil)

	err := c.SubmitFile(context.Background(), bytes.NewReader(nil), "image/png")
	require.NoError(t, err)

	s := c.Snapshot()
	assert.Equal(t, PhaseFailed, s.Phase())
	assert.Equal(t, MsgReadFailed, s.Failure)
	assert.Nil(t, s.Image)
	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_RejectsSubmitWhileAnalyzing(t *testing.T) {
	analyzer := newBlockingAnalyzer()
	c := newTestController(t, analyzer, nil)

	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	<-analyzer.started

	err := c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png")
	assert.ErrorIs(t, err, ErrBusy)

	err = c.OpenCamera(context.Background())
	assert.ErrorIs(t, err, ErrBusy)
}

func TestController_RejectsSubmitFromResults(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.AnalysisResult{Products: []llm.Product{}}, nil).Once()

	c := newTestController(t, analyzer, nil)
	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	waitForPhase(t, c, PhaseResults)

	err := c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestController_ResetReturnsToIdle(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, c *Controller)
	}{
		{"from idle", func(t *testing.T, c *Controller) {}},
		{"from results", func(t *testing.T, c *Controller) {
			require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
			waitForPhase(t, c, PhaseResults)
		}},
		{"from failed", func(t *testing.T, c *Controller) {
			require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(nil), "image/png"))
			waitForPhase(t, c, PhaseFailed)
		}},
		{"from acquiring", func(t *testing.T, c *Controller) {
			require.NoError(t, c.OpenCamera(context.Background()))
			waitForPhase(t, c, PhaseAcquiring)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := new(mockAnalyzer)
			analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
				Return(&llm.AnalysisResult{Products: []llm.Product{{Name: "Cola"}}}, nil).Maybe()
			c := newTestController(t, analyzer, &fakeDevice{frames: &fakeFrames{}})

			tt.setup(t, c)
			require.NoError(t, c.Reset(context.Background()))

			s := c.Snapshot()
			assert.True(t, s.IsIdle())
			assert.Empty(t, s.Notice)
		})
	}
}

func TestController_StaleResultDiscardedAfterReset(t *testing.T) {
	analyzer := newBlockingAnalyzer()
	c := newTestController(t, analyzer, nil)

	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	<-analyzer.started

	require.NoError(t, c.Reset(context.Background()))
	select {
	case <-analyzer.canceled:
	case <-time.After(time.Second):
		t.Fatal("in-flight analysis was not canceled")
	}

	assert.Never(t, func() bool {
		return !c.Snapshot().IsIdle()
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestController_NewAnalysisAfterResetIgnoresOldCompletion(t *testing.T) {
	analyzer := newBlockingAnalyzer()
	c := newTestController(t, analyzer, nil)

	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	<-analyzer.started
	require.NoError(t, c.Reset(context.Background()))
	<-analyzer.canceled

	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	<-analyzer.started

	// The first call's cancellation must not fail the second analysis
	assert.Never(t, func() bool {
		return c.Snapshot().Phase() != PhaseAnalyzing
	}, 50*time.Millisecond, 5*time.Millisecond)

	analyzer.results <- &llm.AnalysisResult{Products: []llm.Product{{Name: "Milk"}}}
	s := waitForPhase(t, c, PhaseResults)
	assert.Equal(t, "Milk", s.Products[0].Name)
}

func TestController_CameraCaptureReleasesAndAnalyzes(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Analyze", mock.Anything, mock.Anything, "image/jpeg").
		Return(&llm.AnalysisResult{Products: []llm.Product{{Name: "Soap"}}}, nil).Once()
	frames := &fakeFrames{}
	c := newTestController(t, analyzer, &fakeDevice{frames: frames})

	require.NoError(t, c.OpenCamera(context.Background()))
	s := c.Snapshot()
	assert.Equal(t, PhaseAcquiring, s.Phase())
	assert.True(t, s.CameraActive)

	frame, err := c.PreviewFrame(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, frame)

	require.NoError(t, c.Capture(context.Background()))
	assert.Equal(t, 1, frames.closeCount())
	assert.False(t, c.Snapshot().CameraActive)

	s = waitForPhase(t, c, PhaseResults)
	require.NotNil(t, s.Image)
	assert.Equal(t, "image/jpeg", s.Image.MIMEType)
	assert.Equal(t, "Soap", s.Products[0].Name)
	analyzer.AssertExpectations(t)
}

func TestController_CameraUnavailableStaysIdleWithNotice(t *testing.T) {
	analyzer := new(mockAnalyzer)
	c := newTestController(t, analyzer, &fakeDevice{openErr: errors.New("permission denied")})

	require.NoError(t, c.OpenCamera(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, MsgCameraError, s.Notice)
	assert.Nil(t, s.Image)
	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_CaptureFailureReleasesCamera(t *testing.T) {
	analyzer := new(mockAnalyzer)
	frames := &fakeFrames{readErr: errors.New("device unplugged")}
	c := newTestController(t, analyzer, &fakeDevice{frames: frames})

	require.NoError(t, c.OpenCamera(context.Background()))
	require.NoError(t, c.Capture(context.Background()))

	s := c.Snapshot()
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, MsgCameraError, s.Notice)
	assert.Equal(t, 1, frames.closeCount())
}

func TestController_CloseCameraReleasesWithoutCapture(t *testing.T) {
	analyzer := new(mockAnalyzer)
	frames := &fakeFrames{}
	c := newTestController(t, analyzer, &fakeDevice{frames: frames})

	require.NoError(t, c.OpenCamera(context.Background()))
	require.NoError(t, c.CloseCamera(context.Background()))

	assert.True(t, c.Snapshot().IsIdle())
	assert.Equal(t, 1, frames.closeCount())
	analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
}

func TestController_CaptureOutsideAcquiringIsRejected(t *testing.T) {
	c := newTestController(t, new(mockAnalyzer), &fakeDevice{frames: &fakeFrames{}})

	assert.ErrorIs(t, c.Capture(context.Background()), ErrInvalidTransition)
	_, err := c.PreviewFrame(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestController_StopReleasesCamera(t *testing.T) {
	frames := &fakeFrames{}
	c := NewController(new(mockAnalyzer), imagesource.NewCamera(&fakeDevice{frames: frames}), nil)
	c.Start()

	require.NoError(t, c.OpenCamera(context.Background()))
	c.Stop()

	assert.Equal(t, 1, frames.closeCount())
	assert.ErrorIs(t, c.Reset(context.Background()), ErrStopped)
}

func TestController_SnapshotIsACopy(t *testing.T) {
	analyzer := new(mockAnalyzer)
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(&llm.AnalysisResult{Products: []llm.Product{{Name: "Cola"}}}, nil).Once()
	c := newTestController(t, analyzer, nil)

	require.NoError(t, c.SubmitFile(context.Background(), bytes.NewReader(pngBytes), "image/png"))
	s := waitForPhase(t, c, PhaseResults)
	s.Products[0].Name = "changed"

	assert.Equal(t, "Cola", c.Snapshot().Products[0].Name)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "no key", failureMessage(&llm.ConfigurationError{Message: "no key"}))
	assert.Equal(t, MsgAnalysisFailed, failureMessage(&llm.AnalysisError{Err: errors.New("x")}))
	assert.Equal(t, MsgReadFailed, failureMessage(&imagesource.ReadError{Err: errors.New("x")}))
	assert.Equal(t, MsgUnexpectedError, failureMessage(errors.New("x")))
}
