package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/raine/product-lens/internal/imagesource"
	"github.com/raine/product-lens/internal/llm"
)

var (
	// ErrBusy is returned when an action is attempted while an analysis is in flight.
	ErrBusy = errors.New("an analysis is already in progress")
	// ErrInvalidTransition is returned when an action does not apply to the current phase.
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	// ErrStopped is returned after the controller has been stopped.
	ErrStopped = errors.New("controller stopped")
)

type messageType int

const (
	msgSubmitImage messageType = iota
	msgOpenCamera
	msgCapture
	msgCloseCamera
	msgReset
	msgPreview
	msgAnalysisComplete
)

func (t messageType) String() string {
	switch t {
	case msgSubmitImage:
		return "submit_image"
	case msgOpenCamera:
		return "open_camera"
	case msgCapture:
		return "capture"
	case msgCloseCamera:
		return "close_camera"
	case msgReset:
		return "reset"
	case msgPreview:
		return "preview"
	case msgAnalysisComplete:
		return "analysis_complete"
	default:
		return "unknown"
	}
}

// message is a unit of work for the controller worker.
type message struct {
	Type  messageType
	Ctx   context.Context
	Reply chan reply // Optional, buffered; receives exactly one value

	// Submit data
	Image   *imagesource.CapturedImage
	ReadErr error

	// Analysis completion data
	Generation uint64
	Result     *llm.AnalysisResult
	Err        error
}

type reply struct {
	Frame []byte
	Err   error
}

// Controller owns the application state and drives the flow
// idle -> acquiring -> analyzing -> results | failed.
//
// Threading model:
//   - A single worker goroutine processes messages sequentially and is the
//     only writer of state
//   - Inference runs on its own goroutine and reports back through the inbox,
//     tagged with the generation it was started for
//   - Snapshot takes a read lock and returns a copy
type Controller struct {
	analyzer llm.Analyzer
	camera   *imagesource.Camera
	files    *imagesource.FileLoader

	inbox  chan message
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	state State

	// Worker-owned, no locking needed
	stream         *imagesource.Stream
	generation     uint64
	cancelAnalysis context.CancelFunc
}

// NewController creates a controller in the idle state. Call Start before use.
func NewController(analyzer llm.Analyzer, camera *imagesource.Camera, files *imagesource.FileLoader) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	if files == nil {
		files = imagesource.NewFileLoader()
	}
	return &Controller{
		analyzer: analyzer,
		camera:   camera,
		files:    files,
		inbox:    make(chan message, 10),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the worker goroutine.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.runWorker()
}

// Stop cancels any in-flight analysis, releases the camera and waits for the
// worker to exit.
func (c *Controller) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// SubmitFile reads an uploaded file and, when the controller is idle, starts
// analyzing it right away. Read failures end in the failed phase rather than
// being returned. Only rejected transitions are reported as errors.
func (c *Controller) SubmitFile(ctx context.Context, r io.Reader, mimeType string) error {
	if err := checkCanStart(c.Snapshot()); err != nil {
		return err
	}

	img, readErr := c.files.Load(ctx, r, mimeType)
	_, err := c.dispatch(ctx, message{Type: msgSubmitImage, Image: img, ReadErr: readErr})
	return err
}

// OpenCamera acquires the camera and shows the capture overlay. If the camera
// is unavailable the controller stays idle and sets a notice.
func (c *Controller) OpenCamera(ctx context.Context) error {
	_, err := c.dispatch(ctx, message{Type: msgOpenCamera})
	return err
}

// Capture takes a frame from the open camera, releases it and starts analysis.
func (c *Controller) Capture(ctx context.Context) error {
	_, err := c.dispatch(ctx, message{Type: msgCapture})
	return err
}

// CloseCamera releases the camera without capturing. It is a no-op when the
// camera is not open.
func (c *Controller) CloseCamera(ctx context.Context) error {
	_, err := c.dispatch(ctx, message{Type: msgCloseCamera})
	return err
}

// Reset returns to the idle state from any phase. An analysis still in flight
// is canceled and its result discarded.
func (c *Controller) Reset(ctx context.Context) error {
	_, err := c.dispatch(ctx, message{Type: msgReset})
	return err
}

// PreviewFrame returns the current camera frame as JPEG while the camera
// overlay is open.
func (c *Controller) PreviewFrame(ctx context.Context) ([]byte, error) {
	r, err := c.dispatch(ctx, message{Type: msgPreview})
	return r.Frame, err
}

// dispatch queues msg and waits for the worker's reply.
func (c *Controller) dispatch(ctx context.Context, msg message) (reply, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.ctx.Err() != nil {
		return reply{}, ErrStopped
	}
	msg.Ctx = ctx
	msg.Reply = make(chan reply, 1)

	select {
	case c.inbox <- msg:
	case <-c.ctx.Done():
		return reply{}, ErrStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}

	select {
	case r := <-msg.Reply:
		return r, r.Err
	case <-c.ctx.Done():
		return reply{}, ErrStopped
	case <-ctx.Done():
		return reply{}, ctx.Err()
	}
}

// post queues msg without waiting. Used by analysis goroutines.
func (c *Controller) post(msg message) {
	select {
	case c.inbox <- msg:
	case <-c.ctx.Done():
	}
}

func (c *Controller) runWorker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			c.shutdown()
			// Drain any remaining messages and signal completion
			for {
				select {
				case msg := <-c.inbox:
					if msg.Reply != nil {
						msg.Reply <- reply{Err: ErrStopped}
					}
				default:
					return
				}
			}
		case msg := <-c.inbox:
			c.processMessage(msg)
		}
	}
}

// processMessage handles a single message from the inbox.
func (c *Controller) processMessage(msg message) {
	var r reply
	defer func() {
		// Recover from any panics to keep the worker running
		if p := recover(); p != nil {
			log.Error().
				Str("type", msg.Type.String()).
				Interface("panic", p).
				Msg("recovered from panic in controller worker")
			r = reply{Err: fmt.Errorf("internal error handling %s", msg.Type)}
		}
		if msg.Reply != nil {
			msg.Reply <- r
		}
	}()

	switch msg.Type {
	case msgSubmitImage:
		r.Err = c.handleSubmit(msg)
	case msgOpenCamera:
		r.Err = c.handleOpenCamera(msg)
	case msgCapture:
		r.Err = c.handleCapture()
	case msgCloseCamera:
		c.handleCloseCamera()
	case msgReset:
		c.handleReset()
	case msgPreview:
		r.Frame, r.Err = c.handlePreview()
	case msgAnalysisComplete:
		c.handleAnalysisComplete(msg)
	default:
		log.Error().Int("type", int(msg.Type)).Msg("unknown controller message")
	}
}

// setState replaces the whole state in one step.
func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func checkCanStart(s State) error {
	switch s.Phase() {
	case PhaseIdle:
		return nil
	case PhaseAnalyzing:
		return ErrBusy
	default:
		return ErrInvalidTransition
	}
}

func (c *Controller) handleSubmit(msg message) error {
	if err := checkCanStart(c.state); err != nil {
		return err
	}

	if msg.ReadErr != nil {
		log.Warn().Err(msg.ReadErr).Msg("failed to read uploaded file")
		c.setState(State{Failure: failureMessage(msg.ReadErr)})
		return nil
	}
	if msg.Image == nil {
		c.setState(State{Failure: MsgUnexpectedError})
		return nil
	}

	log.Info().Str("mimeType", msg.Image.MIMEType).Int("bytes", len(msg.Image.Data)).Msg("image uploaded")
	c.startAnalysis(msg.Image)
	return nil
}

func (c *Controller) handleOpenCamera(msg message) error {
	if err := checkCanStart(c.state); err != nil {
		return err
	}
	if c.camera == nil {
		c.setState(State{Notice: MsgCameraError})
		return nil
	}

	stream, err := c.camera.Acquire(msg.Ctx)
	if err != nil {
		log.Warn().Err(err).Msg("error accessing camera")
		c.setState(State{Notice: MsgCameraError})
		return nil
	}

	c.stream = stream
	c.setState(State{CameraActive: true})
	log.Info().Msg("camera opened")
	return nil
}

func (c *Controller) handleCapture() error {
	if c.state.Phase() != PhaseAcquiring || c.stream == nil {
		return ErrInvalidTransition
	}
	defer c.releaseCamera()

	img, err := c.stream.Capture()
	if err != nil {
		log.Warn().Err(err).Msg("failed to capture camera frame")
		c.setState(State{Notice: MsgCameraError})
		return nil
	}

	log.Info().Int("bytes", len(img.Data)).Msg("camera frame captured")
	c.startAnalysis(img)
	return nil
}

func (c *Controller) handleCloseCamera() {
	if c.state.Phase() != PhaseAcquiring {
		return
	}
	c.releaseCamera()
	c.setState(State{})
	log.Info().Msg("camera closed without capture")
}

func (c *Controller) handleReset() {
	log.Info().Str("phase", c.state.Phase().String()).Msg("reset application state")
	c.releaseCamera()
	c.abandonAnalysis()
	c.setState(State{})
}

func (c *Controller) handlePreview() ([]byte, error) {
	if c.state.Phase() != PhaseAcquiring || c.stream == nil {
		return nil, ErrInvalidTransition
	}
	return c.stream.Snapshot()
}

// startAnalysis stores the image and launches inference in the background.
// Completion comes back as an msgAnalysisComplete message.
func (c *Controller) startAnalysis(img *imagesource.CapturedImage) {
	c.generation++
	generation := c.generation

	analysisCtx, cancel := context.WithCancel(c.ctx)
	c.cancelAnalysis = cancel
	c.setState(State{Image: img, Pending: true})

	go func() {
		defer cancel()
		result, err := c.analyzer.Analyze(analysisCtx, img.Data, img.MIMEType)
		c.post(message{
			Type:       msgAnalysisComplete,
			Ctx:        context.Background(),
			Generation: generation,
			Result:     result,
			Err:        err,
		})
	}()
}

func (c *Controller) handleAnalysisComplete(msg message) {
	if msg.Generation != c.generation || !c.state.Pending {
		log.Debug().
			Uint64("generation", msg.Generation).
			Uint64("current", c.generation).
			Msg("discarding stale analysis result")
		return
	}
	c.cancelAnalysis = nil
	img := c.state.Image

	if msg.Err != nil {
		log.Error().Err(msg.Err).Msg("image analysis failed")
		c.setState(State{Image: img, Failure: failureMessage(msg.Err)})
		return
	}

	products := []llm.Product{}
	if msg.Result != nil && msg.Result.Products != nil {
		products = msg.Result.Products
	}
	log.Info().Int("productCount", len(products)).Msg("image analyzed")
	c.setState(State{Image: img, Products: products})
}

// abandonAnalysis cancels the in-flight analysis, if any, and bumps the
// generation so that its completion is ignored.
func (c *Controller) abandonAnalysis() {
	c.generation++
	if c.cancelAnalysis != nil {
		c.cancelAnalysis()
		c.cancelAnalysis = nil
	}
}

func (c *Controller) releaseCamera() {
	if c.stream != nil {
		c.stream.Release()
		c.stream = nil
	}
}

// shutdown runs on the worker when the controller stops.
func (c *Controller) shutdown() {
	c.releaseCamera()
	c.abandonAnalysis()
	log.Info().Msg("controller stopped")
}

// failureMessage converts an error into the text shown to the user.
// Configuration errors are shown verbatim, everything else gets a fixed
// message; the cause has already been logged.
func failureMessage(err error) string {
	var cfgErr *llm.ConfigurationError
	var analysisErr *llm.AnalysisError
	var readErr *imagesource.ReadError
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Error()
	case errors.As(err, &analysisErr):
		return MsgAnalysisFailed
	case errors.As(err, &readErr):
		return MsgReadFailed
	default:
		return MsgUnexpectedError
	}
}
