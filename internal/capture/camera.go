// Package capture provides camera capture and the shared preview frame buffer,
// both using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Capture errors.
var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrNoFrame is returned when the device delivered nothing usable.
	ErrNoFrame = errors.New("no frame available")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// Options configures a device camera.
type Options struct {
	DeviceID int
	FPS      int
	Width    int
	Height   int
	// ReopenAfter is how many consecutive empty reads make the camera
	// release and reopen its device. Zero uses DefaultReopenAfter.
	ReopenAfter int
}

// DefaultReopenAfter is about two seconds of dropped frames at DefaultFPS.
const DefaultReopenAfter = 30

func (o Options) withDefaults() Options {
	if o.FPS <= 0 {
		o.FPS = DefaultFPS
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = DefaultWidth, DefaultHeight
	}
	if o.ReopenAfter <= 0 {
		o.ReopenAfter = DefaultReopenAfter
	}
	return o
}

// device is a USB or built-in camera read through OpenCV. Some drivers
// stop delivering frames after a suspend or a cable wiggle without
// reporting an error, so a run of empty reads reopens the device.
type device struct {
	opts Options

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	misses int
}

// NewCamera creates a Camera for the given device. It is not opened.
func NewCamera(opts Options) Camera {
	return &device{opts: opts.withDefaults()}
}

func (d *device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc != nil {
		return nil
	}
	return d.open()
}

func (d *device) open() error {
	vc, err := gocv.OpenVideoCapture(d.opts.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %w", d.opts.DeviceID, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(d.opts.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(d.opts.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(d.opts.FPS))

	d.vc = vc
	d.misses = 0
	return nil
}

func (d *device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil
	}
	err := d.vc.Close()
	d.vc = nil
	return err
}

// ReadFrame reads a single frame. The caller closes the returned Mat.
func (d *device) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.vc == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := d.vc.Read(&mat); ok && !mat.Empty() {
		d.misses = 0
		return &mat, nil
	}
	mat.Close()

	d.misses++
	if d.misses >= d.opts.ReopenAfter {
		d.vc.Close()
		d.vc = nil
		if err := d.open(); err != nil {
			return nil, fmt.Errorf("reopen after %d empty reads: %w", d.misses, err)
		}
	}
	return nil, fmt.Errorf("camera %d: %w", d.opts.DeviceID, ErrNoFrame)
}

// SetFPS changes the capture rate. Values <= 0 are ignored.
func (d *device) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.opts.FPS = fps
	if d.vc != nil {
		d.vc.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (d *device) FPS() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opts.FPS
}

func (d *device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vc != nil
}
