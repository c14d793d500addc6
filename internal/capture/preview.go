package capture

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Preview holds the most recent camera frame as JPEG so that the preview
// stream can share the camera with the frame loop.
type Preview struct {
	mirror bool

	mu      sync.Mutex
	jpeg    []byte
	seq     uint64
	updated chan struct{}
}

// NewPreview creates an empty preview. Mirrored previews are flipped
// horizontally so the user sees themselves as in a mirror.
func NewPreview(mirror bool) *Preview {
	return &Preview{mirror: mirror, updated: make(chan struct{})}
}

// Publish encodes frame and makes it the latest preview image.
func (p *Preview) Publish(frame *gocv.Mat) error {
	src := frame
	if p.mirror {
		flipped := gocv.NewMat()
		defer flipped.Close()
		gocv.Flip(*frame, &flipped, 1)
		src = &flipped
	}

	buf, err := gocv.IMEncode(".jpg", *src)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	p.PublishJPEG(append([]byte(nil), buf.GetBytes()...))
	return nil
}

// PublishJPEG makes an already encoded image the latest preview.
func (p *Preview) PublishJPEG(jpeg []byte) {
	p.mu.Lock()
	p.jpeg = jpeg
	p.seq++
	close(p.updated)
	p.updated = make(chan struct{})
	p.mu.Unlock()
}

// Next blocks until an image newer than seq is available and returns it with
// its sequence number.
func (p *Preview) Next(ctx context.Context, seq uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.seq > seq {
			jpeg, cur := p.jpeg, p.seq
			p.mu.Unlock()
			return jpeg, cur, nil
		}
		wait := p.updated
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, seq, ctx.Err()
		case <-wait:
		}
	}
}
