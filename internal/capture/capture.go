// Package capture talks to the desktop capture daemon, which owns the
// display: it detects chat window regions and produces full-screen
// frames. Cropping happens locally on the decoded frame.
package capture

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable is returned when no display or frame could be
// produced. It is fatal to the whole reconciliation cycle: without a
// frame there is nothing to process for any window.
var ErrUnavailable = errors.New("capture unavailable")

// Window is one detected chat window: its title and where it sits on
// the frame.
type Window struct {
	Name   string
	Region image.Rectangle
}

// Source supplies raw frames and window geometry.
type Source interface {
	// DetectWindows returns the currently visible chat windows.
	DetectWindows(ctx context.Context) ([]Window, error)

	// CaptureFrame grabs one full-screen frame.
	CaptureFrame(ctx context.Context) (image.Image, error)

	// Crop cuts a window's region out of a frame.
	Crop(frame image.Image, region image.Rectangle) (image.Image, error)
}
