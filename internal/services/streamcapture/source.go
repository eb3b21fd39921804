package streamcapture

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// FrameSource yields decoded BGR frames. Read returns false at end of stream
// or on a read failure; the drivers treat both the same way.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	// TotalFrames is the reported frame count, 0 when unknown
	TotalFrames() int
	Close() error
}

type captureSource struct {
	cap   *gocv.VideoCapture
	total int
}

func (c *captureSource) Read(dst *gocv.Mat) bool {
	return c.cap.Read(dst) && !dst.Empty()
}

func (c *captureSource) TotalFrames() int { return c.total }

func (c *captureSource) Close() error { return c.cap.Close() }

// OpenVideoFile opens a video file for sequential decoding
func OpenVideoFile(path string) (FrameSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("video capture is not opened for %s", path)
	}

	total := int(cap.Get(gocv.VideoCaptureFrameCount))
	if total < 0 {
		total = 0
	}

	log.Info().
		Str("path", path).
		Int("total_frames", total).
		Float64("fps", cap.Get(gocv.VideoCaptureFPS)).
		Float64("width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("Video opened")

	return &captureSource{cap: cap, total: total}, nil
}

// OpenWebcam opens a capture device by index ("0") or by device path
func OpenWebcam(device string) (FrameSource, error) {
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("failed to open webcam %s: %w", device, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("webcam %s is not available", device)
	}
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	log.Info().Str("device", device).Msg("Webcam opened")
	return &captureSource{cap: cap}, nil
}
