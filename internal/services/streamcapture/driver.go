package streamcapture

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"helmet-guard-go/internal/logging"
	"helmet-guard-go/internal/models"
	"helmet-guard-go/internal/services/frameprocessing"
	"helmet-guard-go/internal/services/postprocessing"
)

// Processor is the frame pipeline as seen by the drivers
type Processor interface {
	ProcessFrame(ctx context.Context, frame gocv.Mat, threshold float64, origin postprocessing.Origin) (*frameprocessing.FrameResult, error)
}

// ErrNoFrame is returned when a source yields nothing at all
var ErrNoFrame = errors.New("no frame could be read from source")

// Driver runs the acquire/process/emit loop of one session
type Driver struct {
	proc     Processor
	sink     Sink
	clock    clock.Clock
	interval time.Duration
	base     zerolog.Logger
}

// NewDriver creates a driver. maxFPS <= 0 disables pacing.
func NewDriver(proc Processor, sink Sink, clk clock.Clock, maxFPS int) *Driver {
	if clk == nil {
		clk = clock.New()
	}
	d := &Driver{proc: proc, sink: sink, clock: clk, base: log.Logger}
	if maxFPS > 0 {
		d.interval = time.Second / time.Duration(maxFPS)
	}
	return d
}

// RunImage processes a single still frame. The returned result belongs to the
// caller. A detection failure terminates the session with that error.
func (d *Driver) RunImage(ctx context.Context, s *Session, frame gocv.Mat) (*frameprocessing.FrameResult, error) {
	logger := d.logger(s)

	s.setState(models.SessionAcquire)
	if frame.Empty() {
		s.terminate(ErrNoFrame, d.clock.Now())
		return nil, ErrNoFrame
	}
	s.setTotal(1)

	res, err := d.step(ctx, s, frame, logger)
	if err != nil {
		s.frameDone(0)
		s.terminate(err, d.clock.Now())
		return nil, err
	}
	s.frameDone(res.Violations)
	d.sink.ReportProgress(s.Info().ID, 1)
	s.terminate(nil, d.clock.Now())
	return res, nil
}

// RunVideo processes every frame of a file source in order, reporting
// progress after each one. Frames whose detection fails are skipped but still
// count toward progress. The source is closed on return.
func (d *Driver) RunVideo(ctx context.Context, s *Session, src FrameSource) error {
	defer src.Close()
	s.setTotal(src.TotalFrames())
	return d.loop(ctx, s, src, true)
}

// RunLive processes a capture device until the context is cancelled or the
// device stops producing frames. The source is closed on return.
func (d *Driver) RunLive(ctx context.Context, s *Session, src FrameSource) error {
	defer src.Close()
	return d.loop(ctx, s, src, false)
}

func (d *Driver) loop(ctx context.Context, s *Session, src FrameSource, reportProgress bool) error {
	logger := d.logger(s)
	id := s.Info().ID

	img := gocv.NewMat()
	defer img.Close()

	var (
		frames  int
		lastRun time.Time
	)

	for {
		select {
		case <-ctx.Done():
			logger.Info().Int("frames", frames).Msg("Session stopped")
			s.terminate(nil, d.clock.Now())
			return nil
		default:
		}

		if d.interval > 0 && !lastRun.IsZero() {
			if wait := d.interval - d.clock.Since(lastRun); wait > 0 {
				select {
				case <-ctx.Done():
					continue
				case <-d.clock.After(wait):
				}
			}
		}
		lastRun = d.clock.Now()

		s.setState(models.SessionAcquire)
		if !src.Read(&img) {
			var err error
			if frames == 0 {
				err = ErrNoFrame
				d.sink.Notify(id, NoticeError, err.Error())
			}
			logger.Info().Int("frames", frames).Msg("Source exhausted")
			s.terminate(err, d.clock.Now())
			return err
		}
		frames++

		// a failed frame is skipped by step but still counts as consumed
		res, _ := d.step(ctx, s, img, logger)
		violations := 0
		if res != nil {
			violations = res.Violations
			res.Close()
		}
		progress := s.frameDone(violations)
		if reportProgress {
			d.sink.ReportProgress(id, progress)
		}
	}
}

// step runs process and emit for one frame
func (d *Driver) step(ctx context.Context, s *Session, frame gocv.Mat, logger zerolog.Logger) (*frameprocessing.FrameResult, error) {
	id := s.Info().ID

	s.setState(models.SessionProcess)
	res, err := d.proc.ProcessFrame(ctx, frame, s.threshold(), s.origin())
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Frame skipped")
			d.sink.Notify(id, NoticeWarning, err.Error())
		}
		return nil, err
	}

	s.setState(models.SessionEmit)
	d.sink.ShowFrame(id, res.Annotated, res.Violations)
	if res.Alert != nil {
		d.sink.PlayAudio(id, res.Alert)
	}
	if res.LogErr != nil {
		d.sink.Notify(id, NoticeWarning, res.LogErr.Error())
	}
	if res.VoiceErr != nil {
		d.sink.Notify(id, NoticeWarning, res.VoiceErr.Error())
	}
	return res, nil
}

func (d *Driver) logger(s *Session) zerolog.Logger {
	info := s.Info()
	return logging.WithSession(d.base, info.ID, info.Mode.String())
}
