package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"helmet-guard-go/internal/models"
)

// candidateFloor drops hopeless boxes before NMS. The operator threshold is
// applied later by the annotator, so this stays well below the slider minimum.
const candidateFloor = 0.05

type ONNXOptions struct {
	ModelPath    string
	Classes      []string
	InputSize    int
	NMSThreshold float32
}

// ONNXDetector runs a YOLO ONNX export locally through the OpenCV DNN module.
// The network expects a square RGB input scaled to [0,1] and yields a
// [1, 4+nc, N] tensor of (cx, cy, w, h, class scores...) columns.
type ONNXDetector struct {
	mu   sync.Mutex
	net  gocv.Net
	opts ONNXOptions
}

func NewONNXDetector(opts ONNXOptions) (*ONNXDetector, error) {
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	if opts.NMSThreshold <= 0 {
		opts.NMSThreshold = 0.45
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", opts.ModelPath, err)
	}

	net := gocv.ReadNet(opts.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", opts.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("set preferable target: %w", err)
	}

	log.Info().
		Str("model", opts.ModelPath).
		Int("input_size", opts.InputSize).
		Strs("classes", opts.Classes).
		Msg("ONNX detection network initialized")

	return &ONNXDetector{net: net, opts: opts}, nil
}

func (d *ONNXDetector) Backend() string { return "onnx" }

func (d *ONNXDetector) Detect(ctx context.Context, frame gocv.Mat) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, d.fail(err)
	}
	if frame.Empty() {
		return nil, d.fail(errors.New("empty frame"))
	}

	size := d.opts.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	if output.Empty() {
		return nil, d.fail(errors.New("network returned empty output"))
	}
	dims := output.Size()
	if len(dims) != 3 || dims[1] < 5 {
		return nil, d.fail(fmt.Errorf("unexpected output shape %v", dims))
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, d.fail(fmt.Errorf("read output tensor: %w", err))
	}

	scaleX := float32(frame.Cols()) / float32(size)
	scaleY := float32(frame.Rows()) / float32(size)
	cands := decodeYOLO(data, dims[1], dims[2], scaleX, scaleY, candidateFloor)
	if len(cands) == 0 {
		return []models.Detection{}, nil
	}

	keep := nmsPerClass(cands, candidateFloor, float32(d.opts.NMSThreshold))

	dets := make([]models.Detection, 0, len(keep))
	for _, idx := range keep {
		c := cands[idx]
		dets = append(dets, models.Detection{
			Box:        c.box,
			ClassID:    c.classID,
			Label:      labelFor(d.opts.Classes, c.classID),
			Confidence: c.score,
		})
	}
	return dets, nil
}

func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func (d *ONNXDetector) fail(err error) error {
	return &models.DetectionError{Backend: d.Backend(), Err: err}
}

// nmsPerClass runs non-maximum suppression separately for each class, so a
// head box never suppresses an overlapping helmet box. It returns indices into
// cands in ascending order.
func nmsPerClass(cands []candidate, scoreFloor, iou float32) []int {
	byClass := make(map[int][]int)
	for i, c := range cands {
		byClass[c.classID] = append(byClass[c.classID], i)
	}

	var keep []int
	for _, idxs := range byClass {
		boxes := make([]image.Rectangle, len(idxs))
		scores := make([]float32, len(idxs))
		for j, i := range idxs {
			boxes[j] = cands[i].box
			scores[j] = cands[i].score
		}
		for _, j := range gocv.NMSBoxes(boxes, scores, scoreFloor, iou) {
			keep = append(keep, idxs[j])
		}
	}
	sort.Ints(keep)
	return keep
}

type candidate struct {
	box     image.Rectangle
	classID int
	score   float32
}

// decodeYOLO reads a channel-major [rows x anchors] tensor where rows = 4 + nc.
// Boxes are scaled from network input pixels back to frame pixels.
func decodeYOLO(data []float32, rows, anchors int, scaleX, scaleY, floor float32) []candidate {
	if rows < 5 || anchors <= 0 || len(data) < rows*anchors {
		return nil
	}
	at := func(r, a int) float32 { return data[r*anchors+a] }

	var out []candidate
	for a := 0; a < anchors; a++ {
		best, bestID := float32(0), -1
		for c := 4; c < rows; c++ {
			if s := at(c, a); s > best {
				best, bestID = s, c-4
			}
		}
		if bestID < 0 || best < floor {
			continue
		}
		cx, cy, w, h := at(0, a), at(1, a), at(2, a), at(3, a)
		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)
		out = append(out, candidate{
			box:     image.Rect(x1, y1, x2, y2),
			classID: bestID,
			score:   best,
		})
	}
	return out
}
