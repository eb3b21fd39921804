package detection

import (
	"context"
	"errors"
	"image"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"helmet-guard-go/internal/config"
	"helmet-guard-go/internal/models"
)

func TestParseGRPCEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		host    string
		tls     bool
		wantErr bool
	}{
		{in: "localhost:50052", host: "localhost:50052", tls: false},
		{in: "ai.example.com", host: "ai.example.com:443", tls: true},
		{in: "ai.example.com:8443", host: "ai.example.com:8443", tls: true},
		{in: "https://ai.example.com", host: "ai.example.com:443", tls: true},
		{in: "http://10.0.0.5", host: "10.0.0.5:80", tls: false},
		{in: "ftp://host:21", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, creds, err := parseGRPCEndpoint(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.tls, creds.Info().SecurityProtocol == "tls")
		})
	}
}

func TestBackoffFor(t *testing.T) {
	ceiling := 30 * time.Second
	assert.Equal(t, time.Duration(0), backoffFor(0, ceiling))
	assert.Equal(t, time.Second, backoffFor(1, ceiling))
	assert.Equal(t, 8*time.Second, backoffFor(4, ceiling))
	assert.Equal(t, ceiling, backoffFor(6, ceiling))
	assert.Equal(t, ceiling, backoffFor(40, ceiling))
}

func TestDecodeYOLO(t *testing.T) {
	// rows = 4 box + 2 classes, anchors = 3, channel-major
	data := []float32{
		// cx
		100, 200, 300,
		// cy
		100, 200, 300,
		// w
		20, 40, 10,
		// h
		20, 40, 10,
		// class 0 score
		0.9, 0.1, 0.01,
		// class 1 score
		0.2, 0.7, 0.02,
	}
	cands := decodeYOLO(data, 6, 3, 2, 1, 0.05)
	require.Len(t, cands, 2)

	assert.Equal(t, 0, cands[0].classID)
	assert.InDelta(t, 0.9, cands[0].score, 1e-6)
	assert.Equal(t, image.Rect(180, 90, 220, 110), cands[0].box)

	assert.Equal(t, 1, cands[1].classID)
	assert.Equal(t, image.Rect(360, 180, 440, 220), cands[1].box)
}

func TestNMSPerClassKeepsOverlappingClasses(t *testing.T) {
	cands := []candidate{
		{box: image.Rect(10, 10, 60, 60), classID: 0, score: 0.9},
		{box: image.Rect(10, 10, 60, 60), classID: 1, score: 0.8},
		{box: image.Rect(12, 12, 62, 62), classID: 0, score: 0.6},
		{box: image.Rect(200, 200, 240, 240), classID: 0, score: 0.7},
	}

	keep := nmsPerClass(cands, 0.05, 0.45)
	assert.Equal(t, []int{0, 1, 3}, keep)
}

func TestDecodeYOLORejectsShortTensor(t *testing.T) {
	assert.Nil(t, decodeYOLO(make([]float32, 5), 6, 3, 1, 1, 0.05))
	assert.Nil(t, decodeYOLO(nil, 4, 3, 1, 1, 0.05))
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestDecodeReply(t *testing.T) {
	resp := mustStruct(t, map[string]interface{}{
		"detections": []interface{}{
			map[string]interface{}{"x1": 1, "y1": 2, "x2": 30, "y2": 40, "class_id": 0, "label": "head", "confidence": 0.8},
			map[string]interface{}{"x1": 5, "y1": 5, "x2": 10, "y2": 10, "class_id": 1, "confidence": 0.6},
		},
	})

	dets, err := decodeReply(resp, []string{"head", "helmet"})
	require.NoError(t, err)
	require.Len(t, dets, 2)
	assert.Equal(t, "head", dets[0].Label)
	assert.Equal(t, image.Rect(1, 2, 30, 40), dets[0].Box)
	assert.InDelta(t, 0.8, dets[0].Confidence, 1e-6)
	assert.Equal(t, "helmet", dets[1].Label, "label falls back to class list")
}

func TestDecodeReplyMalformed(t *testing.T) {
	cases := map[string]*structpb.Struct{
		"missing field": mustStruct(t, map[string]interface{}{}),
		"not a list":    mustStruct(t, map[string]interface{}{"detections": "nope"}),
		"missing coord": mustStruct(t, map[string]interface{}{
			"detections": []interface{}{map[string]interface{}{"x1": 1, "class_id": 0, "confidence": 0.5}},
		}),
		"string number": mustStruct(t, map[string]interface{}{
			"detections": []interface{}{map[string]interface{}{"x1": "1", "y1": 1, "x2": 2, "y2": 2, "class_id": 0, "confidence": 0.5}},
		}),
	}
	for name, resp := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeReply(resp, nil)
			assert.Error(t, err)
		})
	}
}

type fakeInference struct {
	reply *structpb.Struct
	err   error
	last  *structpb.Struct
}

var fakeDesc = grpc.ServiceDesc{
	ServiceName: HealthService,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Detect",
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			f := srv.(*fakeInference)
			f.last = in
			if f.err != nil {
				return nil, f.err
			}
			return f.reply, nil
		},
	}},
}

func startFakeService(t *testing.T, f *fakeInference) *GRPCDetector {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&fakeDesc, f)
	hs := health.NewServer()
	hs.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(srv, hs)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	d, err := newGRPCDetector("passthrough:///bufnet", insecure.NewCredentials(), 2*time.Second, []string{"head", "helmet"},
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestGRPCDetectorDetect(t *testing.T) {
	f := &fakeInference{reply: mustStruct(t, map[string]interface{}{
		"detections": []interface{}{
			map[string]interface{}{"x1": 4, "y1": 4, "x2": 20, "y2": 20, "class_id": 0, "label": "head", "confidence": 0.91},
		},
	})}
	d := startFakeService(t, f)

	frame := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets, err := d.Detect(context.Background(), frame)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, "head", dets[0].Label)

	require.NotNil(t, f.last)
	assert.Equal(t, float64(64), f.last.GetFields()["width"].GetNumberValue())
	assert.Equal(t, float64(48), f.last.GetFields()["height"].GetNumberValue())
	assert.NotEmpty(t, f.last.GetFields()["image"].GetStringValue())

	assert.NoError(t, d.HealthCheck(context.Background()))
}

func TestGRPCDetectorFailureIsDetectionError(t *testing.T) {
	f := &fakeInference{err: status.Error(codes.Internal, "model crashed")}
	d := startFakeService(t, f)

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	dets, err := d.Detect(context.Background(), frame)
	assert.Nil(t, dets)
	var detErr *models.DetectionError
	require.True(t, errors.As(err, &detErr))
	assert.Equal(t, "grpc", detErr.Backend)

	d.mu.RLock()
	assert.Equal(t, 1, d.consecutiveFails)
	d.mu.RUnlock()
}

func TestGRPCDetectorCancelledCallerIsNotAFailure(t *testing.T) {
	d := startFakeService(t, &fakeInference{reply: mustStruct(t, map[string]interface{}{"detections": []interface{}{}})})

	frame := gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3)
	defer frame.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Detect(ctx, frame)
	require.Error(t, err)

	d.mu.RLock()
	assert.Equal(t, 0, d.consecutiveFails)
	d.mu.RUnlock()
}

func TestGRPCDetectorEmptyFrame(t *testing.T) {
	d := startFakeService(t, &fakeInference{})
	_, err := d.Detect(context.Background(), gocv.NewMat())
	var detErr *models.DetectionError
	assert.True(t, errors.As(err, &detErr))
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(&config.Config{DetectorBackend: "tflite"})
	assert.Error(t, err)
}

func TestNewONNXMissingModel(t *testing.T) {
	_, err := NewONNXDetector(ONNXOptions{ModelPath: t.TempDir() + "/missing.onnx"})
	assert.Error(t, err)
}
