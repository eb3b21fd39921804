package detection

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"

	"helmet-guard-go/internal/models"
)

const (
	// DetectMethod is the unary RPC served by the remote inference service
	DetectMethod = "/helmet.v1.DetectionService/Detect"
	// HealthService is the name reported to grpc.health.v1
	HealthService = "helmet.v1.DetectionService"
)

// GRPCDetector sends JPEG frames to a remote inference service. Requests and
// replies are google.protobuf.Struct messages:
//
//	request: {"image": <base64 jpeg>, "width": w, "height": h, "format": "jpeg"}
//	reply:   {"detections": [{"x1","y1","x2","y2","class_id","label","confidence"}]}
type GRPCDetector struct {
	classes []string
	timeout time.Duration

	mu       sync.RWMutex
	conn     *grpc.ClientConn
	target   string
	creds    credentials.TransportCredentials
	dialOpts []grpc.DialOption

	lastFailTime     time.Time
	consecutiveFails int
	maxRetryBackoff  time.Duration
}

func NewGRPCDetector(endpoint string, timeout time.Duration, classes []string) (*GRPCDetector, error) {
	target, creds, err := parseGRPCEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AI endpoint %s: %w", endpoint, err)
	}

	log.Info().
		Str("original_endpoint", endpoint).
		Str("normalized_endpoint", target).
		Bool("use_tls", creds.Info().SecurityProtocol == "tls").
		Msg("Connecting to AI gRPC service")

	return newGRPCDetector(target, creds, timeout, classes)
}

func newGRPCDetector(target string, creds credentials.TransportCredentials, timeout time.Duration, classes []string, opts ...grpc.DialOption) (*GRPCDetector, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := &GRPCDetector{
		classes:         classes,
		timeout:         timeout,
		target:          target,
		creds:           creds,
		dialOpts:        opts,
		maxRetryBackoff: 30 * time.Second,
	}
	if err := d.connect(); err != nil {
		return nil, err
	}

	// Health is informational; the first Detect call surfaces real failures.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Str("ai_endpoint", target).Msg("Initial AI health check failed - will retry on next frame")
		} else {
			log.Info().Str("ai_endpoint", target).Msg("AI service health check passed")
		}
	}()

	return d, nil
}

func (d *GRPCDetector) Backend() string { return "grpc" }

func (d *GRPCDetector) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(d.creds)}, d.dialOpts...)
	conn, err := grpc.NewClient(d.target, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to AI service at %s: %w", d.target, err)
	}
	d.conn = conn
	d.consecutiveFails = 0
	return nil
}

// ensureConnected reconnects when the channel has failed, honouring the backoff window
func (d *GRPCDetector) ensureConnected() error {
	if !d.shouldRetry() {
		return errors.New("in backoff period after consecutive failures")
	}

	d.mu.RLock()
	needs := d.conn == nil
	if d.conn != nil {
		state := d.conn.GetState()
		needs = state == connectivity.Shutdown
	}
	d.mu.RUnlock()

	if needs {
		if err := d.connect(); err != nil {
			d.recordFailure()
			return err
		}
	}
	return nil
}

func (d *GRPCDetector) Detect(ctx context.Context, frame gocv.Mat) ([]models.Detection, error) {
	if frame.Empty() {
		return nil, d.fail(errors.New("empty frame"))
	}
	if err := d.ensureConnected(); err != nil {
		return nil, d.fail(err)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, 95})
	if err != nil {
		return nil, d.fail(fmt.Errorf("encode frame as JPEG: %w", err))
	}
	jpeg := buf.GetBytes()
	payload := base64.StdEncoding.EncodeToString(jpeg)
	buf.Close()

	req, err := structpb.NewStruct(map[string]interface{}{
		"image":  payload,
		"width":  frame.Cols(),
		"height": frame.Rows(),
		"format": "jpeg",
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("build request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()

	resp := &structpb.Struct{}
	if err := conn.Invoke(callCtx, DetectMethod, req, resp); err != nil {
		// a stopped session is not a service failure
		if ctx.Err() == nil {
			d.recordFailure()
		}
		return nil, d.fail(fmt.Errorf("inference failed: %w", err))
	}

	d.mu.Lock()
	d.consecutiveFails = 0
	d.mu.Unlock()

	dets, err := decodeReply(resp, d.classes)
	if err != nil {
		return nil, d.fail(err)
	}
	return dets, nil
}

// HealthCheck queries the standard gRPC health service
func (d *GRPCDetector) HealthCheck(ctx context.Context) error {
	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()
	if conn == nil {
		return errors.New("AI client not connected")
	}

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("service status %s", resp.GetStatus())
	}
	return nil
}

// ConnectionState returns the current channel state
func (d *GRPCDetector) ConnectionState() connectivity.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.conn == nil {
		return connectivity.Shutdown
	}
	return d.conn.GetState()
}

func (d *GRPCDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	log.Info().Msg("AI gRPC connection closed")
	return err
}

func (d *GRPCDetector) fail(err error) error {
	return &models.DetectionError{Backend: d.Backend(), Err: err}
}

// shouldRetry applies exponential backoff: 1s, 2s, 4s, 8s, 16s, 30s (max)
func (d *GRPCDetector) shouldRetry() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.consecutiveFails == 0 {
		return true
	}
	return time.Since(d.lastFailTime) >= backoffFor(d.consecutiveFails, d.maxRetryBackoff)
}

func backoffFor(fails int, ceiling time.Duration) time.Duration {
	if fails <= 0 {
		return 0
	}
	if fails > 16 {
		return ceiling
	}
	b := time.Duration(1<<uint(fails-1)) * time.Second
	if b > ceiling {
		return ceiling
	}
	return b
}

func (d *GRPCDetector) recordFailure() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.consecutiveFails++
	d.lastFailTime = time.Now()

	if d.consecutiveFails <= 5 {
		log.Warn().
			Int("consecutive_fails", d.consecutiveFails).
			Msg("AI connection failure recorded")
	}
}

// decodeReply converts the service reply into detections. Any malformed entry
// fails the whole reply.
func decodeReply(resp *structpb.Struct, classes []string) ([]models.Detection, error) {
	if resp == nil {
		return nil, errors.New("empty reply")
	}
	field, ok := resp.GetFields()["detections"]
	if !ok {
		return nil, errors.New("reply has no detections field")
	}
	if _, isNull := field.GetKind().(*structpb.Value_NullValue); isNull {
		return []models.Detection{}, nil
	}
	list := field.GetListValue()
	if list == nil {
		return nil, errors.New("detections is not a list")
	}

	dets := make([]models.Detection, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("detection %d is not an object", i)
		}
		f := obj.GetFields()
		num := func(key string) (float64, error) {
			val, ok := f[key]
			if !ok {
				return 0, fmt.Errorf("detection %d missing %q", i, key)
			}
			n, ok := val.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return 0, fmt.Errorf("detection %d field %q is not a number", i, key)
			}
			return n.NumberValue, nil
		}

		var coords [4]float64
		for j, key := range []string{"x1", "y1", "x2", "y2"} {
			n, err := num(key)
			if err != nil {
				return nil, err
			}
			coords[j] = n
		}
		conf, err := num("confidence")
		if err != nil {
			return nil, err
		}
		classID, err := num("class_id")
		if err != nil {
			return nil, err
		}

		label := f["label"].GetStringValue()
		if label == "" {
			label = labelFor(classes, int(classID))
		}
		dets = append(dets, models.Detection{
			Box:        image.Rect(int(coords[0]), int(coords[1]), int(coords[2]), int(coords[3])),
			ClassID:    int(classID),
			Label:      label,
			Confidence: float32(conf),
		})
	}
	return dets, nil
}

// parseGRPCEndpoint normalizes an endpoint into host:port plus transport credentials.
// Bare hosts default to TLS on 443; host:port uses TLS only on well-known TLS ports.
func parseGRPCEndpoint(endpoint string) (string, credentials.TransportCredentials, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", nil, errors.New("empty endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		if strings.Contains(endpoint, ":") {
			parts := strings.Split(endpoint, ":")
			if len(parts) == 2 {
				if port, err := strconv.Atoi(parts[1]); err == nil && (port == 443 || port == 8443 || port == 9443) {
					endpoint = "https://" + endpoint
				} else {
					endpoint = "http://" + endpoint
				}
			} else {
				endpoint = "http://" + endpoint
			}
		} else {
			endpoint = "https://" + endpoint + ":443"
		}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}

	host := u.Host
	if u.Port() == "" {
		switch u.Scheme {
		case "https":
			host = u.Hostname() + ":443"
		case "http":
			host = u.Hostname() + ":80"
		default:
			return "", nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
		}
	}

	var creds credentials.TransportCredentials
	switch u.Scheme {
	case "https":
		creds = credentials.NewTLS(&tls.Config{ServerName: u.Hostname()})
	case "http":
		creds = insecure.NewCredentials()
	default:
		return "", nil, fmt.Errorf("unsupported scheme: %s (supported: http, https)", u.Scheme)
	}

	return host, creds, nil
}
