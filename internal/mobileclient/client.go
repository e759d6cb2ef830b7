package mobileclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/realtime"
)

// Config holds the Mobile Client's PhoneClient configuration section.
type Config struct {
	LocalPort              int
	ReceiveTimeoutMs       int
	IPhoneIP               string
	IPhonePort             int
	RequestIntervalSeconds float64
	SendForSeconds         float64
}

// Client pulls face frames from the mobile source over UDP and raises them
// as FrameReceived events. It is owned by exactly one goroutine (the
// Orchestrator); Stats() is the only method safe to call concurrently.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	publisher *realtime.EventPublisher
	sentBy    string

	mu      sync.Mutex
	conn    *net.UDPConn
	started time.Time
	frames  chan *domain.Frame

	status            atomic.Value // domain.MobileStatus
	framesReceived    atomic.Int64
	sendErrors        atomic.Int64
	receiveErrors     atomic.Int64
	decodeErrors      atomic.Int64
	framesOverwritten atomic.Int64
	lastFrameUnixNano atomic.Int64
	lastError         atomic.Value // string
}

// New constructs a Client. It does not bind a socket until TryInitialize.
func New(cfg Config, logger *slog.Logger, publisher *realtime.EventPublisher) *Client {
	c := &Client{
		cfg:       cfg,
		logger:    logger.With("component", "mobile_client"),
		publisher: publisher,
		sentBy:    uuid.New().String(),
		frames:    make(chan *domain.Frame, 1),
	}
	c.status.Store(domain.MobileInitializing)
	c.lastError.Store("")
	return c
}

// TryInitialize binds the local datagram socket and sets the receive
// timeout. It performs no handshake and is safe to call repeatedly: a
// prior successful bind is torn down before rebinding.
func (c *Client) TryInitialize() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	addr := &net.UDPAddr{Port: c.cfg.LocalPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		c.logger.Warn("failed to bind mobile client socket", "port", c.cfg.LocalPort, "error", err)
		c.status.Store(domain.MobileInitializationFail)
		c.lastError.Store(err.Error())
		return false
	}

	c.conn = conn
	c.started = time.Now()
	c.status.Store(domain.MobileConnected)
	return true
}

// Start launches the request and receive loops. It returns once both
// loops have exited (on ctx cancellation).
func (c *Client) Start(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.requestLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		c.receiveLoop(ctx)
	}()
	wg.Wait()
}

// requestLoop sends a heartbeat datagram every RequestIntervalSeconds so
// the mobile side keeps streaming, paced with a token-bucket limiter
// instead of a raw sleep loop so the cadence is inspectable and testable.
func (c *Client) requestLoop(ctx context.Context) {
	if c.cfg.RequestIntervalSeconds <= 0 {
		return
	}
	limiter := rate.NewLimiter(rate.Every(time.Duration(c.cfg.RequestIntervalSeconds*float64(time.Second))), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		c.status.Store(domain.MobileSendingRequests)
		if err := c.sendHeartbeat(); err != nil {
			c.sendErrors.Add(1)
			c.logger.Debug("heartbeat send failed", "error", err)
			c.status.Store(domain.MobileSendError)
		}
	}
}

func (c *Client) sendHeartbeat() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}

	payload, err := json.Marshal(newHeartbeatRequest(c.sentBy, c.cfg.LocalPort, c.cfg.SendForSeconds))
	if err != nil {
		return err
	}

	dest := &net.UDPAddr{IP: net.ParseIP(c.cfg.IPhoneIP), Port: c.cfg.IPhonePort}
	_, err = conn.WriteToUDP(payload, dest)
	return err
}

// receiveLoop blocks on ReadFromUDP with a deadline, decodes each datagram,
// and fires FrameReceived on success. Decode failures are counted; read
// timeouts are skipped without counting. Neither is propagated.
func (c *Client) receiveLoop(ctx context.Context) {
	buf := make([]byte, 64*1024)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}

		if c.cfg.ReceiveTimeoutMs > 0 {
			conn.SetReadDeadline(time.Now().Add(time.Duration(c.cfg.ReceiveTimeoutMs) * time.Millisecond))
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			c.receiveErrors.Add(1)
			c.status.Store(domain.MobileReceiveError)
			continue
		}

		frame, err := decodeFrame(buf[:n])
		if err != nil {
			c.decodeErrors.Add(1)
			c.status.Store(domain.MobileProcessingError)
			continue
		}

		c.framesReceived.Add(1)
		c.lastFrameUnixNano.Store(time.Now().UnixNano())
		c.status.Store(domain.MobileReceivingData)

		if c.publisher != nil {
			_ = c.publisher.PublishFrameReceived(c.sentBy, time.Now().UnixMilli(), len(frame.BlendShapes))
		}

		// Non-blocking send into a capacity-1 channel gives the orchestrator's
		// sequential frame router drop-latest backpressure for free: a frame
		// that arrives while the previous one is still queued is discarded
		// rather than displacing it, so the router always drains in order.
		select {
		case c.frames <- frame:
		default:
			c.framesOverwritten.Add(1)
		}
	}
}

// Frames returns the channel the orchestrator drains for frame routing.
// Capacity 1, non-blocking producer: a consumer busy transforming and
// sending one frame naturally sheds any that arrive before it's ready for
// the next.
func (c *Client) Frames() <-chan *domain.Frame {
	return c.frames
}

func decodeFrame(data []byte) (*domain.Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, err
	}

	blendShapes := make(map[string]float64, len(wf.BlendShapes))
	for _, entry := range wf.BlendShapes {
		blendShapes[entry.K] = entry.V
	}

	return &domain.Frame{
		FacePresent:  wf.FaceFound,
		Timestamp:    time.Now(),
		HeadPosition: domain.Vector3{X: wf.Position.X, Y: wf.Position.Y, Z: wf.Position.Z},
		HeadRotation: domain.Vector3{X: wf.Rotation.X, Y: wf.Rotation.Y, Z: wf.Rotation.Z},
		EyeLeft:      domain.Point2{X: wf.EyeLeft.X, Y: wf.EyeLeft.Y},
		EyeRight:     domain.Point2{X: wf.EyeRight.X, Y: wf.EyeRight.Y},
		BlendShapes:  blendShapes,
	}, nil
}

// Stats reports is_healthy as true iff a frame was received within the
// last 3x RequestIntervalSeconds.
func (c *Client) Stats() domain.ServiceStats {
	status := c.status.Load().(domain.MobileStatus)

	lastFrameNano := c.lastFrameUnixNano.Load()
	healthy := lastFrameNano != 0 && c.cfg.RequestIntervalSeconds > 0 &&
		time.Since(time.Unix(0, lastFrameNano)) < time.Duration(3*c.cfg.RequestIntervalSeconds*float64(time.Second))

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started)
	}

	return domain.ServiceStats{
		Name:      "mobile_client",
		Status:    string(status),
		IsHealthy: healthy,
		Uptime:    uptime,
		Counters: map[string]int64{
			"frames_received":    c.framesReceived.Load(),
			"send_errors":        c.sendErrors.Load(),
			"receive_errors":     c.receiveErrors.Load(),
			"decode_errors":      c.decodeErrors.Load(),
			"frames_overwritten": c.framesOverwritten.Load(),
		},
		LastError: c.lastError.Load().(string),
	}
}
