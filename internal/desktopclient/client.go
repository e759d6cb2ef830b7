package desktopclient

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-labs/facebridge/internal/domain"
	"github.com/kestrel-labs/facebridge/internal/realtime"
)

// Config holds the Desktop Client's PCClient configuration section.
type Config struct {
	PluginName      string
	PluginDeveloper string
	Host            string
	Port            int
	DiscoveryPort   int
	DiscoveryMarker string
	DiscoveryWait   time.Duration
	TokenFilePath   string
	ParamCacheSize  int
}

// ParameterSource supplies the current set of parameter definitions the
// Desktop Client must keep registered with the avatar application.
type ParameterSource interface {
	ParameterDefinitions() []domain.ParameterDefinition
}

// Client drives the protocol state machine described in spec §4.D: it
// discovers the avatar application's port, connects, authenticates, and
// streams DesktopFrames, recreating the transport and retrying from
// Discovering whenever the connection fails.
type Client struct {
	cfg       Config
	logger    *slog.Logger
	publisher *realtime.EventPublisher
	params    ParameterSource
	registrar *paramRegistrar

	mu         sync.Mutex
	state      State
	transport  *transport
	started    time.Time
	configDiff bool

	status            atomic.Value // domain.DesktopStatus
	connectAttempts   atomic.Int64
	failedConnections atomic.Int64
	framesSent        atomic.Int64
	sendErrors        atomic.Int64
	lastError         atomic.Value // string

	// tokenFreshThisConn tracks whether the token currently on disk was
	// acquired via AuthenticationTokenRequest during the current
	// connection, as opposed to one already present in the token file.
	// Reset on every new connection attempt in runConnecting.
	tokenFreshThisConn atomic.Bool
}

// New constructs a Client in the Disconnected state.
func New(cfg Config, logger *slog.Logger, publisher *realtime.EventPublisher, params ParameterSource) *Client {
	registrar, _ := newParamRegistrar(cfg.ParamCacheSize)
	c := &Client{
		cfg:       cfg,
		logger:    logger.With("component", "desktop_client"),
		publisher: publisher,
		params:    params,
		registrar: registrar,
		state:     StateDisconnected,
	}
	c.status.Store(domain.DesktopInitializing)
	c.lastError.Store("")
	return c
}

// Run drives the state machine until ctx is cancelled. It never returns
// Failed permanently for transient errors: after a connection attempt
// fails the machine loops back to Discovering.
func (c *Client) Run(ctx context.Context) {
	c.started = time.Now()
	for {
		select {
		case <-ctx.Done():
			c.closeTransport()
			c.transition(StateClosing, "context cancelled")
			return
		default:
		}

		switch c.State() {
		case StateDisconnected:
			c.transition(StateDiscovering, "")
		case StateDiscovering:
			c.runDiscovering(ctx)
		case StateConnecting:
			c.runConnecting(ctx)
		case StateAcquiringToken:
			c.runAcquiringToken(ctx)
		case StateAuthenticating:
			c.runAuthenticating(ctx)
		case StateConnected:
			c.runConnected(ctx)
		case StateSendFailing:
			c.closeTransport()
			c.transition(StateDiscovering, "send failure, reconnecting")
		case StateFailed:
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			c.transition(StateDiscovering, "retry after failure")
		case StateClosing:
			return
		}
	}
}

func (c *Client) runDiscovering(ctx context.Context) {
	c.status.Store(domain.DesktopDiscoveringPort)
	wait := c.cfg.DiscoveryWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	port, ok := discover(ctx, c.cfg.DiscoveryPort, c.cfg.DiscoveryMarker, wait)
	if ok {
		c.mu.Lock()
		c.cfg.Port = port
		c.mu.Unlock()
	} else if c.cfg.Port == 0 {
		c.status.Store(domain.DesktopPortDiscoveryFailed)
		c.transition(StateFailed, "no beacon and no configured port")
		return
	}

	c.transition(StateConnecting, "")
}

func (c *Client) runConnecting(ctx context.Context) {
	c.status.Store(domain.DesktopConnecting)
	c.connectAttempts.Add(1)

	t, err := dialTransport(ctx, c.cfg.Host, c.cfg.Port, &slogAdapter{c.logger})
	if err != nil {
		c.failedConnections.Add(1)
		c.lastError.Store(err.Error())
		c.status.Store(domain.DesktopConnectionFailed)
		c.transition(StateFailed, err.Error())
		return
	}

	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
	if c.registrar != nil {
		c.registrar.Reset()
	}

	c.tokenFreshThisConn.Store(false)
	c.transition(StateAcquiringToken, "")
}

func (c *Client) runAcquiringToken(ctx context.Context) {
	c.status.Store(domain.DesktopAuthenticating)

	token, _ := domain.LoadAuthToken(c.cfg.TokenFilePath)
	if !token.Empty() {
		c.transition(StateAuthenticating, "")
		return
	}

	t := c.Transport()
	resp, err := t.Request(ctx, messageTypeAuthTokenRequest, authTokenRequestData{
		PluginName:      c.cfg.PluginName,
		PluginDeveloper: c.cfg.PluginDeveloper,
	})
	if err != nil {
		c.lastError.Store(err.Error())
		c.status.Store(domain.DesktopAuthenticationFailed)
		c.transition(StateFailed, err.Error())
		return
	}

	var data authTokenResponseData
	if err := unmarshalInto(resp, &data); err != nil || data.AuthenticationToken == "" {
		c.status.Store(domain.DesktopAuthenticationFailed)
		c.transition(StateFailed, "empty authentication token")
		return
	}

	if err := domain.SaveAuthToken(c.cfg.TokenFilePath, domain.AuthToken(data.AuthenticationToken)); err != nil {
		c.logger.Warn("failed to persist authentication token", "error", err)
	}

	c.tokenFreshThisConn.Store(true)
	c.transition(StateAuthenticating, "")
}

func (c *Client) runAuthenticating(ctx context.Context) {
	token, err := domain.LoadAuthToken(c.cfg.TokenFilePath)
	if err != nil || token.Empty() {
		c.transition(StateAcquiringToken, "missing token, re-acquiring")
		return
	}

	t := c.Transport()
	resp, err := t.Request(ctx, messageTypeAuthRequest, authRequestData{
		PluginName:          c.cfg.PluginName,
		PluginDeveloper:     c.cfg.PluginDeveloper,
		AuthenticationToken: string(token),
	})
	if err != nil {
		c.lastError.Store(err.Error())
		c.status.Store(domain.DesktopAuthenticationFailed)
		c.transition(StateFailed, err.Error())
		return
	}

	var data authResponseData
	if err := unmarshalInto(resp, &data); err != nil || !data.Authenticated {
		c.handleAuthRejection()
		return
	}

	if c.registrar != nil && c.params != nil {
		if err := c.registrar.Sync(ctx, t, c.params.ParameterDefinitions()); err != nil {
			c.logger.Warn("parameter sync failed", "error", err)
		}
	}

	c.status.Store(domain.DesktopConnected)
	c.transition(StateConnected, "")
}

// handleAuthRejection implements spec §4.D's explicit-rejection path:
// clear the rejected token file so the next AcquiringToken pass can't load
// it back unchanged, then decide whether this connection gets one more
// re-acquire attempt or gives up. A token rejected once causes exactly one
// re-acquire attempt: if the token that was just rejected was itself
// freshly acquired via AuthenticationTokenRequest during this connection,
// acquiring again from the same flow would only repeat the rejection, so
// the machine goes to Failed instead of looping Authenticating <->
// AcquiringToken forever.
func (c *Client) handleAuthRejection() {
	c.status.Store(domain.DesktopAuthenticationFailed)
	if err := domain.ClearAuthToken(c.cfg.TokenFilePath); err != nil {
		c.logger.Warn("failed to clear rejected authentication token", "error", err)
	}

	if c.tokenFreshThisConn.Load() {
		c.transition(StateFailed, "freshly acquired token rejected")
		return
	}
	c.transition(StateAcquiringToken, "token rejected, re-acquiring")
}

func (c *Client) runConnected(ctx context.Context) {
	t := c.Transport()
	if t == nil || t.IsTerminal() {
		c.transition(StateSendFailing, "transport no longer usable")
		return
	}

	select {
	case <-ctx.Done():
	case <-time.After(50 * time.Millisecond):
	}
}

// SendFrame delivers frame to the avatar application. Callable only while
// the state machine is Connected; it blocks for one request/response
// round-trip.
func (c *Client) SendFrame(ctx context.Context, frame domain.DesktopFrame) error {
	if c.State() != StateConnected {
		return errNotConnected
	}

	t := c.Transport()
	if t == nil {
		return errNotConnected
	}

	entries := make([]injectParameterEntry, 0, len(frame.Parameters))
	for _, p := range frame.Parameters {
		entries = append(entries, injectParameterEntry{ID: p.Name, Value: p.Value, Weight: p.Weight})
	}

	_, err := t.Request(ctx, messageTypeInjectData, injectParameterData{
		FaceFound:  frame.FacePresent,
		Mode:       "set",
		Parameters: entries,
	})
	if err != nil {
		c.sendErrors.Add(1)
		c.lastError.Store(err.Error())
		c.status.Store(domain.DesktopSendError)
		c.transition(StateSendFailing, err.Error())
		return err
	}

	c.framesSent.Add(1)
	return nil
}

// MarkConfigChanged flags that PCClient configuration changed underneath a
// live connection; Stats().IsHealthy turns false until the client
// reconnects and clears the flag.
func (c *Client) MarkConfigChanged() {
	c.mu.Lock()
	c.configDiff = true
	c.mu.Unlock()
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Transport() *transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

func (c *Client) closeTransport() {
	c.mu.Lock()
	t := c.transport
	c.transport = nil
	c.mu.Unlock()
	if t != nil {
		_ = t.Close()
	}
}

func (c *Client) transition(to State, reason string) {
	c.mu.Lock()
	from := c.state
	c.state = to
	if to == StateConnected {
		c.configDiff = false
	}
	c.mu.Unlock()

	if from == to {
		return
	}
	if c.publisher != nil {
		_ = c.publisher.PublishDesktopStateChanged(string(from), string(to), reason)
	}
}

// Stats reports is_healthy iff the machine is Connected and no
// configuration change has invalidated the live connection.
func (c *Client) Stats() domain.ServiceStats {
	status := c.status.Load().(domain.DesktopStatus)

	c.mu.Lock()
	healthy := c.state == StateConnected && !c.configDiff
	started := c.started
	c.mu.Unlock()

	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started)
	}

	return domain.ServiceStats{
		Name:      "desktop_client",
		Status:    string(status),
		IsHealthy: healthy,
		Uptime:    uptime,
		Counters: map[string]int64{
			"connection_attempts": c.connectAttempts.Load(),
			"failed_connections":  c.failedConnections.Load(),
			"frames_sent":         c.framesSent.Load(),
			"send_errors":         c.sendErrors.Load(),
		},
		LastError: c.lastError.Load().(string),
	}
}

type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...interface{}) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...interface{})  { a.l.Warn(msg, args...) }

var errNotConnected = &notConnectedError{}

type notConnectedError struct{}

func (e *notConnectedError) Error() string { return "desktop client is not connected" }
