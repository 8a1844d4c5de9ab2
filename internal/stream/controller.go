package stream

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/market-watch/internal/logger"
	"github.com/rxtech-lab/market-watch/internal/types"
	"github.com/rxtech-lab/market-watch/pkg/errors"
)

// Distinguished close codes from the backend. Both are terminal for the
// connection attempt: the controller transitions to disconnected and does not
// auto-retry.
const (
	CloseAuthFailure    = 4401
	ClosePolicyRejected = 4403
)

// Error code on a system.error envelope that forces degraded mode.
const ErrorCodeUpstreamUnavailable = "STREAM_UPSTREAM_UNAVAILABLE"

// Default lifecycle tuning. Reconnect delays double from the base up to the
// ceiling; reconnecting longer than the degraded threshold without a
// successful open hands off to the polling fallback.
const (
	DefaultReconnectBase = time.Second
	DefaultReconnectMax  = 10 * time.Second
	DefaultDegradedAfter = 10 * time.Second
	DefaultStreamPath    = "/api/v1/market-data/stream"
)

// Transport is the subset of *websocket.Conn the controller needs. Tests
// substitute an in-memory implementation.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens the push transport. The default dials the configured stream
// URL with gorilla/websocket.
type DialFunc func(ctx context.Context, rawURL string) (Transport, error)

func defaultDial(ctx context.Context, rawURL string) (Transport, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		return nil, err
	}

	return conn, nil
}

// Callbacks are the controller's outward edges. All callbacks are invoked
// without internal locks held, so they may call back into the controller.
// Nil callbacks are allowed.
type Callbacks struct {
	// OnStateChange reports every connection-state transition.
	OnStateChange func(state types.ConnectionState)
	// OnLatencyChange reports data-latency reclassification.
	OnLatencyChange func(latency types.DataLatency)
	// OnMarket delivers each parsed market envelope.
	OnMarket func(env *Envelope)
	// OnStreamError surfaces a non-fatal, user-visible upstream error.
	OnStreamError func(code, message string)
	// OnOpen fires after every successful open, once the full desired
	// subscription set has been resynchronized. The session uses it to force a
	// focused-symbol detail refresh and clear transient errors.
	OnOpen func()
	// StartPolling and StopPolling hand off to / back from the degraded
	// poller. Both must be idempotent.
	StartPolling func()
	StopPolling  func()
}

// Config tunes the controller.
type Config struct {
	// BaseURL is the backend origin, e.g. "https://terminal.example.com".
	// The socket scheme mirrors it: https becomes wss, http becomes ws.
	BaseURL string
	// Path of the stream endpoint. Defaults to DefaultStreamPath.
	Path string
	// Token supplies the current bearer token; an empty string means no
	// credentials are available.
	Token func() string
	// ReconnectBase, ReconnectMax, DegradedAfter override the lifecycle
	// defaults. Zero values pick the defaults.
	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	DegradedAfter time.Duration
	// Dial overrides the transport dialer. Defaults to gorilla/websocket.
	Dial DialFunc
}

// clientMessage is the client-to-server wire shape.
type clientMessage struct {
	Action   string   `json:"action"`
	Symbols  []string `json:"symbols,omitempty"`
	Channels []string `json:"channels,omitempty"`
}

// Controller owns the push-transport lifecycle: connect, authenticate,
// receive, detect failure, reconnect with backoff, hand off to degraded
// polling, and hand back on recovery.
//
// Degraded mode is status-message driven: once entered, it persists until a
// system.status envelope reports real-time latency and a connected state,
// even if the socket itself reopens earlier.
type Controller struct {
	log  *logger.Logger
	cfg  Config
	subs *SubscriptionManager
	cbs  Callbacks

	mu                sync.Mutex
	writeMu           sync.Mutex
	ctx               context.Context
	state             types.ConnectionState
	conn              Transport
	connGen           int
	attempts          int
	reconnectingSince time.Time
	reconnectTimer    *time.Timer
	backoff           *backoff.ExponentialBackOff
	manualClose       bool
}

// NewController creates a controller in the idle state. Start must be called
// before the controller dials anything.
func NewController(cfg Config, subs *SubscriptionManager, cbs Callbacks, log *logger.Logger) *Controller {
	if cfg.Path == "" {
		cfg.Path = DefaultStreamPath
	}

	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = DefaultReconnectBase
	}

	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = DefaultReconnectMax
	}

	if cfg.DegradedAfter < 0 {
		cfg.DegradedAfter = DefaultDegradedAfter
	}

	if cfg.Dial == nil {
		cfg.Dial = defaultDial
	}

	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}

	return &Controller{
		log:     log,
		cfg:     cfg,
		subs:    subs,
		cbs:     cbs,
		ctx:     context.Background(),
		state:   types.ConnectionIdle,
		backoff: newReconnectBackoff(cfg.ReconnectBase, cfg.ReconnectMax),
	}
}

// newReconnectBackoff builds the deterministic doubling schedule: base, 2x,
// 4x, ... capped at max, with no jitter and no give-up deadline.
func newReconnectBackoff(base, max time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// Start begins the connection lifecycle. The context bounds every dial; it is
// not a substitute for Close.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.manualClose = false
	c.mu.Unlock()

	go c.connect()
}

// Close tears the connection down manually: stops the reconnect timer, stops
// polling, closes the socket, and transitions to disconnected. The controller
// does not reconnect until Start or CredentialsChanged is called again.
func (c *Controller) Close() {
	c.mu.Lock()

	c.manualClose = true

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	conn := c.conn
	c.conn = nil
	changed := c.setStateLocked(types.ConnectionDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	c.subs.ResetAcked()
	c.notifyStop()

	if changed {
		c.notifyState(types.ConnectionDisconnected)
	}
}

// CredentialsChanged re-evaluates the credential supplier. With a token
// available and the controller disconnected or idle, a new connection attempt
// starts; with the token gone, the connection closes terminally.
func (c *Controller) CredentialsChanged() {
	if c.cfg.Token() == "" {
		c.Close()
		return
	}

	c.mu.Lock()
	idle := c.state == types.ConnectionIdle || c.state == types.ConnectionDisconnected
	c.manualClose = false
	c.mu.Unlock()

	if idle {
		go c.connect()
	}
}

// State returns the current connection state.
func (c *Controller) State() types.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Attempts returns the reconnect attempt counter; zero after any successful
// open.
func (c *Controller) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.attempts
}

// Send delivers one subscribe/unsubscribe action over the open socket. It
// satisfies SendFunc; on a closed transport it reports ErrTransportClosed,
// which Sync treats as a silent skip.
func (c *Controller) Send(action string, symbols []string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return ErrTransportClosed
	}

	payload, err := json.Marshal(clientMessage{
		Action:   action,
		Symbols:  symbols,
		Channels: StreamChannels,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStreamSendFailed, "failed to encode subscription message", err)
	}

	return c.write(conn, payload)
}

func (c *Controller) write(conn Transport, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return errors.Wrap(errors.ErrCodeStreamSendFailed, "failed to write to stream", err)
	}

	return nil
}

// connect performs one dial attempt and, on success, installs the connection
// and spawns its read loop.
func (c *Controller) connect() {
	c.mu.Lock()

	if c.manualClose || c.conn != nil {
		c.mu.Unlock()
		return
	}

	token := c.cfg.Token()
	if token == "" {
		changed := c.setStateLocked(types.ConnectionDisconnected)
		c.mu.Unlock()

		if changed {
			c.notifyState(types.ConnectionDisconnected)
		}

		return
	}

	var announced types.ConnectionState

	switch c.state {
	case types.ConnectionReconnecting, types.ConnectionDegraded:
		// Keep the reconnecting/degraded classification while redialing.
	default:
		if c.setStateLocked(types.ConnectionConnecting) {
			announced = types.ConnectionConnecting
		}
	}

	c.connGen++
	gen := c.connGen
	ctx := c.ctx
	dial := c.cfg.Dial
	target := c.streamURL(token)
	c.mu.Unlock()

	if announced != "" {
		c.notifyState(announced)
	}

	conn, err := dial(ctx, target)
	if err != nil {
		c.log.Warn("stream dial failed", zap.Error(err))
		c.handleDisconnect(gen, 0, err)

		return
	}

	c.mu.Lock()

	// Another connect may have raced this one while the lock was released for
	// dialing; only the latest generation may install its socket.
	if c.manualClose || gen != c.connGen || c.conn != nil {
		c.mu.Unlock()
		_ = conn.Close()

		return
	}

	c.conn = conn
	c.attempts = 0
	c.backoff.Reset()
	c.reconnectingSince = time.Time{}

	// A reopened socket alone does not leave degraded mode; that waits for an
	// explicit real-time + connected status from the server.
	stayDegraded := c.state == types.ConnectionDegraded

	var newState types.ConnectionState
	if !stayDegraded && c.setStateLocked(types.ConnectionConnected) {
		newState = types.ConnectionConnected
	}

	c.mu.Unlock()

	if newState != "" {
		c.notifyState(newState)
		c.notifyLatency(types.LatencyRealTime)
		c.notifyStop()
	}

	// Server-side subscription state is empty after any (re)connect:
	// resynchronize the full desired set, not a diff.
	c.subs.ResetAcked()

	if err := c.subs.Sync(c.Send); err != nil {
		c.log.Warn("subscription resync failed", zap.Error(err))
		c.notifyStreamError("", err.Error())
	}

	if c.cbs.OnOpen != nil {
		c.cbs.OnOpen()
	}

	go c.readLoop(gen, conn)
}

// readLoop pumps frames from one connection until it fails, then reports the
// failure tagged with the connection generation so a stale loop cannot
// disturb a newer connection.
func (c *Controller) readLoop(gen int, conn Transport) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(gen, closeCode(err), err)
			return
		}

		c.handleFrame(data)
	}
}

// closeCode extracts the websocket close code from a read error, or 0 when
// the failure was not a close frame.
func closeCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}

	return 0
}

// handleFrame routes one parsed envelope. Unparseable frames are protocol
// rejects: dropped, logged at debug, never surfaced.
func (c *Controller) handleFrame(data []byte) {
	env := ParseEnvelope(data)
	if env == nil {
		c.log.Debug("dropping unrecognized stream frame", zap.Int("bytes", len(data)))
		return
	}

	switch env.Type {
	case MessagePing:
		c.replyPing()

	case MessageStatus:
		if env.Status != nil {
			c.handleStatus(env.Status)
		}

	case MessageError:
		if env.Err != nil {
			c.handleStreamError(env.Err)
		}

	case MessageQuote, MessageTrade, MessageAggregate:
		if c.cbs.OnMarket != nil {
			c.cbs.OnMarket(env)
		}
	}
}

func (c *Controller) replyPing() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return
	}

	payload, err := json.Marshal(clientMessage{Action: "ping"})
	if err != nil {
		return
	}

	if err := c.write(conn, payload); err != nil {
		c.log.Debug("ping reply failed", zap.Error(err))
	}
}

// handleStatus applies a server status report. Real-time + connected is the
// recovery signal that ends degraded mode.
func (c *Controller) handleStatus(status *StatusPayload) {
	if status.Latency != "" {
		c.notifyLatency(status.Latency)
	}

	recovered := status.Latency == types.LatencyRealTime &&
		strings.EqualFold(status.ConnectionState, "connected")
	if !recovered {
		return
	}

	c.mu.Lock()

	var newState types.ConnectionState
	if c.state == types.ConnectionDegraded && c.conn != nil && c.setStateLocked(types.ConnectionConnected) {
		newState = types.ConnectionConnected
	}

	c.mu.Unlock()

	if newState != "" {
		c.log.Info("stream recovered from degraded mode")
		c.notifyStop()
		c.notifyState(newState)
	}
}

// handleStreamError surfaces an upstream business error. The distinguished
// upstream-unavailable code additionally forces degraded mode.
func (c *Controller) handleStreamError(payload *ErrorPayload) {
	message := payload.Message
	if message == "" {
		message = "stream error"
	}

	c.notifyStreamError(payload.Code, message)

	if payload.Code == ErrorCodeUpstreamUnavailable {
		c.forceDegraded()
	}
}

// forceDegraded enters degraded mode without waiting for socket failure.
func (c *Controller) forceDegraded() {
	c.mu.Lock()
	changed := c.setStateLocked(types.ConnectionDegraded)
	c.mu.Unlock()

	if changed {
		c.log.Warn("entering degraded mode on upstream-unavailable error")
		c.notifyLatency(types.LatencyDelayed)
		c.notifyStart()
		c.notifyState(types.ConnectionDegraded)
	}
}

// handleDisconnect handles a failed dial or a broken read loop for the given
// connection generation: classify the close, pick the next state, and
// schedule the next attempt unless the failure was terminal.
func (c *Controller) handleDisconnect(gen int, code int, cause error) {
	c.mu.Lock()

	if gen != c.connGen {
		c.mu.Unlock()
		return
	}

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	if c.manualClose || c.cfg.Token() == "" {
		changed := c.setStateLocked(types.ConnectionDisconnected)
		c.mu.Unlock()

		c.subs.ResetAcked()

		if changed {
			c.notifyState(types.ConnectionDisconnected)
		}

		return
	}

	if code == CloseAuthFailure || code == ClosePolicyRejected {
		changed := c.setStateLocked(types.ConnectionDisconnected)
		c.mu.Unlock()

		c.subs.ResetAcked()
		c.notifyStop()

		if changed {
			c.notifyState(types.ConnectionDisconnected)
		}

		if code == CloseAuthFailure {
			c.log.Error("stream authentication rejected, not retrying", zap.Error(cause))
			c.notifyStreamError("STREAM_AUTH_FAILED", "stream authentication failed, re-authentication required")
		} else {
			c.log.Error("stream rejected by origin policy, not retrying", zap.Error(cause))
			c.notifyStreamError("STREAM_POLICY_REJECTED", "stream connection rejected by origin policy")
		}

		return
	}

	// Retryable failure.
	now := time.Now()
	if c.reconnectingSince.IsZero() {
		c.reconnectingSince = now
	}

	degraded := now.Sub(c.reconnectingSince) >= c.cfg.DegradedAfter

	var newState types.ConnectionState

	if degraded {
		if c.setStateLocked(types.ConnectionDegraded) {
			newState = types.ConnectionDegraded
		}
	} else {
		if c.setStateLocked(types.ConnectionReconnecting) {
			newState = types.ConnectionReconnecting
		}
	}

	c.attempts++
	delay := c.backoff.NextBackOff()

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}

	c.reconnectTimer = time.AfterFunc(delay, c.connect)
	attempts := c.attempts
	c.mu.Unlock()

	c.subs.ResetAcked()
	c.notifyLatency(types.LatencyDelayed)

	if degraded {
		c.notifyStart()
	}

	if newState != "" {
		c.notifyState(newState)
	}

	c.log.Warn("stream connection lost, reconnect scheduled",
		zap.Int("close_code", code),
		zap.Int("attempt", attempts),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
}

// setStateLocked transitions the state and reports whether it changed.
// Callers must hold c.mu and invoke notifyState after unlocking.
func (c *Controller) setStateLocked(state types.ConnectionState) bool {
	if c.state == state {
		return false
	}

	c.state = state

	return true
}

func (c *Controller) streamURL(token string) string {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil || base.Host == "" {
		// Fall back to treating the base URL as a bare host.
		base = &url.URL{Scheme: "https", Host: strings.TrimSpace(c.cfg.BaseURL)}
	}

	scheme := "wss"
	if base.Scheme == "http" || base.Scheme == "ws" {
		scheme = "ws"
	}

	query := url.Values{}
	query.Set("token", token)

	target := url.URL{
		Scheme:   scheme,
		Host:     base.Host,
		Path:     c.cfg.Path,
		RawQuery: query.Encode(),
	}

	return target.String()
}

func (c *Controller) notifyState(state types.ConnectionState) {
	if c.cbs.OnStateChange != nil {
		c.cbs.OnStateChange(state)
	}
}

func (c *Controller) notifyLatency(latency types.DataLatency) {
	if c.cbs.OnLatencyChange != nil {
		c.cbs.OnLatencyChange(latency)
	}
}

func (c *Controller) notifyStreamError(code, message string) {
	if c.cbs.OnStreamError != nil {
		c.cbs.OnStreamError(code, message)
	}
}

func (c *Controller) notifyStart() {
	if c.cbs.StartPolling != nil {
		c.cbs.StartPolling()
	}
}

func (c *Controller) notifyStop() {
	if c.cbs.StopPolling != nil {
		c.cbs.StopPolling()
	}
}
