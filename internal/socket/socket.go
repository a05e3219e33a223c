// Package socket maintains the reverse WebSocket connection to the tunnel
// server: dialing out, handshaking, reading frames, and reconnecting on a
// fixed cadence until the server aborts the tunnel or the client closes it.
package socket

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/wagiedev/mcp-tunnel-go/internal/errors"
	"github.com/wagiedev/mcp-tunnel-go/internal/wire"
)

// maxFrameSize bounds inbound frames. Capability results travel outbound,
// so inbound traffic is small control messages; 1MB leaves headroom.
const maxFrameSize = 1024 * 1024

// State is the connection state of the tunnel socket.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateAborted      State = "aborted"
)

// Listener observes socket events. Callbacks run synchronously on the
// socket's event goroutine, in listener registration order, before the
// socket moves on; implementations must not block for long.
type Listener interface {
	// OnConnectionChange fires on every transition into or out of the
	// connected state.
	OnConnectionChange(connected bool)

	// OnMessage fires for every well-formed inbound envelope.
	OnMessage(env *wire.Envelope)

	// OnServerAbort fires at most once, when the server closes the tunnel
	// with a fatal code. No reconnect follows.
	OnServerAbort(reason string, code wire.CloseCode)
}

// Config configures a Socket.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the tunnel server.
	Endpoint string

	// Handshake is announced as the first frame of every connection.
	Handshake wire.HandshakeParams

	// Header carries extra HTTP headers on the dial request.
	Header http.Header

	// ClientID identifies this client instance to the server via the
	// X-Tunnel-Client-Id header.
	ClientID string

	// ReconnectInterval is the fixed delay between reconnect attempts.
	// No backoff is applied. Defaults to 3s.
	ReconnectInterval time.Duration

	// DialTimeout bounds a single dial attempt. Defaults to 10s.
	DialTimeout time.Duration

	// DialAttempts is the number of attempts a synchronous Start makes
	// before giving up. Defaults to 1.
	DialAttempts int

	// AsyncConnect makes Start return immediately and dial in the
	// background, where failures roll into the regular retry cadence.
	AsyncConnect bool

	Logger *slog.Logger
}

// Socket is a single-use reverse tunnel connection manager.
//
// Lifecycle: New → AddListener → Start → Close. After a fatal server
// close or Close() the socket is aborted for good; create a new one to
// reconnect.
type Socket struct {
	cfg Config
	log *slog.Logger

	// Connection lifecycle. epoch identifies the current physical
	// connection so a stale read loop cannot schedule reconnects for a
	// connection that has already been replaced.
	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	epoch     int
	retry     *time.Timer
	started   bool
	fatalErr  error
	listeners []Listener

	// writeMu serializes frame writes; the websocket allows only one
	// concurrent writer.
	writeMu sync.Mutex

	// Lifetime context for reads and background dials. Deliberately
	// detached from Start's ctx: the connection outlives the Start call
	// and is torn down by Close.
	runCtx    context.Context
	runCancel context.CancelFunc

	wg sync.WaitGroup
}

// New creates a socket with defaults applied for zero-value config fields.
func New(cfg Config) *Socket {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}

	if cfg.DialAttempts < 1 {
		cfg.DialAttempts = 1
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Socket{
		cfg:   cfg,
		log:   cfg.Logger.With("component", "socket"),
		state: StateDisconnected,
	}
}

// AddListener registers an observer for socket events. Listeners added
// after Start may miss earlier events.
func (s *Socket) AddListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.listeners = append(s.listeners, l)
}

// State returns the current connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// FatalError returns the abort error if the server terminated the tunnel.
func (s *Socket) FatalError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fatalErr
}

// Start dials the tunnel server and sends the handshake.
//
// Synchronous mode makes up to DialAttempts attempts spaced by the
// reconnect interval and returns a ConnectError when all fail. With
// AsyncConnect the method returns after scheduling the first attempt in
// the background; dial failures there feed the retry loop instead of
// being returned.
//
// ctx bounds only the synchronous dial phase. The connection itself lives
// until Close or a fatal server close.
func (s *Socket) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.state == StateAborted {
		s.mu.Unlock()

		return errors.ErrServerClosed
	}

	if s.started {
		s.mu.Unlock()

		return errors.ErrAlreadyStarted
	}

	s.started = true
	s.state = StateConnecting
	s.runCtx, s.runCancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.log.Debug("Starting tunnel socket", "endpoint", s.cfg.Endpoint, "async", s.cfg.AsyncConnect)

	if s.cfg.AsyncConnect {
		s.wg.Add(1)

		go func() {
			defer s.wg.Done()
			s.connectAsync()
		}()

		return nil
	}

	return s.connectSync(ctx)
}

// connectSync runs the bounded initial dial loop.
func (s *Socket) connectSync(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.DialAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(s.cfg.ReconnectInterval):
			case <-ctx.Done():
				s.setState(StateDisconnected)

				return ctx.Err()
			case <-s.runCtx.Done():
				return errors.ErrServerClosed
			}
		}

		conn, err := s.dial(ctx)
		if err != nil {
			lastErr = err

			s.log.Debug("Dial attempt failed", "attempt", attempt, "error", err)

			continue
		}

		if err := s.install(conn); err != nil {
			if stderrors.Is(err, errors.ErrServerClosed) {
				return err
			}

			lastErr = err

			continue
		}

		return nil
	}

	s.setState(StateDisconnected)

	return &errors.ConnectError{Endpoint: s.cfg.Endpoint, Attempts: s.cfg.DialAttempts, Err: lastErr}
}

// connectAsync makes the first background attempt; on failure the socket
// drops into the regular reconnect cadence.
func (s *Socket) connectAsync() {
	conn, err := s.dial(s.runCtx)
	if err == nil {
		if err = s.install(conn); err == nil {
			return
		}
	}

	s.log.Debug("Background dial failed, scheduling retry", "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAborted {
		return
	}

	s.state = StateReconnecting
	s.scheduleRetryLocked()
}

// dial opens one WebSocket connection within the dial timeout.
func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	header := s.cfg.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	if s.cfg.ClientID != "" {
		header.Set("X-Tunnel-Client-Id", s.cfg.ClientID)
	}

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, s.cfg.Endpoint, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http status %d)", s.cfg.Endpoint, err, resp.StatusCode)
		}

		return nil, fmt.Errorf("dial %s: %w", s.cfg.Endpoint, err)
	}

	conn.SetReadLimit(maxFrameSize)

	return conn, nil
}

// install sends the handshake on a fresh connection, flips the socket to
// connected, and starts the read loop. The handshake goes out before the
// state change so it is always the first frame on the wire; sends from
// other goroutines fail fast until the state flips.
func (s *Socket) install(conn *websocket.Conn) error {
	hs, err := wire.NewNotification(wire.MethodHandshake, s.cfg.Handshake)
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake encode failed")

		return err
	}

	if err := s.writeEnvelope(s.runCtx, conn, hs); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "handshake send failed")

		return fmt.Errorf("send handshake: %w", err)
	}

	s.mu.Lock()

	if s.state == StateAborted {
		// Closed while dialing.
		s.mu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "client closing")

		return errors.ErrServerClosed
	}

	s.epoch++
	epoch := s.epoch
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	s.log.Info("Tunnel connected", "endpoint", s.cfg.Endpoint)

	s.notifyConnectionChange(true)

	s.wg.Add(1)

	go s.readLoop(conn, epoch)

	return nil
}

// Send marshals and writes one envelope on the active connection.
func (s *Socket) Send(ctx context.Context, env *wire.Envelope) error {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	fatalErr := s.fatalErr
	s.mu.Unlock()

	if state != StateConnected || conn == nil {
		if fatalErr != nil {
			return fatalErr
		}

		return errors.ErrNotConnected
	}

	return s.writeEnvelope(ctx, conn, env)
}

func (s *Socket) writeEnvelope(ctx context.Context, conn *websocket.Conn, env *wire.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return conn.Write(ctx, websocket.MessageText, data)
}

// readLoop reads frames until the connection drops, then hands off to
// disconnect handling. Malformed frames are logged and dropped.
func (s *Socket) readLoop(conn *websocket.Conn, epoch int) {
	defer s.wg.Done()

	for {
		_, data, err := conn.Read(s.runCtx)
		if err != nil {
			s.handleDisconnect(epoch, err)

			return
		}

		env, perr := wire.Parse(data)
		if perr != nil {
			s.log.Warn("Dropping malformed envelope", "error", perr)

			continue
		}

		s.notifyMessage(env)
	}
}

// handleDisconnect routes a dropped connection either to the reconnect
// cadence or, for fatal close codes, to the terminal aborted state.
func (s *Socket) handleDisconnect(epoch int, err error) {
	code := websocket.CloseStatus(err)

	s.mu.Lock()

	if s.state == StateAborted || epoch != s.epoch {
		// Already closed, or a newer connection took over.
		s.mu.Unlock()

		return
	}

	s.conn = nil

	if code != -1 && wire.CloseCode(code).Fatal() {
		cc := wire.CloseCode(code)
		s.state = StateAborted
		s.fatalErr = &errors.AbortError{Code: int(cc), Reason: cc.Reason()}
		cancel := s.runCancel
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}

		s.log.Warn("Tunnel aborted by server", "code", int(cc), "reason", cc.Reason())

		s.notifyConnectionChange(false)
		s.notifyServerAbort(cc.Reason(), cc)

		return
	}

	s.state = StateReconnecting
	s.scheduleRetryLocked()
	s.mu.Unlock()

	s.log.Info("Tunnel disconnected, will reconnect",
		"interval", s.cfg.ReconnectInterval, "error", err)

	s.notifyConnectionChange(false)
}

// scheduleRetryLocked arms the single reconnect timer. At most one timer
// exists per disconnection; an armed timer is replaced, never stacked.
// Caller must hold s.mu.
func (s *Socket) scheduleRetryLocked() {
	if s.retry != nil {
		s.retry.Stop()
	}

	s.retry = time.AfterFunc(s.cfg.ReconnectInterval, s.retryConnect)
}

// retryConnect runs one reconnect attempt when the timer fires.
func (s *Socket) retryConnect() {
	s.mu.Lock()

	if s.state != StateReconnecting {
		s.mu.Unlock()

		return
	}

	s.retry = nil
	s.mu.Unlock()

	conn, err := s.dial(s.runCtx)
	if err == nil {
		if err = s.install(conn); err == nil {
			return
		}
	}

	s.log.Debug("Reconnect attempt failed", "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReconnecting {
		return
	}

	s.scheduleRetryLocked()
}

// Close aborts the socket. Any pending retry timer is cancelled, the
// active connection is closed with a normal closure, and the socket can
// never be started again. Safe to call multiple times.
func (s *Socket) Close() error {
	s.mu.Lock()

	if s.state == StateAborted {
		s.mu.Unlock()

		return nil
	}

	wasConnected := s.state == StateConnected
	s.state = StateAborted

	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}

	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.log.Debug("Closing tunnel socket")

	if s.runCancel != nil {
		s.runCancel()
	}

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client closing")
	}

	if wasConnected {
		s.notifyConnectionChange(false)
	}

	s.wg.Wait()

	return err
}

// setState updates the state outside of an event path.
func (s *Socket) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAborted {
		s.state = state
	}
}

// snapshotListeners copies the listener slice so callbacks run without
// holding the socket lock; a callback may call Send.
func (s *Socket) snapshotListeners() []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Listener, len(s.listeners))
	copy(out, s.listeners)

	return out
}

func (s *Socket) notifyConnectionChange(connected bool) {
	for _, l := range s.snapshotListeners() {
		l.OnConnectionChange(connected)
	}
}

func (s *Socket) notifyMessage(env *wire.Envelope) {
	for _, l := range s.snapshotListeners() {
		l.OnMessage(env)
	}
}

func (s *Socket) notifyServerAbort(reason string, code wire.CloseCode) {
	for _, l := range s.snapshotListeners() {
		l.OnServerAbort(reason, code)
	}
}
