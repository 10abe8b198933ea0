package pumpportal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solwatch/pumpbot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeTimeout bounds the websocket dial.
	handshakeTimeout = 15 * time.Second
)

// Feed multiplexes the single PumpPortal data websocket into per-mint trade
// subscriptions. The desired-subscription set, not the wire traffic, is the
// source of truth: Subscribe and Unsubscribe mutate the set and best-effort
// mirror it to the venue, and every reconnect re-derives the subscribe
// command from the full current set because the venue forgets subscriptions
// across connections.
//
// Frames sent while disconnected are queued and flushed in FIFO order when
// the first connection opens; on later reconnects the stale queue is dropped
// in favor of the derived resubscription.
type Feed struct {
	url            string
	reconnectDelay time.Duration
	logger         *slog.Logger

	mu            sync.Mutex
	conn          *websocket.Conn
	desired       map[string]struct{}
	pending       [][]byte
	everConnected bool

	rawHandler func([]byte)

	ticks     chan domain.TradeTick
	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed creates a Feed for the given data websocket URL. reconnectDelay is
// the fixed wait between a connection loss and the next dial attempt.
func NewFeed(url string, reconnectDelay time.Duration, logger *slog.Logger) *Feed {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	return &Feed{
		url:            url,
		reconnectDelay: reconnectDelay,
		logger:         logger.With(slog.String("component", "pumpportal_feed")),
		desired:        make(map[string]struct{}),
		ticks:          make(chan domain.TradeTick, 256),
		done:           make(chan struct{}),
	}
}

// Ticks returns the channel of canonical trade ticks. The channel is never
// closed; consumers should select against their own context.
func (f *Feed) Ticks() <-chan domain.TradeTick {
	return f.ticks
}

// OnRawFrame registers a handler invoked with every inbound frame before
// normalization (used by the frame archiver). Must be called before Run.
func (f *Feed) OnRawFrame(h func([]byte)) {
	f.rawHandler = h
}

// Subscribe adds the given mints to the desired set and requests their trade
// stream. It is idempotent; an empty input is a no-op. If the connection is
// not open the request is retained and applied once it is.
func (f *Feed) Subscribe(mints []string) {
	if len(mints) == 0 {
		return
	}

	f.mu.Lock()
	for _, m := range mints {
		f.desired[m] = struct{}{}
	}
	frame := commandFrame(methodSubscribe, mints)
	f.enqueueOrSendLocked(frame)
	f.mu.Unlock()
}

// Unsubscribe removes the given mints from the desired set and requests the
// venue stop their trade stream. It is idempotent; an empty input is a no-op.
func (f *Feed) Unsubscribe(mints []string) {
	if len(mints) == 0 {
		return
	}

	f.mu.Lock()
	for _, m := range mints {
		delete(f.desired, m)
	}
	frame := commandFrame(methodUnsubscribe, mints)
	f.enqueueOrSendLocked(frame)
	f.mu.Unlock()
}

// Desired returns the current desired subscription set, sorted.
func (f *Feed) Desired() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.desiredKeysLocked()
}

// Run dials the venue and pumps inbound frames until ctx is cancelled or
// Close is called. Connection losses are logged and retried after the fixed
// reconnect delay; they are never surfaced to tick consumers.
func (f *Feed) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		default:
		}

		err := f.runConnection(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("feed disconnected, reconnecting",
			slog.Duration("delay", f.reconnectDelay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return nil
		case <-time.After(f.reconnectDelay):
		}
	}
}

// Close stops the feed and closes the active connection, if any.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
		f.mu.Lock()
		if f.conn != nil {
			_ = f.conn.WriteMessage(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			)
			_ = f.conn.Close()
			f.conn = nil
		}
		f.mu.Unlock()
	})
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// runConnection dials once, replays subscriptions, and reads frames until the
// connection drops. It returns nil only on clean shutdown.
func (f *Feed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("pumpportal/ws: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	f.onOpen(conn)

	connDone := make(chan struct{})
	defer close(connDone)
	go f.pingLoop(conn, connDone)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			f.detach(conn)
			select {
			case <-f.done:
				return nil
			default:
			}
			return fmt.Errorf("pumpportal/ws: read: %w (%w)", err, domain.ErrWSDisconnect)
		}

		if f.rawHandler != nil {
			f.rawHandler(message)
		}

		tick, ok := ParseTick(message)
		if !ok {
			continue // silently drop unrecognized frames
		}

		select {
		case f.ticks <- tick:
		case <-f.done:
			return nil
		case <-ctx.Done():
			f.detach(conn)
			return ctx.Err()
		}
	}
}

// onOpen installs the new connection and replays subscription state. The
// first open flushes the queued frames exactly once in FIFO order; every
// later open discards the stale queue and sends a single subscribe derived
// from the full desired set.
func (f *Feed) onOpen(conn *websocket.Conn) {
	f.mu.Lock()
	f.conn = conn

	var frames [][]byte
	if !f.everConnected {
		f.everConnected = true
		frames = f.pending
		f.pending = nil
	} else {
		f.pending = nil
		if keys := f.desiredKeysLocked(); len(keys) > 0 {
			frames = append(frames, commandFrame(methodSubscribe, keys))
		}
	}

	// Writes stay under f.mu: gorilla permits a single concurrent writer.
	for _, frame := range frames {
		if err := writeFrame(conn, frame); err != nil {
			f.logger.Warn("replay write failed", slog.String("error", err.Error()))
			break
		}
	}
	f.mu.Unlock()
}

// enqueueOrSendLocked sends a frame when connected, otherwise queues it for
// the next open. Caller must hold f.mu. A write failure downgrades to a
// queue append; the subsequent reconnect resubscribes from the desired set.
func (f *Feed) enqueueOrSendLocked(frame []byte) {
	if f.conn == nil {
		f.pending = append(f.pending, frame)
		return
	}
	if err := writeFrame(f.conn, frame); err != nil {
		f.logger.Warn("send failed, queueing", slog.String("error", err.Error()))
		f.pending = append(f.pending, frame)
	}
}

// detach clears the stored connection if it is still the given one.
func (f *Feed) detach(conn *websocket.Conn) {
	f.mu.Lock()
	if f.conn == conn {
		f.conn = nil
	}
	f.mu.Unlock()
}

func (f *Feed) desiredKeysLocked() []string {
	keys := make([]string, 0, len(f.desired))
	for m := range f.desired {
		keys = append(keys, m)
	}
	sort.Strings(keys)
	return keys
}

// pingLoop sends periodic pings to keep the connection alive. It stops when
// the connection's read loop returns or the feed shuts down.
func (f *Feed) pingLoop(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-connDone:
			return
		case <-ticker.C:
			f.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			f.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func commandFrame(method string, keys []string) []byte {
	frame, _ := json.Marshal(WSCommand{Method: method, Keys: keys})
	return frame
}

func writeFrame(conn *websocket.Conn, frame []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}
