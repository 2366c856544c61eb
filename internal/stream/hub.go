// Package stream maintains the client connection to the upstream rates
// socket: symbol subscriptions fan inbound price updates out to in-process
// handlers, and alert triggers fan out to the socket and local listeners.
package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/observability"
)

// HubState is the connection lifecycle state.
type HubState string

const (
	StateDisconnected HubState = "disconnected"
	StateConnecting   HubState = "connecting"
	StateConnected    HubState = "connected"
)

// String returns the string representation of HubState.
func (s HubState) String() string {
	return string(s)
}

const (
	defaultBaseBackoff  = 1 * time.Second
	defaultMaxAttempts  = 5
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// UpdateHandler receives rate updates for a subscribed symbol. Handlers run
// on the hub's read goroutine; a slow handler delays later updates.
type UpdateHandler func(domain.RateUpdate)

// TriggerHandler receives alert trigger events published through the hub.
type TriggerHandler func(domain.TriggerEvent)

// HubOptions contains configuration for creating a Hub.
type HubOptions struct {
	URL          string
	Dialer       *websocket.Dialer
	BaseBackoff  time.Duration // linear backoff unit, default 1s
	MaxAttempts  int           // consecutive dial failures before giving up, default 5
	WriteTimeout time.Duration // default 10s
	PingInterval time.Duration // default 30s
	Logger       zerolog.Logger
}

// Hub manages one connection to the upstream rates socket. It connects
// lazily on the first subscription, resubscribes tracked symbols after a
// reconnect, and retries failed dials with linear backoff until the
// attempt budget runs out. A fresh Subscribe revives a spent budget.
// Disconnect is terminal.
type Hub struct {
	url          string
	dialer       *websocket.Dialer
	baseBackoff  time.Duration
	maxAttempts  int
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       zerolog.Logger

	mu              sync.Mutex
	state           HubState
	conn            *websocket.Conn
	handlers        map[string]map[int]UpdateHandler // symbol -> handler id -> fn
	triggerHandlers map[int]TriggerHandler
	nextID          int
	attempts        int // consecutive failed dials
	gen             int // connection generation, guards stale loops
	closed          bool

	// writeMu serializes all writes to the connection.
	writeMu sync.Mutex

	done chan struct{}
}

// NewHub creates a hub. No connection is made until the first Subscribe.
func NewHub(opts HubOptions) *Hub {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}

	baseBackoff := opts.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = defaultBaseBackoff
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	pingInterval := opts.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	return &Hub{
		url:             opts.URL,
		dialer:          dialer,
		baseBackoff:     baseBackoff,
		maxAttempts:     maxAttempts,
		writeTimeout:    writeTimeout,
		pingInterval:    pingInterval,
		logger:          opts.Logger.With().Str("component", "hub").Logger(),
		state:           StateDisconnected,
		handlers:        make(map[string]map[int]UpdateHandler),
		triggerHandlers: make(map[int]TriggerHandler),
		done:            make(chan struct{}),
	}
}

// State returns the current connection state.
func (h *Hub) State() HubState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Tracked returns the symbols with at least one registered handler, sorted.
func (h *Hub) Tracked() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trackedLocked()
}

// Subscribe registers a handler for a symbol's updates and returns its
// removal closure. The first handler for a symbol starts tracking it; the
// first subscription on a disconnected hub starts the connection. The
// closure is idempotent. Subscribing on a closed hub is inert.
func (h *Hub) Subscribe(symbol string, handler UpdateHandler) func() {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || handler == nil {
		return func() {}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return func() {}
	}

	id := h.nextID
	h.nextID++

	byID := h.handlers[symbol]
	newSymbol := len(byID) == 0
	if byID == nil {
		byID = make(map[int]UpdateHandler)
		h.handlers[symbol] = byID
	}
	byID[id] = handler

	// Fresh interest revives a spent reconnect budget.
	h.attempts = 0

	var conn *websocket.Conn
	var tracked []string
	switch h.state {
	case StateConnected:
		if newSymbol {
			conn = h.conn
			tracked = h.trackedLocked()
		}
	case StateDisconnected:
		h.state = StateConnecting
		h.gen++
		go h.connectLoop(h.gen)
	}
	total := h.handlerCountLocked()
	h.mu.Unlock()

	observability.SetActiveSubscriptions(total)

	if conn != nil {
		h.sendSymbols(conn, typeSubscribe, tracked)
	}

	return func() { h.unsubscribe(symbol, id) }
}

// unsubscribe removes one handler. Dropping the last handler for a symbol
// stops tracking it and tells the upstream.
func (h *Hub) unsubscribe(symbol string, id int) {
	h.mu.Lock()
	byID, ok := h.handlers[symbol]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := byID[id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(byID, id)

	var conn *websocket.Conn
	if len(byID) == 0 {
		delete(h.handlers, symbol)
		if h.state == StateConnected {
			conn = h.conn
		}
	}
	total := h.handlerCountLocked()
	h.mu.Unlock()

	observability.SetActiveSubscriptions(total)

	if conn != nil {
		h.sendSymbols(conn, typeUnsubscribe, []string{symbol})
	}
}

// OnTrigger registers a handler for published trigger events and returns
// its removal closure.
func (h *Hub) OnTrigger(fn TriggerHandler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || fn == nil {
		return func() {}
	}

	id := h.nextID
	h.nextID++
	h.triggerHandlers[id] = fn

	return func() {
		h.mu.Lock()
		delete(h.triggerHandlers, id)
		h.mu.Unlock()
	}
}

// PublishTrigger fans a trigger event out to local handlers and, when
// connected, pushes it to the upstream socket. A hub without a connection
// still delivers locally and reports success.
func (h *Hub) PublishTrigger(ctx context.Context, event domain.TriggerEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := encodeAlertTriggered(event)
	if err != nil {
		return fmt.Errorf("encode trigger: %w", err)
	}

	h.mu.Lock()
	var conn *websocket.Conn
	if h.state == StateConnected {
		conn = h.conn
	}
	fns := make([]TriggerHandler, 0, len(h.triggerHandlers))
	for _, fn := range h.triggerHandlers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}

	if conn == nil {
		return nil
	}
	if err := h.write(conn, payload); err != nil {
		return fmt.Errorf("publish trigger: %w", err)
	}
	return nil
}

// Disconnect permanently closes the hub. A closed hub never reconnects and
// later subscriptions are inert.
func (h *Hub) Disconnect() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.state = StateDisconnected
	h.gen++
	conn := h.conn
	h.conn = nil
	h.handlers = make(map[string]map[int]UpdateHandler)
	h.triggerHandlers = make(map[int]TriggerHandler)
	h.mu.Unlock()

	close(h.done)
	observability.SetActiveSubscriptions(0)

	if conn != nil {
		h.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		h.writeMu.Unlock()
		conn.Close()
	}

	h.logger.Info().Msg("hub closed")
}

// connectLoop dials until connected, the budget runs out, or the hub is
// superseded. After a successful connection it owns the read loop and
// resumes dialing when the connection drops with handlers still attached.
func (h *Hub) connectLoop(gen int) {
	for {
		h.mu.Lock()
		if h.closed || h.gen != gen || h.state != StateConnecting {
			h.mu.Unlock()
			return
		}
		if h.attempts >= h.maxAttempts {
			h.state = StateDisconnected
			h.mu.Unlock()
			h.logger.Error().Int("attempts", h.maxAttempts).Msg("connection attempts exhausted")
			return
		}
		attempt := h.attempts
		h.mu.Unlock()

		if attempt > 0 {
			select {
			case <-h.done:
				return
			case <-time.After(h.baseBackoff * time.Duration(attempt)):
			}
		}

		conn, _, err := h.dialer.Dial(h.url, nil)
		if err != nil {
			h.mu.Lock()
			if h.closed || h.gen != gen {
				h.mu.Unlock()
				return
			}
			h.attempts++
			attempt = h.attempts
			h.mu.Unlock()
			h.logger.Warn().Err(err).Int("attempt", attempt).Msg("connect failed")
			continue
		}

		h.mu.Lock()
		if h.closed || h.gen != gen {
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.conn = conn
		h.state = StateConnected
		h.attempts = 0
		tracked := h.trackedLocked()
		h.mu.Unlock()

		observability.RecordHubConnect()
		h.logger.Info().Str("url", h.url).Strs("symbols", tracked).Msg("connected")

		if len(tracked) > 0 {
			h.sendSymbols(conn, typeSubscribe, tracked)
		}

		stopPing := make(chan struct{})
		go h.pingLoop(conn, stopPing)
		h.readLoop(conn, gen)
		close(stopPing)

		h.mu.Lock()
		if h.closed || h.gen != gen {
			h.mu.Unlock()
			return
		}
		h.conn = nil
		if len(h.handlers) == 0 {
			h.state = StateDisconnected
			h.mu.Unlock()
			return
		}
		h.state = StateConnecting
		h.mu.Unlock()

		observability.RecordHubReconnect()
		h.logger.Warn().Msg("connection lost, reconnecting")
	}
}

// readLoop dispatches inbound frames until the connection dies.
func (h *Hub) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.mu.Lock()
			stale := h.closed || h.gen != gen
			h.mu.Unlock()
			if !stale {
				h.logger.Debug().Err(err).Msg("read failed")
			}
			conn.Close()
			return
		}
		h.dispatch(data)
	}
}

// dispatch fans one rate update out to its symbol's handlers. Frames that
// are not well-formed rate updates are dropped without error noise.
func (h *Hub) dispatch(data []byte) {
	update, ok := decodeRateUpdate(data)
	if !ok {
		observability.RecordHubMessageDropped()
		h.logger.Debug().Msg("dropped unrecognized frame")
		return
	}

	h.mu.Lock()
	byID := h.handlers[update.Symbol]
	fns := make([]UpdateHandler, 0, len(byID))
	for _, fn := range byID {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(update)
	}
	if len(fns) > 0 {
		observability.RecordHubUpdateDispatched()
	}
}

// pingLoop keeps the connection alive; a failed ping kills it so the read
// loop notices.
func (h *Hub) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			h.writeMu.Unlock()
			if err != nil {
				conn.Close()
				return
			}
		}
	}
}

// sendSymbols writes a subscription change frame, best-effort.
func (h *Hub) sendSymbols(conn *websocket.Conn, msgType string, symbols []string) {
	var payload []byte
	var err error
	if msgType == typeSubscribe {
		payload, err = encodeSubscribe(symbols)
	} else {
		payload, err = encodeUnsubscribe(symbols)
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode subscription change")
		return
	}

	if err := h.write(conn, payload); err != nil {
		h.logger.Warn().Err(err).Str("type", msgType).Msg("failed to send subscription change")
	}
}

func (h *Hub) write(conn *websocket.Conn, payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// trackedLocked lists tracked symbols sorted for stable frames. Callers
// hold h.mu.
func (h *Hub) trackedLocked() []string {
	symbols := make([]string, 0, len(h.handlers))
	for symbol := range h.handlers {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// handlerCountLocked counts registered update handlers. Callers hold h.mu.
func (h *Hub) handlerCountLocked() int {
	n := 0
	for _, byID := range h.handlers {
		n += len(byID)
	}
	return n
}
