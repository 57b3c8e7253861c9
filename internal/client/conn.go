package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"cubes2048.io/internal/protocol"
)

// ErrConnectionLost wraps every network failure. Conn.Run reconnects on it.
var ErrConnectionLost = errors.New("connection lost")

type ConnConfig struct {
	URL  string
	ID   string
	Name string

	// ReconnectDelay is the fixed wait between attempts. Default 5s.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	// ReadTimeout bounds the gap between server frames. Default 30s.
	ReadTimeout time.Duration
	// OutboundQueue bounds messages waiting for the writer. Default 64.
	OutboundQueue int

	Dialer *websocket.Dialer
}

// Conn is the background network task of a client. It never blocks the session: inbound
// state is handed over latest-wins and outbound messages are queued with drop-oldest.
type Conn struct {
	cfg ConnConfig
	log *log.Logger

	welcomes chan protocol.WelcomeMsg
	states   chan protocol.GameStateUpdateMsg
	out      chan []byte

	// Only touched by the Run goroutine.
	id    string
	token string

	malformed atomic.Uint64
	dropped   atomic.Uint64
}

func NewConn(cfg ConnConfig, logger *log.Logger) *Conn {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.OutboundQueue <= 0 {
		cfg.OutboundQueue = 64
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Conn{
		cfg:      cfg,
		log:      logger,
		welcomes: make(chan protocol.WelcomeMsg, 1),
		states:   make(chan protocol.GameStateUpdateMsg, 1),
		out:      make(chan []byte, cfg.OutboundQueue),
		id:       cfg.ID,
	}
}

func (c *Conn) Welcomes() <-chan protocol.WelcomeMsg       { return c.welcomes }
func (c *Conn) States() <-chan protocol.GameStateUpdateMsg { return c.states }

// Dropped counts outbound messages discarded because the queue was full.
func (c *Conn) Dropped() uint64 { return c.dropped.Load() }

// Malformed counts inbound frames that failed to decode.
func (c *Conn) Malformed() uint64 { return c.malformed.Load() }

// Send queues m for the writer. It reports false when an older message had to be
// dropped to make room, or m could not be encoded.
func (c *Conn) Send(m protocol.Message) bool {
	b, err := protocol.Encode(m)
	if err != nil {
		c.log.Printf("encode %s: %v", m.MessageType(), err)
		return false
	}
	if offerLatest(c.out, b) {
		return true
	}
	c.dropped.Add(1)
	return false
}

// Run dials, handshakes and pumps messages until ctx is done. Every failure waits
// ReconnectDelay and tries again.
func (c *Conn) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Printf("%v; reconnecting in %s", err, c.cfg.ReconnectDelay)

		t := time.NewTimer(c.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (c *Conn) session(ctx context.Context) error {
	ws, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrConnectionLost, err)
	}
	defer ws.Close()

	welcome, err := c.handshake(ws)
	if err != nil {
		return err
	}
	c.id, c.token = welcome.ID, welcome.ResumeToken
	offerLatest(c.welcomes, welcome)
	c.log.Printf("connected: id=%s", welcome.ID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop(ctx, ws)
		// Unblocks the reader.
		_ = ws.Close()
	}()
	err = c.readLoop(ws)
	cancel()
	wg.Wait()
	return err
}

func (c *Conn) handshake(ws *websocket.Conn) (protocol.WelcomeMsg, error) {
	hello := protocol.PlayerConnectMsg{ID: c.id, Name: c.cfg.Name, ResumeToken: c.token}
	b, err := protocol.Encode(hello)
	if err != nil {
		return protocol.WelcomeMsg{}, err
	}
	_ = ws.SetWriteDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return protocol.WelcomeMsg{}, fmt.Errorf("%w: send player_connect: %v", ErrConnectionLost, err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	_, msg, err := ws.ReadMessage()
	if err != nil {
		return protocol.WelcomeMsg{}, fmt.Errorf("%w: read welcome: %v", ErrConnectionLost, err)
	}
	m, err := protocol.Decode(msg)
	if err != nil {
		return protocol.WelcomeMsg{}, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	w, ok := m.(protocol.WelcomeMsg)
	if !ok {
		return protocol.WelcomeMsg{}, fmt.Errorf("%w: %s: expected welcome, got %s", ErrConnectionLost, protocol.ErrHandshake, m.MessageType())
	}
	return w, nil
}

func (c *Conn) writeLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case b := <-c.out:
			_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) error {
	for {
		_ = ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("%w: read: %v", ErrConnectionLost, err)
		}
		m, err := protocol.Decode(msg)
		if err != nil {
			c.malformed.Add(1)
			continue
		}
		if u, ok := m.(protocol.GameStateUpdateMsg); ok {
			offerLatest(c.states, u)
		}
	}
}

// offerLatest puts v on ch, discarding the oldest queued value when ch is full.
// It reports whether v went in without discarding anything.
func offerLatest[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
	return false
}
