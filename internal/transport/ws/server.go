package ws

import (
	"context"
	"io"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"cubes2048.io/internal/protocol"
	"cubes2048.io/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader

	// Per-connection inbound limit; zero disables it.
	limit rate.Limit
	burst int

	conns       atomic.Int64
	malformed   atomic.Uint64
	rateLimited atomic.Uint64
	handshakes  atomic.Uint64
}

// Stats are transport counters, keyed by protocol error code where one applies.
type Stats struct {
	Connections int64  `json:"connections"`
	Malformed   uint64 `json:"E_MALFORMED_MESSAGE"`
	RateLimited uint64 `json:"E_RATE_LIMIT"`
	Handshake   uint64 `json:"E_HANDSHAKE"`
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	rl := w.Config().Tuning.RateLimits
	if rl.InboundPerSecond > 0 {
		s.limit = rate.Limit(rl.InboundPerSecond)
		s.burst = rl.InboundBurst
		if s.burst <= 0 {
			s.burst = 1
		}
	}
	return s
}

func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.conns.Load(),
		Malformed:   s.malformed.Load(),
		RateLimited: s.rateLimited.Load(),
		Handshake:   s.handshakes.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == "" {
			s.handshakes.Add(1)
			return
		}
		s.conns.Add(1)
		defer s.conns.Add(-1)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close()
						return
					}
				}
			}
		}()

		var limiter *rate.Limiter
		if s.limit > 0 {
			limiter = rate.NewLimiter(s.limit, s.burst)
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if limiter != nil && !limiter.Allow() {
				s.rateLimited.Add(1)
				continue
			}
			m, err := protocol.Decode(msg)
			if err != nil {
				if s.malformed.Add(1)%100 == 1 {
					s.log.Printf("%s: player=%s: %v", protocol.ErrMalformedMessage, playerID, err)
				}
				continue
			}
			switch m.(type) {
			case protocol.PlayerStateMsg, protocol.CollectCubeMsg, protocol.PlayerDeathMsg:
			default:
				continue
			}
			select {
			case s.world.Inbox() <- world.Inbound{PlayerID: playerID, Msg: m}:
			case <-ctx.Done():
			}
		}

		// Cleanup.
		s.world.Leave() <- world.LeaveRequest{PlayerID: playerID, Out: out}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	m, err := protocol.Decode(msg)
	connect, ok := m.(protocol.PlayerConnectMsg)
	if err != nil || !ok {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected player_connect"), time.Now().Add(time.Second))
		return "", nil
	}

	// Latest-wins: a slow client only ever misses intermediate snapshots.
	out = make(chan []byte, 1)
	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{Connect: connect, Out: out, Resp: respCh}
	resp := <-respCh

	if err := writeMessage(conn, resp.Welcome); err != nil {
		s.world.Leave() <- world.LeaveRequest{PlayerID: resp.Welcome.ID, Out: out}
		return "", nil
	}
	if resp.Resumed {
		s.log.Printf("resumed: player=%s", resp.Welcome.ID)
	}
	return resp.Welcome.ID, out
}

func writeMessage(conn *websocket.Conn, m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
