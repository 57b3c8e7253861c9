package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"cubes2048.io/internal/sim/arena"
	"cubes2048.io/internal/sim/world"
	"cubes2048.io/internal/transport/observer"
	"cubes2048.io/internal/transport/ws"
)

type handlerConfig struct {
	WorldID         string
	EnableAdminHTTP bool
	EnablePprofHTTP bool
}

func newMux(cfg handlerConfig, w *world.World, wsSrv *ws.Server, idx runtimeIndex, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(cfg.WorldID, w, wsSrv, idx))

	if cfg.EnableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			m := w.Metrics()
			resp := struct {
				WorldID     string                   `json:"world_id"`
				Tick        uint64                   `json:"tick"`
				Leaderboard []arena.LeaderboardEntry `json:"leaderboard"`
				Metrics     world.WorldMetrics       `json:"metrics"`
				Transport   ws.Stats                 `json:"transport"`
			}{
				WorldID:     cfg.WorldID,
				Tick:        w.CurrentTick(),
				Leaderboard: m.Leaderboard,
				Metrics:     m,
				Transport:   wsSrv.Stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/dump", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			tick, err := w.RequestDump(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
		})

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (CUBES_ENABLE_ADMIN_HTTP=false)")
	}
	if cfg.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (CUBES_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

func metricsHandler(worldID string, w *world.World, wsSrv *ws.Server, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		gauge := func(name, help string) {
			fmt.Fprintf(rw, "# HELP cubes_%s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE cubes_%s gauge\n", name)
		}
		counter := func(name, help string) {
			fmt.Fprintf(rw, "# HELP cubes_%s %s\n", name, help)
			fmt.Fprintf(rw, "# TYPE cubes_%s counter\n", name)
		}

		gauge("world_tick", "Current arena tick.")
		fmt.Fprintf(rw, "cubes_world_tick{world=%q} %d\n", worldID, tick)

		gauge("world_players", "Players by kind.")
		fmt.Fprintf(rw, "cubes_world_players{world=%q,kind=%q} %d\n", worldID, "human", m.Players)
		fmt.Fprintf(rw, "cubes_world_players{world=%q,kind=%q} %d\n", worldID, "bot", m.Bots)

		gauge("world_clients", "Current number of connected clients.")
		fmt.Fprintf(rw, "cubes_world_clients{world=%q} %d\n", worldID, m.Clients)

		gauge("world_observers", "Current number of attached observers.")
		fmt.Fprintf(rw, "cubes_world_observers{world=%q} %d\n", worldID, m.Observers)

		gauge("world_alive_snakes", "Alive snakes.")
		fmt.Fprintf(rw, "cubes_world_alive_snakes{world=%q} %d\n", worldID, m.AliveSnakes)

		gauge("world_cubes", "Collectible cubes on the floor.")
		fmt.Fprintf(rw, "cubes_world_cubes{world=%q} %d\n", worldID, m.Cubes)

		gauge("world_queue_depth", "Channel backlog depth.")
		fmt.Fprintf(rw, "cubes_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "cubes_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "cubes_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "leave", m.QueueDepths.Leave)

		gauge("world_step_ms", "Last tick step duration in milliseconds.")
		fmt.Fprintf(rw, "cubes_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

		counter("world_events_total", "Arena events since start.")
		for _, e := range []struct {
			name string
			v    uint64
		}{
			{"inbound", m.InboundTotal},
			{"deaths", m.DeathsTotal},
			{"transfers", m.TransfersTotal},
			{"collections", m.CollectionsTotal},
			{"reaped", m.ReapedTotal},
			{"observer_drops", m.ObserverDropsTotal},
		} {
			fmt.Fprintf(rw, "cubes_world_events_total{world=%q,event=%q} %d\n", worldID, e.name, e.v)
		}

		ts := wsSrv.Stats()
		counter("protocol_errors_total", "Dropped or flagged messages by error code.")
		for _, e := range []struct {
			code string
			v    uint64
		}{
			{"E_MALFORMED_MESSAGE", ts.Malformed},
			{"E_RATE_LIMIT", ts.RateLimited},
			{"E_HANDSHAKE", ts.Handshake},
			{"E_STALE_STATE", m.StaleStateTotal},
			{"E_STATE_DESYNC", m.DesyncTotal},
		} {
			fmt.Fprintf(rw, "cubes_protocol_errors_total{world=%q,code=%q} %d\n", worldID, e.code, e.v)
		}

		if idx != nil {
			s := idx.Stats()
			gauge("index_queue_depth", "Current index writer queue depth.")
			fmt.Fprintf(rw, "cubes_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)
			counter("index_dropped_total", "Index writes dropped because the queue was full.")
			fmt.Fprintf(rw, "cubes_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", s.DropTickTotal)
			fmt.Fprintf(rw, "cubes_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "dump", s.DropDumpTotal)
		}
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
