// Package observer serves the economy tick stream to local dashboards: a
// bootstrap document over HTTP and filtered tick entries over WebSocket. Only
// loopback clients are accepted.
package observer

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"stockyard.ai/internal/observerproto"
	"stockyard.ai/internal/sim/world"
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	pongWait time.Duration
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world:    w,
		log:      logger,
		pongWait: defaultPongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 32 * 1024,
			// Origin is irrelevant once the remote is known to be loopback.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/observer/bootstrap", s.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", s.WSHandler())
}

// BootstrapHandler reports what a dashboard needs before subscribing. It reads
// only the world's published snapshot, never live state.
func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		m := s.world.Metrics()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         s.world.ID(),
			Tick:            s.world.CurrentTick(),
			TickRateHz:      s.world.Tuning().TickRateHz,
			Workers:         m.Workers,
		}
		if cat := s.world.Catalog(); cat != nil {
			for _, k := range cat.Keys() {
				resp.Resources = append(resp.Resources, string(k))
			}
		}
		for _, tl := range m.Ledger {
			resp.Teams = append(resp.Teams, int(tl.Team))
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.serveSession(conn, r.RemoteAddr)
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
