package observer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"stockyard.ai/internal/observerproto"
	"stockyard.ai/internal/sim/model"
	"stockyard.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	leaveTimeout     = 2 * time.Second

	// A subscriber only reads, so liveness comes from pongs to our pings.
	defaultPongWait = 60 * time.Second
)

var errBadSubscribe = errors.New("expected SUBSCRIBE")

// filter narrows the world's tick entries to what one session asked for.
type filter struct {
	teams map[model.Team]bool
	every uint64
}

func newFilter(sub observerproto.SubscribeMsg) filter {
	f := filter{every: 1}
	if sub.EveryTicks > 1 {
		f.every = uint64(sub.EveryTicks)
	}
	if len(sub.Teams) > 0 {
		f.teams = make(map[model.Team]bool, len(sub.Teams))
		for _, t := range sub.Teams {
			f.teams[model.Team(t)] = true
		}
	}
	return f
}

func (f filter) passthrough() bool { return f.every == 1 && len(f.teams) == 0 }

// apply returns the entry to send for raw, or nil when this tick is skipped.
func (f filter) apply(raw []byte) ([]byte, error) {
	if f.passthrough() {
		return raw, nil
	}
	var e world.TickLogEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	if e.Tick%f.every != 0 {
		return nil, nil
	}
	if f.teams != nil {
		as := e.Assignments[:0]
		for _, a := range e.Assignments {
			if f.teams[a.Team] {
				as = append(as, a)
			}
		}
		e.Assignments = as
		ls := e.Ledger[:0]
		for _, tl := range e.Ledger {
			if f.teams[tl.Team] {
				ls = append(ls, tl)
			}
		}
		e.Ledger = ls
	}
	return json.Marshal(e)
}

func readSubscribe(conn *websocket.Conn) (observerproto.SubscribeMsg, error) {
	var sub observerproto.SubscribeMsg
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, errBadSubscribe
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version || sub.EveryTicks < 0 {
		return sub, errBadSubscribe
	}
	return sub, nil
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// serveSession runs one subscriber: handshake, join the world's fan-out, then
// forward filtered entries until either side goes away.
func (s *Server) serveSession(conn *websocket.Conn, remote string) {
	sub, err := readSubscribe(conn)
	if err != nil {
		if errors.Is(err, errBadSubscribe) {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
		}
		return
	}
	f := newFilter(sub)

	sid := fmt.Sprintf("O%d", s.nextID.Add(1))
	tickOut := make(chan []byte, 8)
	select {
	case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, TickOut: tickOut}:
	default:
		closeWith(conn, websocket.CloseTryAgainLater, "server busy")
		return
	}
	defer func() {
		select {
		case s.world.ObserverLeave() <- sid:
		case <-time.After(leaveTimeout):
			s.logf("observer %s: leave not delivered; world loop not running", sid)
		}
	}()
	s.logf("observer %s connected from %s teams=%v every=%d", sid, remote, sub.Teams, f.every)

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(observerproto.SubscribedMsg{
		Type:            observerproto.TypeSubscribed,
		ProtocolVersion: observerproto.Version,
		SessionID:       sid,
		Teams:           sub.Teams,
		EveryTicks:      int(f.every),
	}); err != nil {
		return
	}

	pongWait := s.pongWait
	pingPeriod := pongWait / 2
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-done:
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case raw := <-tickOut:
				entry, err := f.apply(raw)
				if err != nil {
					s.logf("observer %s: filter: %v", sid, err)
					continue
				}
				if entry == nil {
					continue
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(observerproto.TickMsg{
					Type:            observerproto.TypeTick,
					ProtocolVersion: observerproto.Version,
					Entry:           entry,
				}); err != nil {
					return
				}
			}
		}
	}()

	// The stream is read-only; reads only process pongs and detect
	// disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	closeWith(conn, websocket.CloseNormalClosure, "bye")

	select {
	case <-writerDone:
	case <-time.After(500 * time.Millisecond):
	}
	s.logf("observer %s disconnected", sid)
}
