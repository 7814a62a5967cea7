// Package observerproto defines the read-only observer stream messages.
package observerproto

import "encoding/json"

const Version = "1"

const (
	TypeSubscribe  = "SUBSCRIBE"
	TypeSubscribed = "SUBSCRIBED"
	TypeTick       = "TICK"
)

// SubscribeMsg must be the first message a client sends on the stream.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Teams limits ledger rows and assignments to these teams; empty means all.
	Teams []int `json:"teams,omitempty"`
	// EveryTicks sends one entry per N ticks. Ledger rows are totals, so a
	// decimated stream still shows current stock.
	EveryTicks int `json:"every_ticks,omitempty"`
}

type SubscribedMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Teams           []int  `json:"teams,omitempty"`
	EveryTicks      int    `json:"every_ticks"`
}

// BootstrapResponse answers GET /v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	WorldID         string   `json:"world_id"`
	Tick            uint64   `json:"tick"`
	TickRateHz      int      `json:"tick_rate_hz"`
	Resources       []string `json:"resources,omitempty"`
	Teams           []int    `json:"teams,omitempty"`
	Workers         int      `json:"workers"`
}

// TickMsg carries one world tick log entry, filtered for the session.
type TickMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Entry           json.RawMessage `json:"entry"`
}
