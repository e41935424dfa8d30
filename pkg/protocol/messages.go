// Package protocol defines the party synchronization wire protocol: JSON
// text frames with an internal "type" tag, one websocket connection per
// session.
package protocol

import (
	"github.com/apexline/simcore/pkg/core"
)

// Kind discriminates the message union on the wire.
type Kind string

// Message kind constants matching the party sync protocol.
const (
	KindConnect        Kind = "Connect"
	KindUpdate         Kind = "Update"
	KindNewPartyMember Kind = "NewPartyMember"
	KindDisconnect     Kind = "Disconnect"
	KindPing           Kind = "Ping"
	KindPong           Kind = "Pong"
	KindStartRace      Kind = "StartRace"
	KindRaceStarted    Kind = "RaceStarted"
)

// Message is the decoded form of a wire frame. The concrete types below
// are the only implementations.
type Message interface {
	Kind() Kind
}

// Connect registers the session with a server-side party. Sent once per
// connection, immediately after the websocket opens.
type Connect struct {
	UserID  int `json:"user_id"`
	PartyID int `json:"party_id"`
}

func (Connect) Kind() Kind { return KindConnect }

// Update carries a pose broadcast. Outbound periodically; inbound for
// every party member, including a self-echo the client must discard.
type Update struct {
	State core.PlayerState `json:"state"`
}

func (Update) Kind() Kind { return KindUpdate }

// NewPartyMember announces a member joining the party.
type NewPartyMember struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
}

func (NewPartyMember) Kind() Kind { return KindNewPartyMember }

// Disconnect is a voluntary leave notice, valid in both directions.
type Disconnect struct {
	UserID int `json:"user_id"`
}

func (Disconnect) Kind() Kind { return KindDisconnect }

// Ping is a keepalive probe. The receiver must answer with a Pong
// carrying the same timestamp.
type Ping struct {
	Timestamp int64 `json:"timestamp"`
}

func (Ping) Kind() Kind { return KindPing }

// Pong answers a Ping.
type Pong struct {
	Timestamp int64 `json:"timestamp"`
}

func (Pong) Kind() Kind { return KindPong }

// StartRace asks the server to broadcast a race transition to the party.
type StartRace struct{}

func (StartRace) Kind() Kind { return KindStartRace }

// RaceStarted is the server's race transition broadcast.
type RaceStarted struct{}

func (RaceStarted) Kind() Kind { return KindRaceStarted }

// ServerError is an untagged {"error": "..."} object the server sends on
// auth or party-membership rejections. Inbound only.
type ServerError struct {
	Message string `json:"error"`
}

func (ServerError) Kind() Kind { return "" }
