// Package streaming defines the wire protocol used to stream a run to a live viewer.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/combatsim/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun   = "start_run"
	TypeEndRun     = "end_run"
	TypeAddUnit    = "add_unit"
	TypeUnitState  = "unit_state"
	TypeEngagement = "engagement"
	TypeStep       = "step"
	TypeAck        = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload announces a run.
type StartRunPayload struct {
	Run *core.Run `json:"run"`
}

// EndRunPayload closes a run with its summary.
type EndRunPayload struct {
	UUID    string       `json:"uuid"`
	Summary core.Summary `json:"summary"`
}
