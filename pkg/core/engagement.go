// pkg/core/engagement.go
package core

import (
	"fmt"
	"strings"
	"time"
)

// EngagementResult is the outcome of an engagement from the attacker's side.
type EngagementResult uint8

const (
	Victory EngagementResult = iota
	Defeat
	Stalemate
)

func (r EngagementResult) String() string {
	switch r {
	case Victory:
		return "victory"
	case Defeat:
		return "defeat"
	case Stalemate:
		return "stalemate"
	default:
		return fmt.Sprintf("engagement_result(%d)", uint8(r))
	}
}

// MarshalText encodes the result as its lower-case name.
func (r EngagementResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a result name.
func (r *EngagementResult) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "victory":
		*r = Victory
	case "defeat":
		*r = Defeat
	case "stalemate":
		*r = Stalemate
	default:
		return fmt.Errorf("unknown engagement result %q", text)
	}
	return nil
}

// Decisive reports whether the result destroyed at least one participant.
func (r EngagementResult) Decisive() bool {
	return r != Stalemate
}

// Engagement records one resolved attacker-vs-defender exchange.
// The losses are the raw computed damage, not capped by remaining strength.
// MutualKill marks exchanges where both sides reached zero; Result is still
// Victory in that case.
type Engagement struct {
	AttackerID   uint64           `json:"attackerId"`
	DefenderID   uint64           `json:"defenderId"`
	AttackerType UnitType         `json:"attackerType"`
	DefenderType UnitType         `json:"defenderType"`
	Result       EngagementResult `json:"result"`
	AttackerLoss float64          `json:"attackerLoss"`
	DefenderLoss float64          `json:"defenderLoss"`
	Multiplier   float64          `json:"multiplier"`
	MutualKill   bool             `json:"mutualKill"`
	Step         int              `json:"step"`
	Timestamp    time.Time        `json:"timestamp"`
}
