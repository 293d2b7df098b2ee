package game

import (
	"encoding/json"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown     EventType = iota
	EventTypeRoundStart            // fresh flag set created
	EventTypeExit                  // a flag left through the gap
	EventTypeMilestone             // remaining count crossed a threshold
	EventTypeWinner                // round concluded
	EventTypeRoundReset            // timed or manual return to playing
	EventTypeManualReset           // operator forced a reset
	EventTypeFavored               // favored country set or cleared
	EventTypeLeaderboard           // leaderboard edited from outside
)

// EventVersion for backwards compatibility of the log format
const EventVersion uint8 = 1

// Event is the record written to the event log
type Event struct {
	Version   uint8           `json:"version"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"` // Unix nano
	Sequence  uint64          `json:"sequence"`  // Monotonic sequence
	TickNum   uint64          `json:"tickNum"`
	RoundID   string          `json:"roundId"`
	Payload   json.RawMessage `json:"payload"`
}

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeRoundStart:
		return "round_start"
	case EventTypeExit:
		return "exit"
	case EventTypeMilestone:
		return "milestone"
	case EventTypeWinner:
		return "winner"
	case EventTypeRoundReset:
		return "round_reset"
	case EventTypeManualReset:
		return "manual_reset"
	case EventTypeFavored:
		return "favored"
	case EventTypeLeaderboard:
		return "leaderboard"
	default:
		return "unknown"
	}
}

// MarshalText lets event types appear by name in JSON
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes an event type name; unknown names decode as
// EventTypeUnknown so newer servers stay readable
func (t *EventType) UnmarshalText(text []byte) error {
	for c := EventTypeRoundStart; c <= EventTypeLeaderboard; c++ {
		if c.String() == string(text) {
			*t = c
			return nil
		}
	}
	*t = EventTypeUnknown
	return nil
}

// GameEvent is what collaborators (audio, websocket clients, persistence)
// receive after a tick. Fields not relevant to the Type are zero.
type GameEvent struct {
	Type      EventType `json:"type"`
	RoundID   string    `json:"roundId"`
	Round     int       `json:"round"`
	Tick      uint64    `json:"tick"`
	Remaining int       `json:"remaining,omitempty"`

	Country Country `json:"country"`

	// winner only
	Wins            int  `json:"wins,omitempty"`
	Champion        bool `json:"champion,omitempty"`
	Streak          int  `json:"streak,omitempty"`
	StreakMilestone bool `json:"streakMilestone,omitempty"`
}

// Typed payloads for the event log

// RoundStartPayload records the population of a new round
type RoundStartPayload struct {
	Number       int   `json:"number"`
	Participants int   `json:"participants"`
	RNGSeed      int64 `json:"rngSeed"`
}

// ExitPayload records one elimination
type ExitPayload struct {
	Code      string  `json:"code"`
	Remaining int     `json:"remaining"`
	Angle     float64 `json:"angle"`
}

// MilestonePayload records a crossed threshold
type MilestonePayload struct {
	Remaining int `json:"remaining"`
}

// WinnerPayload records a concluded round
type WinnerPayload struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Wins     int    `json:"wins"`
	Champion bool   `json:"champion"`
	Streak   int    `json:"streak"`
	Ticks    uint64 `json:"ticks"`
}

// ResetPayload records why a round was reset
type ResetPayload struct {
	Reason string `json:"reason"`
}

// FavoredPayload records a bias change
type FavoredPayload struct {
	Code string `json:"code"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, tickNum uint64, roundID string, payload interface{}) Event {
	return Event{
		Version:   EventVersion,
		Type:      eventType,
		Timestamp: time.Now().UnixNano(),
		TickNum:   tickNum,
		RoundID:   roundID,
		Payload:   EncodePayload(payload),
	}
}
