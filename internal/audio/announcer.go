package audio

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"country-marbles/internal/game"
)

// Cue timing
const (
	StreakDelay   = 2000 * time.Millisecond
	ChampionDelay = 500 * time.Millisecond
	ExcitingDelay = 2500 * time.Millisecond
)

// ExcitingClips are the random flourishes that may follow an ordinary win
var ExcitingClips = []string{
	"intense_round",
	"nail_biter",
	"spectacular",
	"unbelievable",
	"amazing",
	"incredible",
}

// Cue is one clip to play, delay after the event
type Cue struct {
	Clip  string
	Delay time.Duration
}

// Sink plays clips; Mixer implements it
type Sink interface {
	Play(clip string, delay time.Duration)
}

// Announcer turns game events into announcer cues
type Announcer struct {
	sink   Sink
	chance float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAnnouncer creates an announcer. chance is the probability of an extra
// exciting clip on a non-champion win. rng may be nil.
func NewAnnouncer(sink Sink, chance float64, rng *rand.Rand) *Announcer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Announcer{sink: sink, chance: chance, rng: rng}
}

// Cues returns the clips an event triggers, in order
func (a *Announcer) Cues(ev game.GameEvent) []Cue {
	switch ev.Type {
	case game.EventTypeMilestone:
		return []Cue{{Clip: fmt.Sprintf("%d_remaining", ev.Remaining)}}

	case game.EventTypeWinner:
		var cues []Cue
		if ev.StreakMilestone {
			cues = append(cues, Cue{Clip: fmt.Sprintf("%d_streak", ev.Streak), Delay: StreakDelay})
		}
		if ev.Champion {
			return append(cues, Cue{Clip: "champion", Delay: ChampionDelay})
		}
		if ev.Country.Code != "" {
			cues = append(cues, Cue{Clip: ev.Country.Code})
		}

		a.mu.Lock()
		roll := a.rng.Float64()
		var pick string
		if roll < a.chance {
			pick = ExcitingClips[a.rng.Intn(len(ExcitingClips))]
		}
		a.mu.Unlock()

		if pick != "" {
			cues = append(cues, Cue{Clip: pick, Delay: ExcitingDelay})
		}
		return cues
	}
	return nil
}

// Handle plays the cues for ev. Suitable as an engine listener.
func (a *Announcer) Handle(ev game.GameEvent) {
	cues := a.Cues(ev)
	if len(cues) == 0 || a.sink == nil {
		return
	}
	for _, c := range cues {
		a.sink.Play(c.Clip, c.Delay)
	}
	if ev.Type == game.EventTypeWinner {
		log.Printf("📢 Announcing %s (%d cues)", ev.Country.Name, len(cues))
	}
}
