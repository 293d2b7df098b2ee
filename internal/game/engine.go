package game

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EngineConfig configures the frame driver
type EngineConfig struct {
	TickRate int // ticks per second when driven by Start
	Sim      SimConfig
	Limits   ResourceLimits
	Seed     int64            // 0 picks a time-based seed
	Clock    func() time.Time // nil uses time.Now
}

// EventListener receives events after the tick that produced them.
// Listeners run on the tick goroutine and must not block.
type EventListener func(GameEvent)

// TickStats is reported after every tick for metrics
type TickStats struct {
	Duration  time.Duration
	Tick      uint64
	Phase     Phase
	Active    int
	Remaining int
	Exits     int
	Contacts  int
}

// Engine is the frame driver. Every mutation of flags, ring and round state
// happens inside Step (or an engine method holding the same lock), so no
// collaborator ever sees a partial tick.
type Engine struct {
	mu sync.RWMutex

	cfg          SimConfig
	participants []Country
	flags        []*Flag
	ring         Ring
	round        *Round
	leaderboard  *Leaderboard
	favored      string
	exitSeq      int

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	clock    func() time.Time

	tickCount       uint64
	roundStartTick  uint64
	roundsCompleted int

	listeners []EventListener
	pending   []GameEvent
	onTick    func(TickStats)

	limits       ResourceLimits
	snapshotPool *SnapshotPool
	eventLog     *EventLog

	rng     *rand.Rand
	rngSeed int64
}

// NewEngine validates the simulation config and creates an idle engine.
// Call SetParticipants and StartRound before ticking.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Sim.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if cfg.TickRate <= 0 {
		return nil, fmt.Errorf("engine config: tick rate must be positive, got %d", cfg.TickRate)
	}

	limits := cfg.Limits
	if limits.MaxParticipants <= 0 {
		limits.MaxParticipants = DefaultLimits.MaxParticipants
	}
	if limits.MaxLeaderboard <= 0 {
		limits.MaxLeaderboard = DefaultLimits.MaxLeaderboard
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		cfg:          cfg.Sim,
		ring:         NewRing(cfg.Sim.Ring),
		round:        NewRound(cfg.Sim.Round),
		leaderboard:  NewLeaderboard(),
		flags:        make([]*Flag, 0, limits.MaxParticipants),
		tickRate:     cfg.TickRate,
		clock:        clock,
		limits:       limits,
		snapshotPool: NewSnapshotPool(limits),
		eventLog:     NewEventLog(),
		rng:          rand.New(rand.NewSource(seed)),
		rngSeed:      seed,
	}, nil
}

// SetParticipants defines the population of every subsequent round
func (e *Engine) SetParticipants(countries []Country) error {
	if len(countries) == 0 {
		return ErrNoParticipants
	}
	if len(countries) > e.limits.MaxParticipants {
		return fmt.Errorf("%d participants exceeds limit %d", len(countries), e.limits.MaxParticipants)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.participants = append([]Country(nil), countries...)
	return nil
}

// StartRound creates a fresh flag set and enters the playing phase
func (e *Engine) StartRound() error {
	e.mu.Lock()
	if len(e.participants) == 0 {
		e.mu.Unlock()
		return ErrNoParticipants
	}
	if err := e.cfg.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.resetLocked(e.clock(), "start")
	e.produceSnapshot()
	events := e.drainLocked()
	e.mu.Unlock()

	e.dispatch(events)
	return nil
}

// Start begins the fixed-rate game loop
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.ticker = time.NewTicker(time.Second / time.Duration(e.tickRate))
	ticker, stop := e.ticker, e.stopChan
	e.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				e.Step(e.clock())
			case <-stop:
				return
			}
		}
	}()

	log.Printf("🎮 Game engine started at %d TPS", e.tickRate)
}

// Stop stops the game loop
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.running = false
	if e.ticker != nil {
		e.ticker.Stop()
	}
	close(e.stopChan)
	log.Println("🛑 Game engine stopped")
}

// Subscribe registers a listener for game events
func (e *Engine) Subscribe(fn EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// OnTick registers a per-tick stats observer (one at a time)
func (e *Engine) OnTick(fn func(TickStats)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTick = fn
}

// Step runs exactly one tick at wall-clock time now and then delivers the
// events it produced. Start calls it from the ticker; tests call it directly.
func (e *Engine) Step(now time.Time) {
	begin := time.Now()

	e.mu.Lock()
	stats := e.tick(now)
	e.produceSnapshot()
	events := e.drainLocked()
	onTick := e.onTick
	e.mu.Unlock()

	e.dispatch(events)

	if onTick != nil {
		stats.Duration = time.Since(begin)
		onTick(stats)
	}
}

// tick advances the simulation. Caller holds e.mu.
func (e *Engine) tick(now time.Time) TickStats {
	e.tickCount++
	stats := TickStats{Tick: e.tickCount}

	if len(e.flags) == 0 {
		stats.Phase = e.round.Phase
		return stats
	}

	if e.round.Phase != PhasePlaying {
		if e.round.Pending().Due(now) {
			e.resetLocked(now, "timer")
		}
		stats.Phase = e.round.Phase
		stats.Remaining = e.round.Remaining()
		return stats
	}

	e.ring.Advance()

	remaining := e.round.Remaining()
	for _, f := range e.flags {
		if !UpdateFlag(f, e.ring, e.cfg, e.favored) {
			continue
		}
		e.exitSeq++
		f.ExitSeq = e.exitSeq
		remaining--
		stats.Exits++

		e.emit(GameEvent{Type: EventTypeExit, Remaining: remaining, Country: Country{Code: f.Code, Name: f.Name}})
		e.eventLog.EmitSimple(EventTypeExit, e.tickCount, e.round.ID, ExitPayload{
			Code:      f.Code,
			Remaining: remaining,
			Angle:     NormalizeAngle(math.Atan2(f.Y-e.ring.CenterY, f.X-e.ring.CenterX)),
		})
	}

	stats.Contacts = ResolveCollisions(e.flags)
	ContainActive(e.flags, e.ring, e.cfg.Physics)

	milestones, result := e.round.Evaluate(e.flags, e.leaderboard, now)
	for _, m := range milestones {
		log.Printf("📣 %d countries remaining", m)
		e.emit(GameEvent{Type: EventTypeMilestone, Remaining: m})
		e.eventLog.EmitSimple(EventTypeMilestone, e.tickCount, e.round.ID, MilestonePayload{Remaining: m})
	}
	if result != nil {
		e.concludeLocked(result)
	}

	stats.Phase = e.round.Phase
	stats.Remaining = e.round.Remaining()
	for _, f := range e.flags {
		if f.IsActive() {
			stats.Active++
		}
	}
	return stats
}

func (e *Engine) concludeLocked(res *WinnerResult) {
	e.roundsCompleted++
	w := res.Flag

	if res.Champion {
		log.Printf("👑 CHAMPION: %s (%s) reached %d wins", w.Name, w.Code, res.Wins)
	} else {
		log.Printf("🏆 %s (%s) wins round %d (wins: %d, streak: %d)", w.Name, w.Code, e.round.Number, res.Wins, res.Streak)
	}

	e.emit(GameEvent{
		Type:            EventTypeWinner,
		Remaining:       e.round.Remaining(),
		Country:         Country{Code: w.Code, Name: w.Name},
		Wins:            res.Wins,
		Champion:        res.Champion,
		Streak:          res.Streak,
		StreakMilestone: res.StreakMilestone,
	})
	e.eventLog.EmitSimple(EventTypeWinner, e.tickCount, e.round.ID, WinnerPayload{
		Code:     w.Code,
		Name:     w.Name,
		Wins:     res.Wins,
		Champion: res.Champion,
		Streak:   res.Streak,
		Ticks:    e.tickCount - e.roundStartTick,
	})
}

// ManualReset forces an immediate return to playing with a fresh flag set,
// canceling any pending timed reset.
func (e *Engine) ManualReset(reason string) error {
	if reason == "" {
		reason = "manual"
	}

	e.mu.Lock()
	if len(e.participants) == 0 {
		e.mu.Unlock()
		return ErrNoParticipants
	}
	e.round.Cancel()
	e.eventLog.EmitSimple(EventTypeManualReset, e.tickCount, e.round.ID, ResetPayload{Reason: reason})
	e.resetLocked(e.clock(), reason)
	e.produceSnapshot()
	events := e.drainLocked()
	e.mu.Unlock()

	log.Printf("🔄 Round reset (%s)", reason)
	e.dispatch(events)
	return nil
}

// resetLocked creates a fresh flag set. Streaks and the leaderboard survive.
func (e *Engine) resetLocked(now time.Time, reason string) {
	// reseed per round so a spawn can be replayed from the logged seed
	e.rngSeed = e.rng.Int63()
	e.rng.Seed(e.rngSeed)

	e.ring.Reset()
	e.exitSeq = 0
	e.spawnFlagsLocked()

	e.round.Begin(uuid.NewString(), len(e.flags), now)
	e.roundStartTick = e.tickCount

	e.emit(GameEvent{Type: EventTypeRoundReset, Remaining: len(e.flags)})
	e.eventLog.EmitSimple(EventTypeRoundStart, e.tickCount, e.round.ID, RoundStartPayload{
		Number:       e.round.Number,
		Participants: len(e.flags),
		RNGSeed:      e.rngSeed,
	})
	if reason == "timer" {
		e.eventLog.EmitSimple(EventTypeRoundReset, e.tickCount, e.round.ID, ResetPayload{Reason: reason})
	}
}

// spawnFlagsLocked places one flag per participant at a random point inside
// the ring with a random heading at nominal speed.
func (e *Engine) spawnFlagsLocked() {
	rc := e.cfg.Round
	minDist := rc.SpawnMinDistance
	span := e.cfg.Ring.Radius - rc.SpawnEdgeMargin - minDist
	if maxSpan := e.ring.BoundaryDistance(e.cfg.Flag.Radius) - e.cfg.Physics.WallInset - minDist; span > maxSpan {
		span = maxSpan
	}
	if span < 0 {
		span = 0
	}

	e.flags = e.flags[:0]
	for _, c := range e.participants {
		angle := e.rng.Float64() * TwoPi
		dist := minDist + e.rng.Float64()*span
		x := e.ring.CenterX + math.Cos(angle)*dist
		y := e.ring.CenterY + math.Sin(angle)*dist
		e.flags = append(e.flags, NewFlag(c, x, y, e.rng.Float64()*TwoPi, e.cfg))
	}
}

// SetFavored sets the country whose exits are subtly discouraged. Empty
// clears it. Read by the next tick.
func (e *Engine) SetFavored(code string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.favored == code {
		return
	}
	e.favored = code
	e.eventLog.EmitSimple(EventTypeFavored, e.tickCount, e.round.ID, FavoredPayload{Code: code})
}

// Favored returns the favored country code ("" if none)
func (e *Engine) Favored() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.favored
}

// Leaderboard returns the win table (safe for concurrent use)
func (e *Engine) Leaderboard() *Leaderboard {
	return e.leaderboard
}

// LeaderboardChanged records an external edit of the leaderboard in the log
func (e *Engine) LeaderboardChanged(action string) {
	e.mu.RLock()
	tick, roundID := e.tickCount, e.round.ID
	e.mu.RUnlock()
	e.eventLog.EmitSimple(EventTypeLeaderboard, tick, roundID, ResetPayload{Reason: action})
}

// Participants returns a copy of the participant list
func (e *Engine) Participants() []Country {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Country(nil), e.participants...)
}

// EngineStats summarizes the engine for the admin API
type EngineStats struct {
	Tick            uint64 `json:"tick"`
	RoundNumber     int    `json:"roundNumber"`
	RoundID         string `json:"roundId"`
	RoundsCompleted int    `json:"roundsCompleted"`
	Participants    int    `json:"participants"`
	Remaining       int    `json:"remaining"`
	Phase           Phase  `json:"phase"`
	Streak          int    `json:"streak"`
	StreakHolder    string `json:"streakHolder"`
	Favored         string `json:"favored"`
}

// Stats returns current counters
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	streak := e.round.Streak()
	return EngineStats{
		Tick:            e.tickCount,
		RoundNumber:     e.round.Number,
		RoundID:         e.round.ID,
		RoundsCompleted: e.roundsCompleted,
		Participants:    len(e.participants),
		Remaining:       e.round.Remaining(),
		Phase:           e.round.Phase,
		Streak:          streak.Consecutive,
		StreakHolder:    streak.LastWinner,
		Favored:         e.favored,
	}
}

// Config returns the simulation config in use
func (e *Engine) Config() SimConfig {
	return e.cfg
}

// GetLimits returns the current resource limits
func (e *Engine) GetLimits() ResourceLimits {
	return e.limits
}

// emit queues an event for delivery after the tick. Caller holds e.mu.
func (e *Engine) emit(ev GameEvent) {
	ev.RoundID = e.round.ID
	ev.Round = e.round.Number
	ev.Tick = e.tickCount
	e.pending = append(e.pending, ev)
}

// drainLocked hands off queued events and the current listener set
func (e *Engine) drainLocked() []GameEvent {
	if len(e.pending) == 0 {
		return nil
	}
	out := e.pending
	e.pending = nil
	return out
}

func (e *Engine) dispatch(events []GameEvent) {
	if len(events) == 0 {
		return
	}
	e.mu.RLock()
	listeners := append([]EventListener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range listeners {
			fn(ev)
		}
	}
}

// GetSnapshot returns the latest immutable snapshot for lock-free reading
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// produceSnapshot copies the current state into the next snapshot slot.
// Caller holds e.mu.
func (e *Engine) produceSnapshot() {
	snap := e.snapshotPool.AcquireWrite()
	snap.TickNumber = e.tickCount
	snap.Width = e.cfg.Width
	snap.Height = e.cfg.Height
	snap.RoundID = e.round.ID
	snap.RoundNumber = e.round.Number
	snap.Phase = e.round.Phase
	snap.Streak = e.round.Streak().Consecutive
	snap.Participants = len(e.flags)
	snap.Remaining = CountRemaining(e.flags)

	start, end := e.ring.GapWindow()
	snap.Ring = RingSnapshot{
		CenterX:   e.ring.CenterX,
		CenterY:   e.ring.CenterY,
		Radius:    e.ring.Radius,
		Thickness: e.ring.Thickness,
		GapStart:  start,
		GapEnd:    end,
	}

	for _, f := range e.flags {
		if len(snap.Flags) >= e.limits.MaxParticipants {
			break
		}
		snap.Flags = append(snap.Flags, flagSnapshot(f))
	}

	if w := e.round.Winner; w != nil {
		ws := flagSnapshot(w)
		snap.Winner = &ws
		snap.WinnerWins = e.leaderboard.Wins(w.Code)
	}
	if p := e.round.Pending(); p.Armed {
		snap.PhaseEndsAt = p.FireAt
	}

	snap.Leaderboard = append(snap.Leaderboard, e.leaderboard.Top(e.limits.MaxLeaderboard)...)

	e.snapshotPool.PublishWrite()
}

func flagSnapshot(f *Flag) FlagSnapshot {
	return FlagSnapshot{
		Code:    f.Code,
		Name:    f.Name,
		X:       f.X,
		Y:       f.Y,
		VX:      f.VX,
		VY:      f.VY,
		Width:   f.Width,
		Height:  f.Height,
		Radius:  f.Radius,
		State:   f.State,
		Opacity: f.Opacity,
	}
}

// StartEventLog initializes the event logging system
func (e *Engine) StartEventLog(filePath string) error {
	return e.eventLog.Start(filePath)
}

// StopEventLog gracefully stops the event logging system
func (e *Engine) StopEventLog() {
	e.eventLog.Stop()
}

// GetEventLogStats returns event log statistics for monitoring
func (e *Engine) GetEventLogStats() map[string]interface{} {
	return e.eventLog.GetStats()
}
