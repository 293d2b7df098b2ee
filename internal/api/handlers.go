package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"country-marbles/internal/game"
	"country-marbles/internal/store"
)

// Admin commands mirrored to presentation clients
const (
	CommandReset            = "reset"
	CommandNewRound         = "new_round"
	CommandClearLeaderboard = "clear_leaderboard"
	CommandSyncLeaderboard  = "sync_leaderboard"
	CommandSkipTrack        = "skip_track"
	CommandToggleMusic      = "toggle_music"
	CommandSetVolume        = "set_volume"
)

// CommandBox holds the latest admin command for clients that poll, and
// forwards each one to an optional listener (the websocket hub).
type CommandBox struct {
	mu       sync.Mutex
	pending  string
	listener func(command string)
}

// NewCommandBox creates an empty box
func NewCommandBox() *CommandBox {
	return &CommandBox{}
}

// OnCommand registers the forwarder
func (b *CommandBox) OnCommand(fn func(command string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listener = fn
}

// Post records a command, replacing any unread one
func (b *CommandBox) Post(command string) {
	b.mu.Lock()
	b.pending = command
	fn := b.listener
	b.mu.Unlock()

	if fn != nil {
		fn(command)
	}
}

// Take returns and clears the unread command ("" if none)
func (b *CommandBox) Take() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmd := b.pending
	b.pending = ""
	return cmd
}

// Public handlers

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot())
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "Renderer not available", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, h.engine.GetSnapshot()); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "Render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.Leaderboard().Top(10))
}

func (h *routerHandlers) handleGetMusic(w http.ResponseWriter, r *http.Request) {
	if h.music == nil {
		writeError(w, "Music directory not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{"tracks": h.music.Tracks()})
}

// Admin handlers

func (h *routerHandlers) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *routerHandlers) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()

	resp := map[string]interface{}{
		"totalRounds":    stats.RoundsCompleted + int(atomic.LoadInt64(&h.newRounds)),
		"totalCountries": len(h.countries),
		"round":          stats.RoundNumber,
		"phase":          stats.Phase,
		"remaining":      stats.Remaining,
		"streak":         stats.Streak,
		"streakHolder":   stats.StreakHolder,
		"uptimeSeconds":  int(time.Since(h.started).Seconds()),
		"musicPlaying":   false,
		"volume":         0,
	}
	if h.music != nil {
		resp["musicPlaying"] = h.music.Playing()
		resp["volume"] = h.music.Volume()
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleTakeCommand(w http.ResponseWriter, r *http.Request) {
	var cmd interface{}
	if c := h.commands.Take(); c != "" {
		cmd = c
	}
	resp := map[string]interface{}{
		"command":       cmd,
		"riggedCountry": nullable(h.engine.Favored()),
		"musicPlaying":  false,
		"volume":        0,
	}
	if h.music != nil {
		resp["musicPlaying"] = h.music.Playing()
		resp["volume"] = h.music.Volume()
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleReset(w http.ResponseWriter, r *http.Request) {
	if !h.reset(w, "admin_reset") {
		return
	}
	h.commands.Post(CommandReset)
	writeSuccess(w, "Round reset")
}

func (h *routerHandlers) handleNewRound(w http.ResponseWriter, r *http.Request) {
	if !h.reset(w, "admin_new_round") {
		return
	}
	atomic.AddInt64(&h.newRounds, 1)
	h.commands.Post(CommandNewRound)
	writeSuccess(w, "New round started")
}

func (h *routerHandlers) reset(w http.ResponseWriter, reason string) bool {
	if err := h.engine.ManualReset(reason); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, game.ErrNoParticipants) {
			status = http.StatusConflict
		}
		writeError(w, err.Error(), status)
		return false
	}
	log.Printf("🔧 Admin: %s", reason)
	return true
}

func (h *routerHandlers) handleAdminLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"leaderboard": store.FromEntries(h.engine.Leaderboard().Entries()),
	})
}

func (h *routerHandlers) handleReplaceLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Leaderboard store.Table `json:"leaderboard"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Leaderboard == nil {
		writeError(w, "Leaderboard not provided", http.StatusBadRequest)
		return
	}

	h.engine.Leaderboard().Replace(req.Leaderboard.Entries())
	h.leaderboardEdited("replace")
	writeSuccess(w, fmt.Sprintf("Leaderboard replaced (%d countries)", len(req.Leaderboard)))
}

func (h *routerHandlers) handleUpdateLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
		Wins *int   `json:"wins"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.Wins == nil {
		writeError(w, "Invalid data", http.StatusBadRequest)
		return
	}
	code := normalizeCode(req.Code)

	if !h.engine.Leaderboard().SetWins(code, *req.Wins) {
		writeError(w, "Country not found in leaderboard", http.StatusNotFound)
		return
	}
	h.leaderboardEdited("update")
	writeSuccess(w, fmt.Sprintf("Updated %s to %d wins", code, h.engine.Leaderboard().Wins(code)))
}

func (h *routerHandlers) handleDeleteLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, "Invalid data", http.StatusBadRequest)
		return
	}
	code := normalizeCode(req.Code)

	if !h.engine.Leaderboard().Remove(code) {
		writeError(w, "Country not found in leaderboard", http.StatusNotFound)
		return
	}
	h.leaderboardEdited("delete")
	writeSuccess(w, fmt.Sprintf("Deleted %s from leaderboard", code))
}

func (h *routerHandlers) handleClearLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.engine.Leaderboard().Clear()
	h.leaderboardEdited("clear")
	h.commands.Post(CommandClearLeaderboard)
	writeSuccess(w, "Leaderboard cleared")
}

// leaderboardEdited logs, persists and announces an admin edit
func (h *routerHandlers) leaderboardEdited(action string) {
	h.engine.LeaderboardChanged(action)
	if h.store != nil {
		if err := h.store.Snapshot(h.engine.Leaderboard()); err != nil {
			log.Printf("⚠️ Failed to save leaderboard: %v", err)
		}
	}
	if action != "clear" {
		h.commands.Post(CommandSyncLeaderboard)
	}
	log.Printf("🔧 Admin: leaderboard %s", action)
}

func (h *routerHandlers) handleSkipTrack(w http.ResponseWriter, r *http.Request) {
	if h.music == nil {
		writeError(w, "Music not available", http.StatusServiceUnavailable)
		return
	}
	if err := h.music.Skip(); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.commands.Post(CommandSkipTrack)
	writeSuccess(w, "Skipped track")
}

func (h *routerHandlers) handleToggleMusic(w http.ResponseWriter, r *http.Request) {
	if h.music == nil {
		writeError(w, "Music not available", http.StatusServiceUnavailable)
		return
	}
	playing := !h.music.Playing()
	h.music.SetPlaying(playing)
	h.commands.Post(CommandToggleMusic)
	writeJSON(w, map[string]interface{}{"success": true, "playing": playing})
}

func (h *routerHandlers) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Volume *float64 `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeError(w, "Volume not provided", http.StatusBadRequest)
		return
	}
	if h.music == nil {
		writeError(w, "Music not available", http.StatusServiceUnavailable)
		return
	}

	vol := int(*req.Volume)
	if vol < 0 {
		vol = 0
	}
	if vol > 100 {
		vol = 100
	}
	h.music.SetVolume(vol)
	h.commands.Post(CommandSetVolume)
	writeJSON(w, map[string]interface{}{"success": true, "volume": vol})
}

func (h *routerHandlers) handleGetFavored(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"riggedCountry": nullable(h.engine.Favored())})
}

func (h *routerHandlers) handleSetFavored(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code *string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == nil {
		writeError(w, "Country code not provided", http.StatusBadRequest)
		return
	}

	code := normalizeCode(*req.Code)
	if code != "" && len(h.countries) > 0 {
		if _, ok := h.countries[code]; !ok {
			writeError(w, "Unknown country", http.StatusNotFound)
			return
		}
	}

	h.engine.SetFavored(code)
	if code == "" {
		log.Println("🔧 Admin: favored country cleared")
	} else {
		log.Printf("🔧 Admin: favored country set to %s", code)
	}
	writeJSON(w, map[string]interface{}{"success": true, "riggedCountry": nullable(code)})
}

// Helper functions (package-level for reuse)

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// nullable maps "" to JSON null
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, message string) {
	writeJSON(w, map[string]interface{}{"success": true, "message": message})
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": message})
}
