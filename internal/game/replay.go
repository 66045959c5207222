package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/foodchain/foodchain-server-go/internal/game/state"
)

// ReplayFrame is the game after one accepted action.
type ReplayFrame struct {
	Action   string
	Turn     int
	Phase    string
	Active   int
	Winner   int
	HP       [2]int
	Hands    [2]int
	Decks    [2]int
	Field    [2][]string // definition id per slot, "" when empty
	Carrion  [2][]string
	Log      []LogView // entries added by the action
	Checksum string
}

// newReplayFrame captures st. logFrom is how many log entries the previous
// frame had already seen.
func newReplayFrame(st *state.GameState, action string, logFrom int) *ReplayFrame {
	f := &ReplayFrame{
		Action: action,
		Turn:   st.Turn,
		Phase:  st.Phase.String(),
		Active: st.ActivePlayerIndex,
		Winner: st.Winner,
	}
	for i, p := range st.Players {
		f.HP[i] = p.HP
		f.Hands[i] = len(p.Hand)
		f.Decks[i] = len(p.Deck)
		f.Field[i] = make([]string, len(p.Field))
		for slot, c := range p.Field {
			if c != nil {
				f.Field[i][slot] = c.Def.ID
			}
		}
		for _, c := range p.Carrion {
			f.Carrion[i] = append(f.Carrion[i], c.Def.ID)
		}
	}
	for _, e := range st.Log[min(logFrom, len(st.Log)):] {
		f.Log = append(f.Log, LogView{Turn: e.Turn, Category: e.Category.String(), Message: e.Message})
	}
	if sum, err := ComputeChecksum(st); err == nil {
		f.Checksum = sum.Hash
	}
	return f
}

// Replay is a recorded game, one frame per accepted action.
type Replay struct {
	GameID       string
	Frames       []*ReplayFrame
	CurrentIndex int
	logSeen      int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay.
func NewReplay(gameID string) *Replay {
	return &Replay{
		GameID: gameID,
		Frames: make([]*ReplayFrame, 0),
	}
}

// Record captures st after action.
func (r *Replay) Record(st *state.GameState, action string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Frames = append(r.Frames, newReplayFrame(st, action, r.logSeen))
	r.logSeen = len(st.Log)
}

// Start rewinds playback.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the frame at the cursor and moves past it.
func (r *Replay) Next() *ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex < len(r.Frames) {
		f := r.Frames[r.CurrentIndex]
		r.CurrentIndex++
		return f
	}
	return nil
}

// Previous steps the cursor back and returns that frame.
func (r *Replay) Previous() *ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.Frames[r.CurrentIndex]
	}
	return nil
}

// Skip moves the cursor by count frames, clamped to the recording.
func (r *Replay) Skip(count int) *ReplayFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Frames) == 0 {
		return nil
	}
	r.CurrentIndex = max(0, min(r.CurrentIndex+count, len(r.Frames)-1))
	return r.Frames[r.CurrentIndex]
}

// Size is the number of frames.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Frames)
}

// FrameAt returns the frame at index, or nil.
func (r *Replay) FrameAt(index int) *ReplayFrame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= 0 && index < len(r.Frames) {
		return r.Frames[index]
	}
	return nil
}

// SaveToFile writes the replay to <directory>/<gameID>.replay as gzipped gob.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(filepath.Join(directory, r.GameID+".replay"))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	encoder := gob.NewEncoder(gz)
	metadata := replayMetadata{
		GameID:     r.GameID,
		Timestamp:  time.Now(),
		Version:    1,
		FrameCount: len(r.Frames),
	}
	if err := encoder.Encode(&metadata); err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i, f := range r.Frames {
		if err := encoder.Encode(f); err != nil {
			return fmt.Errorf("failed to encode frame %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(directory, gameID string) (*Replay, error) {
	file, err := os.Open(filepath.Join(directory, gameID+".replay"))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gz.Close()

	decoder := gob.NewDecoder(gz)
	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != 1 {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.GameID)
	for i := range metadata.FrameCount {
		var f ReplayFrame
		if err := decoder.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode frame %d: %w", i, err)
		}
		replay.Frames = append(replay.Frames, &f)
	}
	return replay, nil
}

type replayMetadata struct {
	GameID     string
	Timestamp  time.Time
	Version    int
	FrameCount int
}

// ReplayRecorder keeps the replays of running games.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	enabled map[string]bool
	saveDir string
}

// NewReplayRecorder creates a recorder saving into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		enabled: make(map[string]bool),
		saveDir: saveDir,
	}
}

// StartRecording begins a fresh replay for gameID.
func (rr *ReplayRecorder) StartRecording(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.replays[gameID] = NewReplay(gameID)
	rr.enabled[gameID] = true
	if rr.logger != nil {
		rr.logger.Debug("started replay recording", zap.String("game_id", gameID))
	}
}

// StopRecording keeps the replay but records nothing further.
func (rr *ReplayRecorder) StopRecording(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.enabled[gameID] = false
}

// Record adds a frame if gameID is being recorded.
func (rr *ReplayRecorder) Record(st *state.GameState, action string) {
	rr.mu.RLock()
	enabled := rr.enabled[st.ID]
	replay := rr.replays[st.ID]
	rr.mu.RUnlock()
	if !enabled || replay == nil {
		return
	}
	replay.Record(st, action)
	if rr.logger != nil {
		rr.logger.Debug("recorded replay frame",
			zap.String("game_id", st.ID),
			zap.String("action", action),
			zap.Int("frame_count", replay.Size()))
	}
}

// GetReplay returns the in-memory replay of gameID.
func (rr *ReplayRecorder) GetReplay(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[gameID]
	return replay, ok
}

// SaveReplay writes the replay to disk and drops it from memory.
func (rr *ReplayRecorder) SaveReplay(gameID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[gameID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for game %s", gameID)
	}
	delete(rr.replays, gameID)
	delete(rr.enabled, gameID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	if rr.logger != nil {
		rr.logger.Info("saved replay to disk",
			zap.String("game_id", gameID),
			zap.Int("frame_count", replay.Size()),
			zap.String("directory", rr.saveDir))
	}
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(gameID string) (*Replay, error) {
	return LoadReplayFromFile(rr.saveDir, gameID)
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
	delete(rr.enabled, gameID)
}

// IsRecording reports whether gameID is being recorded.
func (rr *ReplayRecorder) IsRecording(gameID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return rr.enabled[gameID]
}
