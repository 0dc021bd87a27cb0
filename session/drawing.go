package session

import (
	"math/rand"
	"strings"
	"sync"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/logger"
)

// DrawEvent is one canvas action. START and MOVE are transient and only
// rebroadcast; END (with points), FILL and CLEAR enter the stroke log.
type DrawEvent struct {
	Type   string      `json:"type"`
	UserId string      `json:"userId"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Color  string      `json:"color,omitempty"`
	Width  float64     `json:"width,omitempty"`
	Tool   string      `json:"tool,omitempty"`
	Points []DrawPoint `json:"points,omitempty"`
}

type DrawPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type drawingState struct {
	mode         domain.GameMode
	drawerUserId string
	currentWord  string
	currentRound int
	roundEndTime int64 // epoch millis, 0 while pre-round
	timerGen     int   // bumped on every arm or disarm of the round timer
	drawCounts   map[string]int
	usedWords    map[string]struct{}
	strokes      []DrawEvent
	redoStack    []DrawEvent
	ending       bool
}

// DrawingSnapshot is the read-only view handed to late joiners and tests.
type DrawingSnapshot struct {
	Mode         domain.GameMode
	DrawerUserId string
	CurrentWord  string
	CurrentRound int
	RoundEndTime int64
	History      []DrawEvent
	RedoStack    []DrawEvent
}

// AdvanceOutcome is the result of moving a room past its current round.
type AdvanceOutcome struct {
	GameOver     bool
	AlreadyOver  bool // a repeat trigger on a room already marked ending
	DrawerUserId string
	Word         string
	Round        int
}

// DrawingEngine holds one drawing-round state machine per active room.
// The engine owns the stroke-log and redo-stack invariants; callers never
// see a mutable handle to either.
type DrawingEngine struct {
	mu        sync.Mutex
	games     map[string]*drawingState
	words     *WordProvider
	rnd       *rand.Rand
	maxRounds int
}

func NewDrawingEngine(words *WordProvider, rnd *rand.Rand, maxRounds int) *DrawingEngine {
	return &DrawingEngine{
		games:     make(map[string]*drawingState),
		words:     words,
		rnd:       rnd,
		maxRounds: maxRounds,
	}
}

func (e *DrawingEngine) MaxRounds() int { return e.maxRounds }

// CreateGame starts round 1: fair drawer pick, fresh word, pre-round
// sentinel end time. The caller has already verified the roster size.
func (e *DrawingEngine) CreateGame(roomId string, mode domain.GameMode, roster []UserSnapshot) DrawingSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := &drawingState{
		mode:         mode,
		currentRound: 1,
		drawCounts:   make(map[string]int),
		usedWords:    make(map[string]struct{}),
	}
	state.drawerUserId = e.pickDrawerLocked(state, roster)
	state.currentWord = e.words.PickUniqueWord(state.usedWords, mode)
	e.games[roomId] = state

	logger.Infof("[Drawing %s] game created, drawer=%s round=1", roomId, state.drawerUserId)
	return snapshotLocked(state)
}

func (e *DrawingEngine) Exists(roomId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.games[roomId]
	return ok
}

func (e *DrawingEngine) Snapshot(roomId string) (DrawingSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok {
		return DrawingSnapshot{}, false
	}
	return snapshotLocked(state), true
}

func (e *DrawingEngine) Remove(roomId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.games, roomId)
}

// BeginRound arms the live round timer and returns its end time together
// with the round index and timer generation the caller should tag its
// timeout task with.
func (e *DrawingEngine) BeginRound(roomId string, nowMillis int64) (endTime int64, round, gen int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, exists := e.games[roomId]
	if !exists {
		return 0, 0, 0, false
	}
	state.roundEndTime = nowMillis + RoundDuration.Milliseconds()
	state.timerGen++
	return state.roundEndTime, state.currentRound, state.timerGen, true
}

// RoundMatches reports whether the room is still on the given round. A
// scheduled timeout whose round no longer matches must be discarded.
func (e *DrawingEngine) RoundMatches(roomId string, round int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	return ok && state.currentRound == round
}

// TimerMatches reports whether a scheduled timeout still owns the live
// round timer: same round and no re-arm since it was scheduled. A drawer
// replacement bumps the generation without changing the round index.
func (e *DrawingEngine) TimerMatches(roomId string, round, gen int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	return ok && state.currentRound == round && state.timerGen == gen
}

// StrokeOutcome tells the caller what to do with an inbound draw event.
type StrokeOutcome struct {
	Rebroadcast bool
	Recorded    bool
}

// ApplyStroke enforces the drawer-only rule and the log/redo invariants:
// any forward action clears the redo stack, UNDO and REDO move entries
// between the two, and the log drops its oldest entry past the cap.
func (e *DrawingEngine) ApplyStroke(roomId string, evt DrawEvent) StrokeOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || evt.UserId != state.drawerUserId {
		return StrokeOutcome{}
	}

	outcome := StrokeOutcome{Rebroadcast: true}

	switch evt.Type {
	case "START", "MOVE":
		// Transient: rebroadcast only.
	case "END":
		if len(evt.Points) > 0 {
			evt.Type = "STROKE"
			state.appendForward(evt)
			outcome.Recorded = true
		}
	case "FILL", "CLEAR":
		state.appendForward(evt)
		outcome.Recorded = true
	case "UNDO":
		if n := len(state.strokes); n > 0 {
			state.redoStack = append(state.redoStack, state.strokes[n-1])
			state.strokes = state.strokes[:n-1]
		}
	case "REDO":
		if n := len(state.redoStack); n > 0 {
			state.strokes = append(state.strokes, state.redoStack[n-1])
			state.redoStack = state.redoStack[:n-1]
		}
	default:
		return StrokeOutcome{}
	}

	return outcome
}

func (s *drawingState) appendForward(evt DrawEvent) {
	s.strokes = append(s.strokes, evt)
	s.redoStack = s.redoStack[:0]
	if len(s.strokes) > StrokeLogCap {
		s.strokes = s.strokes[1:]
	}
}

// ApplyClear records a forced CLEAR from the dedicated clear action.
func (e *DrawingEngine) ApplyClear(roomId, userId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || userId != state.drawerUserId {
		return false
	}
	state.appendForward(DrawEvent{Type: "CLEAR", UserId: userId})
	return true
}

// CheckGuess reports whether text matches the current word. The drawer
// cannot guess their own word.
func (e *DrawingEngine) CheckGuess(roomId, userId, text string) (drawerUserId, word string, correct bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || state.currentWord == "" {
		return "", "", false
	}
	if userId == state.drawerUserId {
		return state.drawerUserId, state.currentWord, false
	}
	if !strings.EqualFold(strings.TrimSpace(text), state.currentWord) {
		return state.drawerUserId, state.currentWord, false
	}
	return state.drawerUserId, state.currentWord, true
}

// Advance moves the room to the next round, or flags game over once the
// round index would pass MaxRounds. Repeat triggers on an ending room
// come back AlreadyOver so the caller's game-over path stays idempotent.
func (e *DrawingEngine) Advance(roomId string, roster []UserSnapshot) (AdvanceOutcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok {
		return AdvanceOutcome{}, false
	}

	next := state.currentRound + 1
	if next > e.maxRounds {
		if state.ending {
			return AdvanceOutcome{GameOver: true, AlreadyOver: true}, true
		}
		state.ending = true
		return AdvanceOutcome{GameOver: true}, true
	}

	state.currentRound = next
	state.drawerUserId = e.pickDrawerLocked(state, roster)
	state.currentWord = e.words.PickUniqueWord(state.usedWords, state.mode)
	state.strokes = nil
	state.redoStack = nil
	state.roundEndTime = 0
	state.timerGen++

	logger.Infof("[Drawing %s] round %d, drawer=%s", roomId, next, state.drawerUserId)
	return AdvanceOutcome{DrawerUserId: state.drawerUserId, Word: state.currentWord, Round: next}, true
}

// ReplaceDrawer hands the brush to another user after the drawer left
// mid-round. Returns false when the room has no state or no candidates.
func (e *DrawingEngine) ReplaceDrawer(roomId string, roster []UserSnapshot, removedUserId string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || state.drawerUserId != removedUserId {
		return "", false
	}

	candidates := make([]UserSnapshot, 0, len(roster))
	for _, u := range roster {
		if u.UserId != removedUserId {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	state.drawerUserId = e.pickDrawerLocked(state, candidates)
	state.roundEndTime = 0
	state.timerGen++
	return state.drawerUserId, true
}

// pickDrawerLocked implements round-robin-with-random-tiebreak: only
// users still under the per-game quota are eligible; once everyone has
// met it, the pick is unrestricted random.
func (e *DrawingEngine) pickDrawerLocked(state *drawingState, roster []UserSnapshot) string {
	quota := (e.maxRounds + len(roster) - 1) / len(roster)

	eligible := make([]string, 0, len(roster))
	for _, u := range roster {
		if state.drawCounts[u.UserId] < quota {
			eligible = append(eligible, u.UserId)
		}
	}
	if len(eligible) == 0 {
		for _, u := range roster {
			eligible = append(eligible, u.UserId)
		}
	}

	picked := eligible[e.rnd.Intn(len(eligible))]
	state.drawCounts[picked]++
	return picked
}

func snapshotLocked(state *drawingState) DrawingSnapshot {
	history := make([]DrawEvent, len(state.strokes))
	copy(history, state.strokes)
	redo := make([]DrawEvent, len(state.redoStack))
	copy(redo, state.redoStack)

	return DrawingSnapshot{
		Mode:         state.mode,
		DrawerUserId: state.drawerUserId,
		CurrentWord:  state.currentWord,
		CurrentRound: state.currentRound,
		RoundEndTime: state.roundEndTime,
		History:      history,
		RedoStack:    redo,
	}
}
