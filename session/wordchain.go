package session

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/EatingIting/DRAW-IT/logger"
)

// Submit rejection reasons. These travel in broadcasts, never as errors.
const (
	RejectNotStarted      = "NOT_STARTED"
	RejectNotYourTurn     = "NOT_YOUR_TURN"
	RejectLeadIn          = "LEAD_IN"
	RejectNotInDictionary = "NOT_IN_DICTIONARY"
	RejectAlreadyUsed     = "ALREADY_USED"
	RejectChainMismatch   = "CHAIN_MISMATCH"
)

type chainState struct {
	started      bool
	finished     bool
	currentWord  string
	playerIds    []string
	nickById     map[string]string
	turnIndex    int
	turnUserId   string
	usedWords    map[string]struct{}
	round        int
	turnStartAt  int64 // epoch millis; set past now at start so the lead-in keeps the timer inert
	turnLimit    float64
	timeoutCount int
	scoreById    map[string]int
}

// TimeoutOutcome describes what one expired turn did to the game.
type TimeoutOutcome struct {
	Finished     bool
	Winners      []string // winner nicknames, ties included
	TimeoutCount int
}

// WordChainEngine holds one word-chain turn state machine per active room.
type WordChainEngine struct {
	mu    sync.Mutex
	games map[string]*chainState
	rnd   *rand.Rand
}

func NewWordChainEngine(rnd *rand.Rand) *WordChainEngine {
	return &WordChainEngine{games: make(map[string]*chainState), rnd: rnd}
}

// StartWithDelay initializes a game whose turn timer only goes live after
// the lead-in: turnStartAt is stamped in the future and isTimeOver treats
// "now < turnStartAt" as not over.
func (e *WordChainEngine) StartWithDelay(roomId, startWord string, users []UserSnapshot, nowMillis int64) WordChainState {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := &chainState{
		started:     true,
		currentWord: startWord,
		nickById:    make(map[string]string, len(users)),
		usedWords:   map[string]struct{}{startWord: {}},
		scoreById:   make(map[string]int, len(users)),
		turnStartAt: nowMillis + LeadIn.Milliseconds(),
		turnLimit:   InitialTurnLimit,
	}
	for _, u := range users {
		state.playerIds = append(state.playerIds, u.UserId)
		state.nickById[u.UserId] = u.Nickname
		state.scoreById[u.UserId] = 0
	}
	state.turnUserId = state.playerIds[0]

	e.games[roomId] = state
	logger.Infof("[WordChain %s] started with %q, first turn %s", roomId, startWord, state.turnUserId)
	return snapshotChainLocked(state)
}

func (e *WordChainEngine) Started(roomId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	return ok && state.started && !state.finished
}

func (e *WordChainEngine) Remove(roomId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.games, roomId)
}

// SyncPlayers reconciles the turn order with the live roster, keeping
// scores for users who stay and seeding zero for late joiners.
func (e *WordChainEngine) SyncPlayers(roomId string, users []UserSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok {
		return
	}

	state.playerIds = state.playerIds[:0]
	for id := range state.nickById {
		delete(state.nickById, id)
	}
	for _, u := range users {
		state.playerIds = append(state.playerIds, u.UserId)
		state.nickById[u.UserId] = u.Nickname
		if _, seeded := state.scoreById[u.UserId]; !seeded {
			state.scoreById[u.UserId] = 0
		}
	}

	if len(state.playerIds) > 0 && !containsString(state.playerIds, state.turnUserId) {
		state.turnIndex = 0
		state.turnUserId = state.playerIds[0]
	}
}

// PreCheck runs the validations that need no dictionary: game running,
// caller's turn, lead-in elapsed. Empty reason means pass.
func (e *WordChainEngine) PreCheck(roomId, userId string, nowMillis int64) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || !state.started || state.finished {
		return RejectNotStarted
	}
	if userId != state.turnUserId {
		return RejectNotYourTurn
	}
	if nowMillis < state.turnStartAt {
		return RejectLeadIn
	}
	return ""
}

// Accept applies a dictionary-approved word. It re-validates everything
// PreCheck covered because the dictionary lookup happened outside the
// engine lock and the turn may have moved meanwhile. Empty reason means
// the word was accepted: score awarded, limit shrunk, turn rotated.
func (e *WordChainEngine) Accept(roomId, userId, word string, nowMillis int64) (WordChainState, string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || !state.started || state.finished {
		return WordChainState{}, RejectNotStarted
	}
	if userId != state.turnUserId {
		return snapshotChainLocked(state), RejectNotYourTurn
	}
	if nowMillis < state.turnStartAt {
		return snapshotChainLocked(state), RejectLeadIn
	}
	if _, used := state.usedWords[word]; used {
		return snapshotChainLocked(state), RejectAlreadyUsed
	}
	if !chainMatches(state.currentWord, word) {
		return snapshotChainLocked(state), RejectChainMismatch
	}

	state.usedWords[word] = struct{}{}
	state.currentWord = word
	state.scoreById[userId] += ChainPoints
	state.turnLimit = max(state.turnLimit-TurnLimitStep, TurnLimitFloor)
	state.nextTurnLocked(nowMillis)

	return snapshotChainLocked(state), ""
}

// chainMatches checks that the first rune of word equals the last rune of
// currentWord. Runes, not bytes: the vocabulary is Hangul.
func chainMatches(currentWord, word string) bool {
	current := []rune(currentWord)
	next := []rune(word)
	if len(current) == 0 || len(next) == 0 {
		return false
	}
	return current[len(current)-1] == next[0]
}

func (s *chainState) nextTurnLocked(nowMillis int64) {
	s.round++
	s.turnIndex = (s.turnIndex + 1) % len(s.playerIds)
	s.turnUserId = s.playerIds[s.turnIndex]
	s.turnStartAt = nowMillis
}

// TimedOutRooms returns every room whose active turn has exceeded its
// limit; the coordinator then handles each under that room's lock.
func (e *WordChainEngine) TimedOutRooms(nowMillis int64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var rooms []string
	for roomId, state := range e.games {
		if state.isTimeOverLocked(nowMillis) {
			rooms = append(rooms, roomId)
		}
	}
	return rooms
}

func (s *chainState) isTimeOverLocked(nowMillis int64) bool {
	if !s.started || s.finished {
		return false
	}
	if nowMillis < s.turnStartAt {
		return false
	}
	elapsed := float64(nowMillis-s.turnStartAt) / 1000.0
	return elapsed >= s.turnLimit
}

// HandleTimeout accounts one expired turn. The time check is re-run under
// the lock so a submission that landed while the poll was in flight turns
// this into a no-op.
func (e *WordChainEngine) HandleTimeout(roomId string, nowMillis int64) (WordChainState, TimeoutOutcome, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || !state.isTimeOverLocked(nowMillis) {
		return WordChainState{}, TimeoutOutcome{}, false
	}

	state.timeoutCount++
	if state.timeoutCount >= MaxTimeoutCount {
		state.finished = true
		state.started = false
		logger.Infof("[WordChain %s] finished after %d timeouts", roomId, state.timeoutCount)
		return snapshotChainLocked(state), TimeoutOutcome{
			Finished:     true,
			Winners:      winnerNicknamesLocked(state),
			TimeoutCount: state.timeoutCount,
		}, true
	}

	state.nextTurnLocked(nowMillis)
	return snapshotChainLocked(state), TimeoutOutcome{TimeoutCount: state.timeoutCount}, true
}

// Finish ends the game in place (used for the not-enough-players path).
func (e *WordChainEngine) Finish(roomId string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok {
		return nil
	}
	state.finished = true
	state.started = false
	return winnerNicknamesLocked(state)
}

// ReassignTurn hands the current turn to a uniformly random remaining
// player after the turn holder left, restarting the per-turn timer.
func (e *WordChainEngine) ReassignTurn(roomId, removedUserId string, remaining []UserSnapshot, nowMillis int64) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok || !state.started || state.finished || state.turnUserId != removedUserId {
		return "", false
	}
	if len(remaining) == 0 {
		return "", false
	}

	next := remaining[e.rnd.Intn(len(remaining))].UserId
	state.turnUserId = next
	for i, id := range state.playerIds {
		if id == next {
			state.turnIndex = i
			break
		}
	}
	state.turnStartAt = nowMillis
	return next, true
}

func (e *WordChainEngine) Snapshot(roomId string) (WordChainState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, ok := e.games[roomId]
	if !ok {
		return WordChainState{}, false
	}
	return snapshotChainLocked(state), true
}

func (e *WordChainEngine) TurnStartAt(roomId string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if state, ok := e.games[roomId]; ok {
		return state.turnStartAt
	}
	return 0
}

// winnerNicknamesLocked returns every user tied for the maximum score.
func winnerNicknamesLocked(s *chainState) []string {
	if len(s.scoreById) == 0 {
		return nil
	}

	maxScore := 0
	first := true
	for _, score := range s.scoreById {
		if first || score > maxScore {
			maxScore = score
			first = false
		}
	}

	var winners []string
	for id, score := range s.scoreById {
		if score == maxScore {
			if nick, ok := s.nickById[id]; ok {
				winners = append(winners, nick)
			} else {
				winners = append(winners, id)
			}
		}
	}
	sort.Strings(winners)
	return winners
}

func snapshotChainLocked(s *chainState) WordChainState {
	playerIds := make([]string, len(s.playerIds))
	copy(playerIds, s.playerIds)
	nickById := make(map[string]string, len(s.nickById))
	for id, nick := range s.nickById {
		nickById[id] = nick
	}
	scoreById := make(map[string]int, len(s.scoreById))
	for id, score := range s.scoreById {
		scoreById[id] = score
	}

	return WordChainState{
		Type:          "WORD_CHAIN_STATE",
		Started:       s.started,
		CurrentWord:   s.currentWord,
		PlayerIds:     playerIds,
		NickById:      nickById,
		TurnUserId:    s.turnUserId,
		Round:         s.round,
		TurnStartAt:   s.turnStartAt,
		TurnTimeLimit: s.turnLimit,
		ScoreByUserId: scoreById,
		TimeoutCount:  s.timeoutCount,
	}
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
