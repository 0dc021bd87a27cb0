package session

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/logger"
)

// Denial / end reason codes.
const (
	ReasonNotEnoughPlayers = "NOT_ENOUGH_PLAYERS"
	ReasonWordNotFound     = "WORD_NOT_FOUND"
	ReasonTimeOver         = "TIME_OVER"
)

// Coordinator routes every inbound player action and every fired
// scheduled task to the presence store and the per-room engines. Access
// is serialized per room; collaborator I/O never happens under a room
// lock.
type Coordinator struct {
	presence *PresenceStore
	drawing  *DrawingEngine
	chain    *WordChainEngine
	sched    Scheduler
	bus      Broadcaster
	dir      RoomDirectory
	dict     Dictionary
	gallery  GalleryStore
	ranking  RankingSink
	rnd      *rand.Rand
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type CoordinatorDeps struct {
	Scheduler   Scheduler
	Broadcaster Broadcaster
	Directory   RoomDirectory
	Dictionary  Dictionary
	Gallery     GalleryStore
	Ranking     RankingSink
	Rand        *rand.Rand
	Now         func() time.Time
}

func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	rnd := deps.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Coordinator{
		presence: NewPresenceStore(GraceWindow, now),
		drawing:  NewDrawingEngine(NewWordProvider(rnd), rnd, MaxRounds),
		chain:    NewWordChainEngine(rnd),
		sched:    deps.Scheduler,
		bus:      deps.Broadcaster,
		dir:      deps.Directory,
		dict:     deps.Dictionary,
		gallery:  deps.Gallery,
		ranking:  deps.Ranking,
		rnd:      rnd,
		now:      now,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) Presence() *PresenceStore { return c.presence }

func (c *Coordinator) nowMillis() int64 { return c.now().UnixMilli() }

// roomLock serializes handlers per room. Rooms are independent; there is
// no cross-room ordering requirement.
func (c *Coordinator) roomLock(roomId string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[roomId]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[roomId] = lock
	}
	return lock
}

func (c *Coordinator) dropRoomLock(roomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, roomId)
}

// StartTickers launches the periodic sweep and the word-chain timeout
// poll. The returned function stops both.
func (c *Coordinator) StartTickers() func() {
	sweepTicker := time.NewTicker(SweepPeriod)
	chainTicker := time.NewTicker(TimeoutPoll)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-sweepTicker.C:
				c.RunSweep(context.Background())
			case <-chainTicker.C:
				c.CheckChainTimeouts()
			}
		}
	}()

	return func() {
		sweepTicker.Stop()
		chainTicker.Stop()
		close(done)
	}
}

// --- Join / leave / presence ---

// Join adds or refreshes the user and answers with the room roster plus,
// for late joiners, the in-progress game snapshot and the full stroke
// history (active log and redo stack).
func (c *Coordinator) Join(ctx context.Context, roomId, sessionId, userId, nickname string) {
	lock := c.roomLock(roomId)
	lock.Lock()
	c.presence.AddOrRefresh(roomId, sessionId, userId, nickname)
	roster := c.presence.Roster(roomId)
	hostUserId := c.presence.HostUserId(roomId)
	drawSnap, drawActive := c.drawing.Snapshot(roomId)
	chainActive := c.chain.Started(roomId)
	lock.Unlock()

	update := MakeUserUpdate(roster, hostUserId, drawActive || chainActive)
	if drawActive {
		update.DrawerUserId = drawSnap.DrawerUserId
		update.Word = drawSnap.CurrentWord
		update.RoundEndTime = drawSnap.RoundEndTime
		update.ServerNow = c.nowMillis()
	}
	c.bus.ToRoom(roomId, update)

	if drawActive && (len(drawSnap.History) > 0 || len(drawSnap.RedoStack) > 0) {
		c.bus.ToUser(userId, MakeDrawHistory(drawSnap.History, drawSnap.RedoStack))
	}
	if chainActive {
		if snap, ok := c.chain.Snapshot(roomId); ok {
			c.bus.ToUser(userId, snap)
		}
	}

	c.BroadcastRoomList(ctx)
}

// Disconnected stamps the presence entry. Removal is the sweep's job, so
// a page reload inside the grace window is invisible to the room.
func (c *Coordinator) Disconnected(sessionId string) {
	c.presence.MarkDisconnected(sessionId)
}

// Leave is the explicit exit: immediate removal, no grace window.
func (c *Coordinator) Leave(ctx context.Context, roomId, userId string) {
	lock := c.roomLock(roomId)
	lock.Lock()
	removal, ok := c.presence.Leave(roomId, userId)
	lock.Unlock()
	if !ok {
		return
	}
	c.applyRemoval(ctx, removal)
	c.BroadcastRoomList(ctx)
}

// RunSweep removes every entry whose disconnect outlived the grace
// window and applies the same side effects as an explicit leave.
func (c *Coordinator) RunSweep(ctx context.Context) {
	removals := c.presence.Sweep()
	for _, removal := range removals {
		c.applyRemoval(ctx, removal)
	}
	if len(removals) > 0 {
		c.BroadcastRoomList(ctx)
	}
}

// applyRemoval performs host succession, engine reactions and the
// directory updates for one removed user.
func (c *Coordinator) applyRemoval(ctx context.Context, removal Removal) {
	roomId := removal.RoomId

	if removal.RoomEmptied {
		c.drawing.Remove(roomId)
		c.chain.Remove(roomId)
		c.gallery.ClearRoom(roomId)
		c.dropRoomLock(roomId)
		if err := c.dir.DeleteLobby(ctx, roomId); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
			logger.Warningf("[Session %s] failed to delete emptied room: %v", roomId, err)
		}
		return
	}

	if removal.NewHostUserId != "" {
		if err := c.dir.UpdateHost(ctx, roomId, removal.NewHostUserId); err != nil {
			logger.Warningf("[Session %s] failed to persist host change: %v", roomId, err)
		}
	}

	lock := c.roomLock(roomId)
	lock.Lock()
	roster := c.presence.Roster(roomId)
	resetGameFlag := false

	// Drawing engine reaction.
	if snap, active := c.drawing.Snapshot(roomId); active {
		if len(roster) < 2 {
			c.drawing.Remove(roomId)
			resetGameFlag = true
		} else if snap.DrawerUserId == removal.UserId {
			if newDrawer, ok := c.drawing.ReplaceDrawer(roomId, roster, removal.UserId); ok {
				lock.Unlock()
				c.bus.ToRoom(roomId, MakeDrawerChanged(newDrawer, snap.CurrentWord, snap.CurrentRound, c.nowMillis()))
				c.sched.Schedule(LeadIn, func() { c.BeginRoundActive(roomId) })
				lock.Lock()
			}
		}
	}

	// Word-chain engine reaction.
	if c.chain.Started(roomId) {
		if len(roster) < 2 {
			c.chain.Finish(roomId)
			c.chain.Remove(roomId)
			resetGameFlag = true
			lock.Unlock()
			c.bus.ToRoom(roomId, MakeWordChainEnd(ReasonNotEnoughPlayers, nil, 0))
			lock.Lock()
		} else {
			if newTurn, ok := c.chain.ReassignTurn(roomId, removal.UserId, roster, c.nowMillis()); ok {
				turnStartAt := c.chain.TurnStartAt(roomId)
				lock.Unlock()
				c.bus.ToRoom(roomId, MakeWordChainTurnUserLeft(newTurn, turnStartAt))
				lock.Lock()
			}
			c.chain.SyncPlayers(roomId, roster)
		}
	}

	hostUserId := c.presence.HostUserId(roomId)
	gameStarted := c.drawing.Exists(roomId) || c.chain.Started(roomId)
	lock.Unlock()

	if resetGameFlag {
		if err := c.dir.MarkGameStarted(ctx, roomId, false); err != nil {
			logger.Warningf("[Session %s] failed to reset game flag: %v", roomId, err)
		}
	}

	c.bus.ToRoom(roomId, MakeUserUpdate(roster, hostUserId, gameStarted))
}

func (c *Coordinator) AddScore(roomId, userId string, delta int) {
	c.presence.AddScore(roomId, userId, delta)
}

// UpdateProfile applies a nickname/avatar change with the same collision
// handling as join, then refreshes the room.
func (c *Coordinator) UpdateProfile(roomId, userId, nickname, profileImage string) {
	lock := c.roomLock(roomId)
	lock.Lock()
	changed := c.presence.UpdateProfile(roomId, userId, nickname, profileImage)
	roster := c.presence.Roster(roomId)
	hostUserId := c.presence.HostUserId(roomId)
	gameStarted := c.drawing.Exists(roomId) || c.chain.Started(roomId)
	lock.Unlock()

	if changed {
		c.bus.ToRoom(roomId, MakeUserUpdate(roster, hostUserId, gameStarted))
	}
}

// --- Game start ---

// StartGame begins the engine matching the room's configured mode.
func (c *Coordinator) StartGame(ctx context.Context, roomId string) {
	roster := c.presence.Roster(roomId)
	if len(roster) < 2 {
		c.bus.ToRoom(roomId, MakeGameStartDenied(ReasonNotEnoughPlayers))
		return
	}

	mode := domain.ModeRandom
	lobby, err := c.dir.GetLobby(ctx, roomId)
	if err != nil {
		logger.Warningf("[Session %s] room directory lookup failed, defaulting mode: %v", roomId, err)
	} else {
		mode = lobby.Mode
	}

	if mode == domain.ModeWordChain {
		c.startWordChain(ctx, roomId, roster)
		return
	}

	lock := c.roomLock(roomId)
	lock.Lock()
	if c.drawing.Exists(roomId) {
		lock.Unlock()
		return
	}
	snap := c.drawing.CreateGame(roomId, mode, roster)
	lock.Unlock()

	if err := c.dir.MarkGameStarted(ctx, roomId, true); err != nil {
		logger.Warningf("[Session %s] failed to mark game started: %v", roomId, err)
	}

	c.bus.ToRoom(roomId, MakeGameStart(string(mode), snap.DrawerUserId, snap.CurrentWord, c.nowMillis()))
	c.sched.Schedule(LeadIn, func() { c.BeginRoundActive(roomId) })
	c.BroadcastRoomList(ctx)
}

// BeginRoundActive arms the live round timer once the pre-round countdown
// has elapsed. Fired by the scheduler.
func (c *Coordinator) BeginRoundActive(roomId string) {
	lock := c.roomLock(roomId)
	lock.Lock()
	endTime, round, gen, ok := c.drawing.BeginRound(roomId, c.nowMillis())
	lock.Unlock()
	if !ok {
		return
	}

	c.bus.ToRoom(roomId, MakeRoundStart(endTime, c.nowMillis()))
	c.sched.Schedule(RoundDuration, func() { c.CheckRoundTimeout(roomId, round, gen) })
}

// CheckRoundTimeout fires when a round's full duration has elapsed. It is
// tagged with the round and timer generation it was scheduled for; a
// stale firing, including one outrun by a drawer replacement within the
// same round, is a no-op.
func (c *Coordinator) CheckRoundTimeout(roomId string, scheduledRound, scheduledGen int) {
	if !c.drawing.TimerMatches(roomId, scheduledRound, scheduledGen) {
		return
	}

	c.bus.ToRoom(roomId, MakeTimeOver())

	c.sched.Schedule(LeadIn, func() {
		if c.drawing.TimerMatches(roomId, scheduledRound, scheduledGen) {
			c.AdvanceRound(roomId)
		}
	})
}

// AdvanceRound moves a drawing room to its next round or into game over.
func (c *Coordinator) AdvanceRound(roomId string) {
	roster := c.presence.Roster(roomId)
	if len(roster) == 0 {
		c.drawing.Remove(roomId)
		return
	}

	lock := c.roomLock(roomId)
	lock.Lock()
	outcome, ok := c.drawing.Advance(roomId, roster)
	lock.Unlock()
	if !ok || outcome.AlreadyOver {
		return
	}

	if outcome.GameOver {
		c.bus.ToRoom(roomId, MakeGameOver(c.drawing.MaxRounds()))
		c.sched.Schedule(VoteWindow, func() { c.FinishVoteAndSave(context.Background(), roomId) })
		return
	}

	c.bus.ToRoom(roomId, MakeDrawerChanged(outcome.DrawerUserId, outcome.Word, outcome.Round, c.nowMillis()))
	c.sched.Schedule(LeadIn, func() { c.BeginRoundActive(roomId) })
}

// FinishVoteAndSave closes the vote window: winners go to the monthly
// ranking sink, then the room's gallery and engine state are destroyed.
// A single failed winner is skipped, never the whole batch.
func (c *Coordinator) FinishVoteAndSave(ctx context.Context, roomId string) {
	if len(c.presence.Roster(roomId)) == 0 {
		c.gallery.ClearRoom(roomId)
		c.drawing.Remove(roomId)
		return
	}

	winners := c.gallery.Winners(roomId)
	if len(winners) > 0 {
		c.ranking.SaveWinners(ctx, winners)
		logger.Infof("[Session %s] monthly ranking saved: %d entries", roomId, len(winners))
	}

	c.gallery.ClearRoom(roomId)
	c.drawing.Remove(roomId)

	if err := c.dir.MarkGameStarted(ctx, roomId, false); err != nil {
		logger.Warningf("[Session %s] failed to reset game flag: %v", roomId, err)
	}
	c.BroadcastRoomList(ctx)
}

// --- Drawing actions ---

// HandleDraw validates and records one canvas event, then rebroadcasts
// it. Non-drawer events are dropped without error.
func (c *Coordinator) HandleDraw(roomId string, evt DrawEvent) {
	lock := c.roomLock(roomId)
	lock.Lock()
	outcome := c.drawing.ApplyStroke(roomId, evt)
	lock.Unlock()

	if outcome.Rebroadcast {
		c.bus.ToRoom(roomId, MakeDrawBroadcast(evt))
	}
}

// HandleClear forces a CLEAR entry from the dedicated clear action.
func (c *Coordinator) HandleClear(roomId, userId string) {
	lock := c.roomLock(roomId)
	lock.Lock()
	cleared := c.drawing.ApplyClear(roomId, userId)
	lock.Unlock()

	if cleared {
		c.bus.ToRoom(roomId, MakeClearBroadcast(userId))
	}
}

// HandleChat relays a chat bubble and, in drawing rooms, checks it
// against the secret word.
func (c *Coordinator) HandleChat(ctx context.Context, roomId, userId, message string) {
	c.bus.ToRoom(roomId, MakeChatBubble(userId, message))

	lock := c.roomLock(roomId)
	lock.Lock()
	drawerUserId, word, correct := c.drawing.CheckGuess(roomId, userId, message)
	if !correct {
		lock.Unlock()
		return
	}

	nickname := c.presence.Nickname(roomId, userId)
	if nickname == "" {
		nickname = "(unknown)"
	}
	c.presence.AddScore(roomId, userId, GuesserPoints)
	if drawerUserId != "" {
		c.presence.AddScore(roomId, drawerUserId, DrawerPoints)
	}
	roster := c.presence.Roster(roomId)
	hostUserId := c.presence.HostUserId(roomId)
	snap, _ := c.drawing.Snapshot(roomId)
	lock.Unlock()

	logger.Infof("[Session %s] correct answer by %s", roomId, nickname)

	c.bus.ToRoom(roomId, MakeUserUpdate(roster, hostUserId, true))
	c.bus.ToRoom(roomId, MakeCorrectAnswer(userId, nickname, word))

	scheduledRound := snap.CurrentRound
	c.sched.Schedule(AdvanceDelay, func() {
		if c.drawing.RoundMatches(roomId, scheduledRound) {
			c.AdvanceRound(roomId)
		}
	})
}

// Vote records a gallery vote during the post-game window.
func (c *Coordinator) Vote(roomId, userId string, imageIndex int) {
	counts, err := c.gallery.AddVote(roomId, imageIndex, userId)
	if err != nil {
		logger.Warningf("[Session %s] vote rejected: %v", roomId, err)
		return
	}
	c.bus.ToRoom(roomId, MakeVoteUpdate(counts))
}

// --- Word chain ---

func (c *Coordinator) startWordChain(ctx context.Context, roomId string, roster []UserSnapshot) {
	if c.chain.Started(roomId) {
		return
	}

	startWord, err := c.pickFirstWord(ctx)
	if err != nil {
		c.bus.ToRoom(roomId, MakeStartDenied(ReasonWordNotFound))
		c.bus.ToRoom(roomId, MakeGameStartDenied(ReasonWordNotFound))
		return
	}

	lock := c.roomLock(roomId)
	lock.Lock()
	snap := c.chain.StartWithDelay(roomId, startWord, roster, c.nowMillis())
	lock.Unlock()

	if err := c.dir.MarkGameStarted(ctx, roomId, true); err != nil {
		logger.Warningf("[Session %s] failed to mark game started: %v", roomId, err)
	}

	snap.LastAction = "START"
	snap.Message = "게임 시작"
	c.bus.ToRoom(roomId, snap)
	c.bus.ToRoom(roomId, MakeGameStart(string(domain.ModeWordChain), "", "", c.nowMillis()))
	c.BroadcastRoomList(ctx)
}

// pickFirstWord draws a random starting syllable and asks the dictionary
// for an unused entry, resetting the used flags once when the pool is
// exhausted and finally falling back to any entry at all.
func (c *Coordinator) pickFirstWord(ctx context.Context) (string, error) {
	firstChar := chainStartChars[c.rnd.Intn(len(chainStartChars))]

	word, err := c.dict.RandomByFirstChar(ctx, firstChar, false)
	if errors.Is(err, domain.ErrWordNotFound) {
		if resetErr := c.dict.ResetUsedFlags(ctx); resetErr != nil {
			logger.Warningf("[Session] dictionary reset failed: %v", resetErr)
		}
		word, err = c.dict.RandomByFirstChar(ctx, firstChar, false)
	}
	if errors.Is(err, domain.ErrWordNotFound) {
		word, err = c.dict.RandomByFirstChar(ctx, firstChar, true)
	}
	if err != nil {
		return "", err
	}

	if err := c.dict.MarkUsed(ctx, word); err != nil {
		logger.Warningf("[Session] failed to flag %q used: %v", word, err)
	}
	return word, nil
}

// SubmitWord handles one word-chain submission. Every outcome, accepted
// or rejected, is answered with a full state snapshot tagged ACCEPT or
// REJECT; rejections carry a reason code.
func (c *Coordinator) SubmitWord(ctx context.Context, roomId, userId, nickname, word string) {
	word = strings.TrimSpace(word)

	// The submission is always visible as a chat bubble, pass or fail.
	c.bus.ToRoom(roomId, MakeChatBubble(userId, word))

	reason := c.chain.PreCheck(roomId, userId, c.nowMillis())
	if reason == RejectNotStarted {
		return
	}

	if reason == "" {
		// Dictionary I/O happens outside the room lock; Accept re-validates.
		exists, err := c.dict.Exists(ctx, word)
		if err != nil {
			logger.Warningf("[Session %s] dictionary lookup failed for %q: %v", roomId, word, err)
			exists = false
		}
		if !exists {
			reason = RejectNotInDictionary
		}
	}

	var snap WordChainState
	if reason == "" {
		lock := c.roomLock(roomId)
		lock.Lock()
		snap, reason = c.chain.Accept(roomId, userId, word, c.nowMillis())
		lock.Unlock()
		if reason == RejectNotStarted {
			return
		}
	} else {
		var ok bool
		snap, ok = c.chain.Snapshot(roomId)
		if !ok {
			return
		}
	}

	snap.SubmitUserId = userId
	snap.SubmitNickname = nickname
	snap.SubmitWord = word
	if reason == "" {
		snap.LastAction = "ACCEPT"
		snap.Message = "통과!"
	} else {
		snap.LastAction = "REJECT"
		snap.RejectReason = reason
	}
	c.bus.ToRoom(roomId, snap)
}

// SyncWordChain re-broadcasts the current snapshot, settling any overdue
// timeout first.
func (c *Coordinator) SyncWordChain(ctx context.Context, roomId string) {
	if c.handleChainTimeout(ctx, roomId) {
		return
	}

	lock := c.roomLock(roomId)
	lock.Lock()
	c.chain.SyncPlayers(roomId, c.presence.Roster(roomId))
	snap, ok := c.chain.Snapshot(roomId)
	lock.Unlock()

	if ok {
		c.bus.ToRoom(roomId, snap)
	}
}

// WordChainChat relays a chat message in a word-chain room.
func (c *Coordinator) WordChainChat(roomId, userId, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	c.bus.ToRoom(roomId, MakeChatBubble(userId, message))
}

// CheckChainTimeouts is the periodic poll across all active word-chain
// rooms.
func (c *Coordinator) CheckChainTimeouts() {
	ctx := context.Background()
	for _, roomId := range c.chain.TimedOutRooms(c.nowMillis()) {
		c.handleChainTimeout(ctx, roomId)
	}
}

func (c *Coordinator) handleChainTimeout(ctx context.Context, roomId string) bool {
	lock := c.roomLock(roomId)
	lock.Lock()
	snap, outcome, ok := c.chain.HandleTimeout(roomId, c.nowMillis())
	lock.Unlock()
	if !ok {
		return false
	}

	if outcome.Finished {
		c.chain.Remove(roomId)
		c.bus.ToRoom(roomId, MakeWordChainEnd(ReasonTimeOver, outcome.Winners, outcome.TimeoutCount))
		if err := c.dir.MarkGameStarted(ctx, roomId, false); err != nil {
			logger.Warningf("[Session %s] failed to reset game flag: %v", roomId, err)
		}
		c.BroadcastRoomList(ctx)
		return true
	}

	snap.LastAction = "TIME_OVER"
	snap.Message = "시간 초과! 다음 턴으로 넘어갑니다."
	c.bus.ToRoom(roomId, snap)
	return true
}

// --- Room list ---

// BroadcastRoomList publishes the joinable-room list: rooms with zero
// live users are hidden, as are drawing-mode rooms that dropped under two
// users while their game is running.
func (c *Coordinator) BroadcastRoomList(ctx context.Context) {
	lobbies, err := c.dir.ListLobbies(ctx)
	if err != nil {
		logger.Warningf("[Session] room list lookup failed: %v", err)
		return
	}

	entries := make([]RoomListEntry, 0, len(lobbies))
	for _, lobby := range lobbies {
		live := c.presence.LiveCount(lobby.Id)
		if live == 0 {
			continue
		}
		if lobby.GameStarted && lobby.Mode != domain.ModeWordChain && live < 2 {
			continue
		}
		entries = append(entries, RoomListEntry{
			Id:           lobby.Id,
			Name:         lobby.Name,
			Mode:         string(lobby.Mode),
			HasPassword:  lobby.HasPassword,
			HostNickname: lobby.HostNickname,
			GameStarted:  lobby.GameStarted,
			CurrentCount: len(c.presence.Roster(lobby.Id)),
			MaxCount:     MaxRoomUsers,
		})
	}

	c.bus.ToLobby(MakeRoomList(entries))
}
