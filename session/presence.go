package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/EatingIting/DRAW-IT/logger"
)

// UserSnapshot is the externally visible view of a presence entry.
type UserSnapshot struct {
	UserId       string `json:"userId"`
	Nickname     string `json:"nickname"`
	Host         bool   `json:"host"`
	Score        int    `json:"score"`
	ProfileImage string `json:"profileImage"`
	Connected    bool   `json:"connected"`
}

type presenceEntry struct {
	userId       string
	nickname     string
	host         bool
	profileImage string
	sessionId    string
	disconnectAt time.Time // zero while the connection is live
	joinSeq      int
	score        int
}

type sessionRef struct {
	roomId string
	userId string
}

// Removal describes one entry taken out of the store, either by an
// explicit leave or by the sweep. The caller performs the engine and
// directory side effects.
type Removal struct {
	RoomId        string
	UserId        string
	Nickname      string
	WasHost       bool
	NewHostUserId string // empty when no promotion happened
	RoomEmptied   bool
}

// PresenceStore tracks which users are in which room. A disconnect only
// stamps the entry; the periodic sweep removes it once the grace window
// has elapsed, so page reloads are invisible to other players.
type PresenceStore struct {
	mu       sync.Mutex
	rooms    map[string]map[string]*presenceEntry
	sessions map[string]sessionRef
	joinSeq  int
	grace    time.Duration
	now      func() time.Time
}

func NewPresenceStore(grace time.Duration, now func() time.Time) *PresenceStore {
	if now == nil {
		now = time.Now
	}
	return &PresenceStore{
		rooms:    make(map[string]map[string]*presenceEntry),
		sessions: make(map[string]sessionRef),
		grace:    grace,
		now:      now,
	}
}

// AddOrRefresh creates an entry for a new user (the first entrant becomes
// host, nickname collisions get a "(n)" suffix) or, on reconnect, clears
// the disconnect stamp and re-binds the session id.
func (ps *PresenceStore) AddOrRefresh(roomId, sessionId, userId, nickname string) UserSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	users, ok := ps.rooms[roomId]
	if !ok {
		users = make(map[string]*presenceEntry)
		ps.rooms[roomId] = users
	}

	entry, exists := users[userId]
	if exists {
		// Reconnect inside the grace window: same entry, fresh session.
		delete(ps.sessions, entry.sessionId)
		entry.sessionId = sessionId
		entry.disconnectAt = time.Time{}
	} else {
		ps.joinSeq++
		entry = &presenceEntry{
			userId:       userId,
			nickname:     ps.dedupNicknameLocked(users, nickname),
			host:         len(users) == 0,
			profileImage: "default",
			sessionId:    sessionId,
			joinSeq:      ps.joinSeq,
		}
		users[userId] = entry
		logger.Infof("[Presence %s] user %s joined as %q (host=%v)", roomId, userId, entry.nickname, entry.host)
	}

	ps.sessions[sessionId] = sessionRef{roomId: roomId, userId: userId}
	return snapshotOf(entry)
}

func (ps *PresenceStore) dedupNicknameLocked(users map[string]*presenceEntry, nickname string) string {
	taken := func(nick string) bool {
		for _, e := range users {
			if e.nickname == nick {
				return true
			}
		}
		return false
	}
	if !taken(nickname) {
		return nickname
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s(%d)", nickname, n)
		if !taken(candidate) {
			return candidate
		}
	}
}

// MarkDisconnected stamps the entry owning this session. No removal and
// no broadcast happens here; the sweep decides later.
func (ps *PresenceStore) MarkDisconnected(sessionId string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ref, ok := ps.sessions[sessionId]
	if !ok {
		return
	}
	delete(ps.sessions, sessionId)

	if entry, ok := ps.rooms[ref.roomId][ref.userId]; ok && entry.sessionId == sessionId {
		entry.disconnectAt = ps.now()
	}
}

// Sweep removes every entry whose disconnect age exceeds the grace
// window, promoting a new host when needed. Returned removals are in no
// particular room order.
func (ps *PresenceStore) Sweep() []Removal {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := ps.now()
	var removals []Removal

	for roomId, users := range ps.rooms {
		for userId, entry := range users {
			if entry.disconnectAt.IsZero() || now.Sub(entry.disconnectAt) <= ps.grace {
				continue
			}
			removals = append(removals, ps.removeLocked(roomId, users, userId, entry))
		}
	}
	return removals
}

// Leave is the explicit exit path: same removal and host-succession logic
// as the sweep, but immediate.
func (ps *PresenceStore) Leave(roomId, userId string) (Removal, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	users, ok := ps.rooms[roomId]
	if !ok {
		return Removal{}, false
	}
	entry, ok := users[userId]
	if !ok {
		return Removal{}, false
	}
	return ps.removeLocked(roomId, users, userId, entry), true
}

func (ps *PresenceStore) removeLocked(roomId string, users map[string]*presenceEntry, userId string, entry *presenceEntry) Removal {
	delete(users, userId)
	delete(ps.sessions, entry.sessionId)

	removal := Removal{
		RoomId:   roomId,
		UserId:   userId,
		Nickname: entry.nickname,
		WasHost:  entry.host,
	}

	if len(users) == 0 {
		delete(ps.rooms, roomId)
		removal.RoomEmptied = true
		logger.Infof("[Presence %s] room emptied", roomId)
		return removal
	}

	if entry.host {
		next := successorLocked(users)
		next.host = true
		removal.NewHostUserId = next.userId
		logger.Infof("[Presence %s] host left, promoted %s", roomId, next.userId)
	}
	return removal
}

// successorLocked picks the next host: remaining hosts first (there are
// none in practice), then lowest join order.
func successorLocked(users map[string]*presenceEntry) *presenceEntry {
	var best *presenceEntry
	for _, e := range users {
		if best == nil {
			best = e
			continue
		}
		if e.host != best.host {
			if e.host {
				best = e
			}
			continue
		}
		if e.joinSeq < best.joinSeq {
			best = e
		}
	}
	return best
}

func (ps *PresenceStore) AddScore(roomId, userId string, delta int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if entry, ok := ps.rooms[roomId][userId]; ok {
		entry.score += delta
	}
}

// UpdateProfile changes nickname and avatar. Nickname collisions are
// resolved the same way as on join.
func (ps *PresenceStore) UpdateProfile(roomId, userId, nickname, profileImage string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	users, ok := ps.rooms[roomId]
	if !ok {
		return false
	}
	entry, ok := users[userId]
	if !ok {
		return false
	}
	if nickname != "" && nickname != entry.nickname {
		others := make(map[string]*presenceEntry, len(users))
		for id, e := range users {
			if id != userId {
				others[id] = e
			}
		}
		entry.nickname = ps.dedupNicknameLocked(others, nickname)
	}
	if profileImage != "" {
		entry.profileImage = profileImage
	}
	return true
}

// Roster returns the room's entries in stable order: host first, then by
// join order, so client lists never flicker.
func (ps *PresenceStore) Roster(roomId string) []UserSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	users, ok := ps.rooms[roomId]
	if !ok {
		return nil
	}

	entries := make([]*presenceEntry, 0, len(users))
	for _, e := range users {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].host != entries[j].host {
			return entries[i].host
		}
		return entries[i].joinSeq < entries[j].joinSeq
	})

	roster := make([]UserSnapshot, 0, len(entries))
	for _, e := range entries {
		roster = append(roster, snapshotOf(e))
	}
	return roster
}

// LiveCount counts entries whose connection is currently up.
func (ps *PresenceStore) LiveCount(roomId string) int {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	count := 0
	for _, e := range ps.rooms[roomId] {
		if e.disconnectAt.IsZero() {
			count++
		}
	}
	return count
}

func (ps *PresenceStore) HostUserId(roomId string) string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for _, e := range ps.rooms[roomId] {
		if e.host {
			return e.userId
		}
	}
	return ""
}

func (ps *PresenceStore) Nickname(roomId, userId string) string {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if entry, ok := ps.rooms[roomId][userId]; ok {
		return entry.nickname
	}
	return ""
}

func snapshotOf(e *presenceEntry) UserSnapshot {
	return UserSnapshot{
		UserId:       e.userId,
		Nickname:     e.nickname,
		Host:         e.host,
		Score:        e.score,
		ProfileImage: e.profileImage,
		Connected:    e.disconnectAt.IsZero(),
	}
}
