// Package session is the real-time game-session coordinator: per-room
// presence with reconnect tolerance, the drawing-round state machine and
// the word-chain turn state machine, driven by inbound player actions and
// fired scheduled tasks.
package session

import (
	"context"
	"time"

	"github.com/EatingIting/DRAW-IT/domain"
)

// --- Design values ---
const (
	GraceWindow = 1500 * time.Millisecond // disconnect age after which a sweep removes the entry
	SweepPeriod = time.Second
	LeadIn      = 3 * time.Second // pre-round / pre-turn countdown during which timers are inert

	RoundDuration = 60 * time.Second
	MaxRounds     = 3
	AdvanceDelay  = 4 * time.Second // reveal window after a correct answer
	VoteWindow    = 30 * time.Second
	StrokeLogCap  = 5000

	GuesserPoints = 10
	DrawerPoints  = 5

	ChainPoints      = 10
	InitialTurnLimit = 15.0 // seconds
	TurnLimitStep    = 0.5
	TurnLimitFloor   = 5.0
	MaxTimeoutCount  = 5
	TimeoutPoll      = 500 * time.Millisecond

	MaxRoomUsers = 10
)

// Scheduler is the shared delayed-task facility. Fired tasks re-enter the
// coordinator's handling path; they must re-validate round/turn indices
// because the world may have moved on by the time they run.
type Scheduler interface {
	Schedule(delay time.Duration, task func())
}

// Broadcaster is the outbound half of the pub/sub transport boundary.
// ToRoom fans out to every member of a room topic, ToUser targets one
// user's private queue, ToLobby reaches everyone on the room-list screen.
type Broadcaster interface {
	ToRoom(roomId string, event Event)
	ToUser(userId string, event Event)
	ToLobby(event Event)
}

// RoomDirectory is the persistent room store. Calls may fail; failures are
// logged and must never corrupt in-memory session state.
type RoomDirectory interface {
	GetLobby(ctx context.Context, roomId string) (domain.Lobby, error)
	ListLobbies(ctx context.Context) ([]domain.Lobby, error)
	UpdateHost(ctx context.Context, roomId, hostUserId string) error
	MarkGameStarted(ctx context.Context, roomId string, started bool) error
	DeleteLobby(ctx context.Context, roomId string) error
}

// Dictionary looks up word-chain vocabulary. Random picks exclude words
// already flagged used unless includeUsed is set.
type Dictionary interface {
	RandomByFirstChar(ctx context.Context, firstChar string, includeUsed bool) (string, error)
	MarkUsed(ctx context.Context, word string) error
	ResetUsedFlags(ctx context.Context) error
	Exists(ctx context.Context, word string) (bool, error)
}

// GalleryStore collects round images and votes during a drawing game.
type GalleryStore interface {
	VoteCounts(roomId string) []int
	AddVote(roomId string, imageIndex int, userId string) ([]int, error)
	Winners(roomId string) []domain.WinnerImage
	ClearRoom(roomId string)
}

// RankingSink persists vote winners into the monthly ranking.
type RankingSink interface {
	SaveWinners(ctx context.Context, winners []domain.WinnerImage)
}
