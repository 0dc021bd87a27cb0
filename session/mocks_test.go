package session

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/EatingIting/DRAW-IT/domain"
)

// --- Broadcaster ---

// recordingBroadcaster keeps every published event so tests can assert on
// ordering and payloads.
type recordingBroadcaster struct {
	mu    sync.Mutex
	Room  []roomEvent
	User  []userEvent
	Lobby []Event
}

type roomEvent struct {
	RoomId string
	Event  Event
}

type userEvent struct {
	UserId string
	Event  Event
}

func (b *recordingBroadcaster) ToRoom(roomId string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Room = append(b.Room, roomEvent{RoomId: roomId, Event: event})
}

func (b *recordingBroadcaster) ToUser(userId string, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.User = append(b.User, userEvent{UserId: userId, Event: event})
}

func (b *recordingBroadcaster) ToLobby(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Lobby = append(b.Lobby, event)
}

func (b *recordingBroadcaster) roomEventsOfType(eventType string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Event
	for _, re := range b.Room {
		if re.Event.EventType() == eventType {
			out = append(out, re.Event)
		}
	}
	return out
}

func (b *recordingBroadcaster) lastRoomEvent() Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Room) == 0 {
		return nil
	}
	return b.Room[len(b.Room)-1].Event
}

func (b *recordingBroadcaster) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Room = nil
	b.User = nil
	b.Lobby = nil
}

// --- Scheduler ---

// stubScheduler collects scheduled tasks instead of running them; tests
// fire them by hand to step through timer-driven flows deterministically.
// Tasks pop in deadline order, matching the real scheduler.
type stubScheduler struct {
	mu    sync.Mutex
	now   func() time.Time
	seq   int
	Tasks []scheduledTask
}

type scheduledTask struct {
	At   time.Time
	Seq  int
	Task func()
}

func (s *stubScheduler) Schedule(delay time.Duration, task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	s.seq++
	s.Tasks = append(s.Tasks, scheduledTask{At: now().Add(delay), Seq: s.seq, Task: task})
}

// runNext pops and runs the pending task with the earliest deadline.
func (s *stubScheduler) runNext() bool {
	s.mu.Lock()
	if len(s.Tasks) == 0 {
		s.mu.Unlock()
		return false
	}
	best := 0
	for i, task := range s.Tasks {
		if task.At.Before(s.Tasks[best].At) ||
			(task.At.Equal(s.Tasks[best].At) && task.Seq < s.Tasks[best].Seq) {
			best = i
		}
	}
	next := s.Tasks[best]
	s.Tasks = append(s.Tasks[:best], s.Tasks[best+1:]...)
	s.mu.Unlock()

	next.Task()
	return true
}

func (s *stubScheduler) runAll() {
	for s.runNext() {
	}
}

func (s *stubScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Tasks)
}

// --- Clock ---

// fakeClock is an adjustable time source for the injectable now func.
type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{at: at}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

// --- RoomDirectory ---

type MockRoomDirectory struct {
	mock.Mock
}

func (m *MockRoomDirectory) GetLobby(ctx context.Context, roomId string) (domain.Lobby, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(domain.Lobby), args.Error(1)
}

func (m *MockRoomDirectory) ListLobbies(ctx context.Context) ([]domain.Lobby, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Lobby), args.Error(1)
}

func (m *MockRoomDirectory) UpdateHost(ctx context.Context, roomId, hostUserId string) error {
	args := m.Called(ctx, roomId, hostUserId)
	return args.Error(0)
}

func (m *MockRoomDirectory) MarkGameStarted(ctx context.Context, roomId string, started bool) error {
	args := m.Called(ctx, roomId, started)
	return args.Error(0)
}

func (m *MockRoomDirectory) DeleteLobby(ctx context.Context, roomId string) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}

// --- Dictionary ---

type MockDictionary struct {
	mock.Mock
}

func (m *MockDictionary) RandomByFirstChar(ctx context.Context, firstChar string, includeUsed bool) (string, error) {
	args := m.Called(ctx, firstChar, includeUsed)
	return args.String(0), args.Error(1)
}

func (m *MockDictionary) MarkUsed(ctx context.Context, word string) error {
	args := m.Called(ctx, word)
	return args.Error(0)
}

func (m *MockDictionary) ResetUsedFlags(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockDictionary) Exists(ctx context.Context, word string) (bool, error) {
	args := m.Called(ctx, word)
	return args.Bool(0), args.Error(1)
}

// --- GalleryStore ---

type MockGalleryStore struct {
	mock.Mock
}

func (m *MockGalleryStore) VoteCounts(roomId string) []int {
	args := m.Called(roomId)
	return args.Get(0).([]int)
}

func (m *MockGalleryStore) AddVote(roomId string, imageIndex int, userId string) ([]int, error) {
	args := m.Called(roomId, imageIndex, userId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockGalleryStore) Winners(roomId string) []domain.WinnerImage {
	args := m.Called(roomId)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.WinnerImage)
}

func (m *MockGalleryStore) ClearRoom(roomId string) {
	m.Called(roomId)
}

// --- RankingSink ---

type MockRankingSink struct {
	mock.Mock
}

func (m *MockRankingSink) SaveWinners(ctx context.Context, winners []domain.WinnerImage) {
	m.Called(ctx, winners)
}
