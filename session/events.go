package session

// Event is one member of the closed set of outbound broadcasts. Every
// variant carries its wire tag in Type so clients can switch on it.
type Event interface {
	EventType() string
}

type UserUpdate struct {
	Type        string         `json:"type"`
	Users       []UserSnapshot `json:"users"`
	HostUserId  string         `json:"hostUserId,omitempty"`
	GameStarted bool           `json:"gameStarted"`

	// Filled only when a join lands mid-game, so the late joiner can
	// resynchronize without a dedicated round-trip.
	DrawerUserId string `json:"drawerUserId,omitempty"`
	Word         string `json:"word,omitempty"`
	RoundEndTime int64  `json:"roundEndTime,omitempty"`
	ServerNow    int64  `json:"serverNow,omitempty"`
}

func (e UserUpdate) EventType() string { return e.Type }

func MakeUserUpdate(users []UserSnapshot, hostUserId string, gameStarted bool) UserUpdate {
	return UserUpdate{Type: "USER_UPDATE", Users: users, HostUserId: hostUserId, GameStarted: gameStarted}
}

type RoomListEntry struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	HasPassword  bool   `json:"hasPassword"`
	HostNickname string `json:"hostNickname"`
	GameStarted  bool   `json:"gameStarted"`
	CurrentCount int    `json:"currentCount"`
	MaxCount     int    `json:"maxCount"`
}

type RoomList struct {
	Type  string          `json:"type"`
	Rooms []RoomListEntry `json:"rooms"`
}

func (e RoomList) EventType() string { return e.Type }

func MakeRoomList(rooms []RoomListEntry) RoomList {
	return RoomList{Type: "ROOM_LIST", Rooms: rooms}
}

type GameStart struct {
	Type         string `json:"type"`
	Mode         string `json:"mode"`
	DrawerUserId string `json:"drawerUserId,omitempty"`
	Word         string `json:"word,omitempty"`
	GameStarted  bool   `json:"gameStarted"`
	RoundEndTime int64  `json:"roundEndTime"`
	ServerNow    int64  `json:"serverNow"`
}

func (e GameStart) EventType() string { return e.Type }

func MakeGameStart(mode, drawerUserId, word string, serverNow int64) GameStart {
	return GameStart{Type: "GAME_START", Mode: mode, DrawerUserId: drawerUserId, Word: word, GameStarted: true, RoundEndTime: 0, ServerNow: serverNow}
}

type GameStartDenied struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (e GameStartDenied) EventType() string { return e.Type }

func MakeGameStartDenied(reason string) GameStartDenied {
	return GameStartDenied{Type: "GAME_START_DENIED", Reason: reason}
}

type RoundStart struct {
	Type         string `json:"type"`
	RoundEndTime int64  `json:"roundEndTime"`
	ServerNow    int64  `json:"serverNow"`
}

func (e RoundStart) EventType() string { return e.Type }

func MakeRoundStart(roundEndTime, serverNow int64) RoundStart {
	return RoundStart{Type: "ROUND_START", RoundEndTime: roundEndTime, ServerNow: serverNow}
}

type DrawerChanged struct {
	Type         string `json:"type"`
	DrawerUserId string `json:"drawerUserId"`
	Word         string `json:"word,omitempty"`
	CurrentRound int    `json:"currentRound"`
	RoundEndTime int64  `json:"roundEndTime"`
	ServerNow    int64  `json:"serverNow"`
}

func (e DrawerChanged) EventType() string { return e.Type }

func MakeDrawerChanged(drawerUserId, word string, currentRound int, serverNow int64) DrawerChanged {
	return DrawerChanged{Type: "DRAWER_CHANGED", DrawerUserId: drawerUserId, Word: word, CurrentRound: currentRound, RoundEndTime: 0, ServerNow: serverNow}
}

type TimeOver struct {
	Type string `json:"type"`
}

func (e TimeOver) EventType() string { return e.Type }

func MakeTimeOver() TimeOver { return TimeOver{Type: "TIME_OVER"} }

type CorrectAnswer struct {
	Type           string `json:"type"`
	WinnerUserId   string `json:"winnerUserId"`
	WinnerNickname string `json:"winnerNickname"`
	Answer         string `json:"answer"`
}

func (e CorrectAnswer) EventType() string { return e.Type }

func MakeCorrectAnswer(winnerUserId, winnerNickname, answer string) CorrectAnswer {
	return CorrectAnswer{Type: "CORRECT_ANSWER", WinnerUserId: winnerUserId, WinnerNickname: winnerNickname, Answer: answer}
}

type GameOver struct {
	Type        string `json:"type"`
	TotalRounds int    `json:"totalRounds"`
}

func (e GameOver) EventType() string { return e.Type }

func MakeGameOver(totalRounds int) GameOver {
	return GameOver{Type: "GAME_OVER", TotalRounds: totalRounds}
}

type DrawBroadcast struct {
	Type  string    `json:"type"`
	Event DrawEvent `json:"event"`
}

func (e DrawBroadcast) EventType() string { return e.Type }

func MakeDrawBroadcast(evt DrawEvent) DrawBroadcast {
	return DrawBroadcast{Type: "DRAW", Event: evt}
}

type ClearBroadcast struct {
	Type   string `json:"type"`
	UserId string `json:"userId"`
}

func (e ClearBroadcast) EventType() string { return e.Type }

func MakeClearBroadcast(userId string) ClearBroadcast {
	return ClearBroadcast{Type: "CLEAR", UserId: userId}
}

type ChatBubble struct {
	Type    string `json:"type"`
	UserId  string `json:"userId"`
	Message string `json:"message"`
}

func (e ChatBubble) EventType() string { return e.Type }

func MakeChatBubble(userId, message string) ChatBubble {
	return ChatBubble{Type: "CHAT_BUBBLE", UserId: userId, Message: message}
}

// DrawHistory is delivered to a single late joiner: the active stroke log
// plus the redo stack so local undo/redo keeps working mid-round.
type DrawHistory struct {
	Type      string      `json:"type"`
	History   []DrawEvent `json:"history"`
	RedoStack []DrawEvent `json:"redoStack"`
}

func (e DrawHistory) EventType() string { return e.Type }

func MakeDrawHistory(history, redoStack []DrawEvent) DrawHistory {
	return DrawHistory{Type: "DRAW_HISTORY", History: history, RedoStack: redoStack}
}

type VoteUpdate struct {
	Type       string `json:"type"`
	VoteCounts []int  `json:"voteCounts"`
}

func (e VoteUpdate) EventType() string { return e.Type }

func MakeVoteUpdate(voteCounts []int) VoteUpdate {
	return VoteUpdate{Type: "VOTE_UPDATE", VoteCounts: voteCounts}
}

// WordChainState is the full word-chain snapshot; LastAction tags what
// just happened (START, ACCEPT, REJECT, TIME_OVER or empty for a sync).
type WordChainState struct {
	Type           string            `json:"type"`
	Started        bool              `json:"started"`
	CurrentWord    string            `json:"currentWord"`
	PlayerIds      []string          `json:"playerIds"`
	NickById       map[string]string `json:"nickById"`
	TurnUserId     string            `json:"turnUserId"`
	Round          int               `json:"round"`
	TurnStartAt    int64             `json:"turnStartAt"`
	TurnTimeLimit  float64           `json:"turnTimeLimit"`
	ScoreByUserId  map[string]int    `json:"scoreByUserId"`
	TimeoutCount   int               `json:"timeoutCount"`
	LastAction     string            `json:"lastAction,omitempty"`
	Message        string            `json:"message,omitempty"`
	RejectReason   string            `json:"rejectReason,omitempty"`
	SubmitUserId   string            `json:"submitUserId,omitempty"`
	SubmitNickname string            `json:"submitNickname,omitempty"`
	SubmitWord     string            `json:"submitWord,omitempty"`
}

func (e WordChainState) EventType() string { return e.Type }

type WordChainEnd struct {
	Type         string   `json:"type"`
	Reason       string   `json:"reason"`
	Winners      []string `json:"winners,omitempty"`
	TimeoutCount int      `json:"timeoutCount,omitempty"`
}

func (e WordChainEnd) EventType() string { return e.Type }

func MakeWordChainEnd(reason string, winners []string, timeoutCount int) WordChainEnd {
	return WordChainEnd{Type: "WORD_CHAIN_END", Reason: reason, Winners: winners, TimeoutCount: timeoutCount}
}

type WordChainTurnUserLeft struct {
	Type          string `json:"type"`
	NewTurnUserId string `json:"newTurnUserId"`
	TurnStartAt   int64  `json:"turnStartAt"`
}

func (e WordChainTurnUserLeft) EventType() string { return e.Type }

func MakeWordChainTurnUserLeft(newTurnUserId string, turnStartAt int64) WordChainTurnUserLeft {
	return WordChainTurnUserLeft{Type: "WORD_CHAIN_TURN_USER_LEFT", NewTurnUserId: newTurnUserId, TurnStartAt: turnStartAt}
}

type StartDenied struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

func (e StartDenied) EventType() string { return e.Type }

func MakeStartDenied(reason string) StartDenied {
	return StartDenied{Type: "START_DENIED", Reason: reason}
}
