package domain

import "time"

type GameMode string

const (
	ModeRandom    GameMode = "RANDOM"
	ModeAnimal    GameMode = "ANIMAL"
	ModePokemon   GameMode = "POKEMON"
	ModeFood      GameMode = "FOOD"
	ModeJob       GameMode = "JOB"
	ModeSport     GameMode = "SPORT"
	ModeObject    GameMode = "OBJECT"
	ModeWordChain GameMode = "WORD_CHAIN"
)

// NormalizeMode folds user-provided mode strings onto the closed mode set.
// Unknown values fall back to RANDOM.
func NormalizeMode(raw string) GameMode {
	switch raw {
	case "RANDOM", "random":
		return ModeRandom
	case "ANIMAL", "animal":
		return ModeAnimal
	case "POKEMON", "pokemon":
		return ModePokemon
	case "FOOD", "food":
		return ModeFood
	case "JOB", "job":
		return ModeJob
	case "SPORT", "sport":
		return ModeSport
	case "OBJECT", "object":
		return ModeObject
	case "WORD_CHAIN", "WORDCHAIN", "wordchain", "끝말잇기":
		return ModeWordChain
	default:
		return ModeRandom
	}
}

// Lobby is a row of the room directory. The session core only ever flips
// GameStarted and HostUserId; everything else belongs to the web layer.
type Lobby struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	Mode         GameMode  `json:"mode"`
	Password     string    `json:"-"`
	HasPassword  bool      `json:"hasPassword"`
	HostUserId   string    `json:"hostUserId"`
	HostNickname string    `json:"hostNickname"`
	GameStarted  bool      `json:"gameStarted"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WinnerImage is what the gallery hands to the monthly-ranking sink after
// a vote window closes.
type WinnerImage struct {
	LobbyId  string
	Filename string
	Keyword  string
	UserId   string
	Nickname string
}

// RankedImage is a row of the monthly_ranking table.
type RankedImage struct {
	ImgId     int64     `json:"imgId"`
	ImgName   string    `json:"-"`
	ImgUrl    string    `json:"imgUrl"`
	Topic     string    `json:"topic"`
	Recommend int64     `json:"recommend"`
	RegDate   time.Time `json:"regDate"`
}
