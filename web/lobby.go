// Package web is the REST surface: room directory, gallery images and
// the monthly ranking. Everything real-time goes over the websocket in
// transport; this package only covers what the client fetches before
// or outside a session.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/session"
)

var (
	ErrInvalidRequestFormatStr = "bad-request-format"
	ErrRoomNameRequiredStr     = "room-name-required"
	ErrRoomNotFoundStr         = "room-not-found"
	ErrRoomAlreadyExistsStr    = "room-already-exists"
	ErrGameAlreadyStartedStr   = "game-already-started"
	ErrWrongPasswordStr        = "wrong-password"
	ErrNotHostStr              = "not-host"
	ErrRoomFullStr             = "room-full"
	ErrImageNotFoundStr        = "image-not-found"
	ErrInvalidImageStr         = "invalid-image"
	ErrServerTimeoutStr        = "server-timeout"
	ErrUnknownStr              = "unknown-error"
)

type LobbyDirectory interface {
	CreateLobby(ctx context.Context, lobby domain.Lobby) error
	GetLobby(ctx context.Context, roomId string) (domain.Lobby, error)
	ListLobbies(ctx context.Context) ([]domain.Lobby, error)
	UpdateLobbySettings(ctx context.Context, roomId, mode, password string) error
}

// Occupancy reports live players per room. The presence store provides
// this; handlers only need the count.
type Occupancy interface {
	LiveCount(roomId string) int
}

type lobbyHandler struct {
	directory LobbyDirectory
	occupancy Occupancy
}

func NewLobbyHandler(directory LobbyDirectory, occupancy Occupancy) *lobbyHandler {
	return &lobbyHandler{directory: directory, occupancy: occupancy}
}

type roomSummary struct {
	Id           string `json:"id"`
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	HasPassword  bool   `json:"hasPassword"`
	HostNickname string `json:"hostNickname"`
	GameStarted  bool   `json:"gameStarted"`
	CurrentCount int    `json:"currentCount"`
	MaxCount     int    `json:"maxCount"`
}

func (h *lobbyHandler) CreateRoomHandler(ctx *gin.Context) {
	var body struct {
		Name         string `json:"name"`
		Mode         string `json:"mode"`
		Password     string `json:"password"`
		HostUserId   string `json:"hostUserId"`
		HostNickname string `json:"hostNickname"`
	}

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}
	if body.Name == "" || body.HostUserId == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrRoomNameRequiredStr})
		return
	}

	lobby := domain.Lobby{
		Id:           uuid.NewString(),
		Name:         body.Name,
		Mode:         domain.NormalizeMode(body.Mode),
		Password:     body.Password,
		HostUserId:   body.HostUserId,
		HostNickname: body.HostNickname,
		CreatedAt:    time.Now(),
	}

	err := h.directory.CreateLobby(ctx.Request.Context(), lobby)

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomAlreadyExists):
			ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrRoomAlreadyExistsStr})
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"roomId": lobby.Id, "mode": lobby.Mode})
}

func (h *lobbyHandler) ListRoomsHandler(ctx *gin.Context) {
	lobbies, err := h.directory.ListLobbies(ctx.Request.Context())

	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	rooms := make([]roomSummary, 0, len(lobbies))
	for _, lobby := range lobbies {
		rooms = append(rooms, roomSummary{
			Id:           lobby.Id,
			Name:         lobby.Name,
			Mode:         string(lobby.Mode),
			HasPassword:  lobby.HasPassword,
			HostNickname: lobby.HostNickname,
			GameStarted:  lobby.GameStarted,
			CurrentCount: h.occupancy.LiveCount(lobby.Id),
			MaxCount:     session.MaxRoomUsers,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

// UpdateRoomHandler lets the host change mode and password while the
// room is waiting. Only the current host may do it.
func (h *lobbyHandler) UpdateRoomHandler(ctx *gin.Context) {
	roomId := ctx.Param("roomId")

	var body struct {
		UserId   string `json:"userId"`
		Mode     string `json:"mode"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}

	lobby, err := h.directory.GetLobby(ctx.Request.Context(), roomId)

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRoomNotFoundStr})
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	if lobby.HostUserId != body.UserId {
		ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrNotHostStr})
		return
	}
	if lobby.GameStarted {
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrGameAlreadyStartedStr})
		return
	}

	mode := domain.NormalizeMode(body.Mode)
	err = h.directory.UpdateLobbySettings(ctx.Request.Context(), roomId, string(mode), body.Password)

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRoomNotFoundStr})
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"roomId": roomId, "mode": mode})
}

// JoinCheckHandler validates a join before the client opens a socket:
// room exists, password matches, seat available, game not underway.
func (h *lobbyHandler) JoinCheckHandler(ctx *gin.Context) {
	roomId := ctx.Param("roomId")

	var body struct {
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ErrInvalidRequestFormatStr})
		return
	}

	lobby, err := h.directory.GetLobby(ctx.Request.Context(), roomId)

	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": ErrRoomNotFoundStr})
		case errors.Is(err, context.DeadlineExceeded):
			ctx.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{"error": ErrServerTimeoutStr})
		case errors.Is(err, context.Canceled):
			ctx.AbortWithStatus(499)
		default:
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrUnknownStr})
		}
		return
	}

	if lobby.Password != "" && lobby.Password != body.Password {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrWrongPasswordStr})
		return
	}
	if lobby.GameStarted && lobby.Mode != domain.ModeWordChain {
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrGameAlreadyStartedStr})
		return
	}
	if h.occupancy.LiveCount(roomId) >= session.MaxRoomUsers {
		ctx.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ErrRoomFullStr})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"roomId": lobby.Id, "mode": lobby.Mode})
}
