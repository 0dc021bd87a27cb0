package web

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/gallery"
)

type MockLobbyDirectory struct {
	mock.Mock
}

func (m *MockLobbyDirectory) CreateLobby(ctx context.Context, lobby domain.Lobby) error {
	args := m.Called(ctx, lobby)
	return args.Error(0)
}

func (m *MockLobbyDirectory) GetLobby(ctx context.Context, roomId string) (domain.Lobby, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).(domain.Lobby), args.Error(1)
}

func (m *MockLobbyDirectory) ListLobbies(ctx context.Context) ([]domain.Lobby, error) {
	args := m.Called(ctx)
	lobbies, _ := args.Get(0).([]domain.Lobby)
	return lobbies, args.Error(1)
}

func (m *MockLobbyDirectory) UpdateLobbySettings(ctx context.Context, roomId, mode, password string) error {
	args := m.Called(ctx, roomId, mode, password)
	return args.Error(0)
}

type MockOccupancy struct {
	mock.Mock
}

func (m *MockOccupancy) LiveCount(roomId string) int {
	args := m.Called(roomId)
	return args.Int(0)
}

type MockGalleryStore struct {
	mock.Mock
}

func (m *MockGalleryStore) SaveImage(roomId, keyword, userId, nickname, data string) (int, error) {
	args := m.Called(roomId, keyword, userId, nickname, data)
	return args.Int(0), args.Error(1)
}

func (m *MockGalleryStore) Images(roomId string) []gallery.ImageInfo {
	args := m.Called(roomId)
	images, _ := args.Get(0).([]gallery.ImageInfo)
	return images
}

func (m *MockGalleryStore) FilePath(roomId, filename string) (string, error) {
	args := m.Called(roomId, filename)
	return args.String(0), args.Error(1)
}

type MockRankingRepo struct {
	mock.Mock
}

func (m *MockRankingRepo) ListMonth(ctx context.Context, monthKey string) ([]domain.RankedImage, error) {
	args := m.Called(ctx, monthKey)
	images, _ := args.Get(0).([]domain.RankedImage)
	return images, args.Error(1)
}

func (m *MockRankingRepo) IncrementRecommend(ctx context.Context, imgId int64) error {
	args := m.Called(ctx, imgId)
	return args.Error(0)
}

type MockRankingFiles struct {
	mock.Mock
}

func (m *MockRankingFiles) MonthKey() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRankingFiles) ImagePath(monthKey, imgName string) (string, error) {
	args := m.Called(monthKey, imgName)
	return args.String(0), args.Error(1)
}
