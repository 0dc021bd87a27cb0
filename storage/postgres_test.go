package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/migrations"
	"github.com/EatingIting/DRAW-IT/storage"
)

var repo *storage.PostgresRepo

func TestMain(m *testing.M) {
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine3.22",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testusername"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(5*time.Second)),
	)
	if err != nil {
		panic(err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}

	migrations.Migrate(connString)

	repo, err = storage.NewPostgresRepo(ctx, connString)
	if err != nil {
		panic(err)
	}

	code := m.Run()

	// Cleanup
	postgresContainer.Terminate(ctx)
	os.Exit(code)
}

func TestLobbies(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateLobby", func(t *testing.T) {
		err := repo.CreateLobby(ctx, domain.Lobby{
			Id:           "room-1",
			Name:         "첫 번째 방",
			Mode:         domain.ModeAnimal,
			Password:     "secret",
			HostUserId:   "u1",
			HostNickname: "kim",
		})
		assert.NoError(t, err)
	})

	t.Run("CreateLobby_DuplicateId", func(t *testing.T) {
		err := repo.CreateLobby(ctx, domain.Lobby{Id: "room-1", Name: "dup", HostUserId: "u2"})
		assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)
	})

	t.Run("CreateLobby_DuplicateName", func(t *testing.T) {
		err := repo.CreateLobby(ctx, domain.Lobby{Id: "room-other", Name: "첫 번째 방", HostUserId: "u2"})
		assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)
	})

	t.Run("GetLobby", func(t *testing.T) {
		lobby, err := repo.GetLobby(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, "첫 번째 방", lobby.Name)
		assert.Equal(t, domain.ModeAnimal, lobby.Mode)
		assert.True(t, lobby.HasPassword)
		assert.False(t, lobby.GameStarted)
	})

	t.Run("GetLobby_NotFound", func(t *testing.T) {
		_, err := repo.GetLobby(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	})

	t.Run("MarkGameStarted", func(t *testing.T) {
		require.NoError(t, repo.MarkGameStarted(ctx, "room-1", true))
		lobby, err := repo.GetLobby(ctx, "room-1")
		require.NoError(t, err)
		assert.True(t, lobby.GameStarted)
	})

	t.Run("UpdateHost", func(t *testing.T) {
		require.NoError(t, repo.UpdateHost(ctx, "room-1", "u9"))
		lobby, err := repo.GetLobby(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, "u9", lobby.HostUserId)
	})

	t.Run("UpdateHost_NotFound", func(t *testing.T) {
		assert.ErrorIs(t, repo.UpdateHost(ctx, "ghost", "u9"), domain.ErrRoomNotFound)
	})

	t.Run("UpdateLobbySettings", func(t *testing.T) {
		require.NoError(t, repo.UpdateLobbySettings(ctx, "room-1", "FOOD", "newpw"))
		lobby, err := repo.GetLobby(ctx, "room-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ModeFood, lobby.Mode)
		assert.True(t, lobby.HasPassword)

		assert.ErrorIs(t, repo.UpdateLobbySettings(ctx, "ghost", "FOOD", ""), domain.ErrRoomNotFound)
	})

	t.Run("ListLobbies", func(t *testing.T) {
		lobbies, err := repo.ListLobbies(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, lobbies)
	})

	t.Run("DeleteLobby", func(t *testing.T) {
		require.NoError(t, repo.DeleteLobby(ctx, "room-1"))
		_, err := repo.GetLobby(ctx, "room-1")
		assert.ErrorIs(t, err, domain.ErrRoomNotFound)
		assert.ErrorIs(t, repo.DeleteLobby(ctx, "room-1"), domain.ErrRoomNotFound)
	})
}

func TestDictionary(t *testing.T) {
	ctx := context.Background()

	t.Run("RandomByFirstChar", func(t *testing.T) {
		word, err := repo.RandomByFirstChar(ctx, "사", false)
		require.NoError(t, err)
		assert.Equal(t, "사", string([]rune(word)[0]))
	})

	t.Run("RandomByFirstChar_NoMatch", func(t *testing.T) {
		_, err := repo.RandomByFirstChar(ctx, "쓩", false)
		assert.ErrorIs(t, err, domain.ErrWordNotFound)
	})

	t.Run("MarkUsedAndReset", func(t *testing.T) {
		// Burn every unused word starting with 등, then verify used
		// entries come back only with includeUsed or after a reset.
		for {
			word, err := repo.RandomByFirstChar(ctx, "등", false)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrWordNotFound)
				break
			}
			require.NoError(t, repo.MarkUsed(ctx, word))
		}

		word, err := repo.RandomByFirstChar(ctx, "등", true)
		require.NoError(t, err)
		assert.NotEmpty(t, word)

		require.NoError(t, repo.ResetUsedFlags(ctx))
		_, err = repo.RandomByFirstChar(ctx, "등", false)
		assert.NoError(t, err)
	})

	t.Run("Exists", func(t *testing.T) {
		exists, err := repo.Exists(ctx, "사과")
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.Exists(ctx, "존재하지않는단어")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestMonthlyRanking(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertRankedImage", func(t *testing.T) {
		err := repo.InsertRankedImage(ctx, "abc_사자.jpg", "/ranking/images/abc_사자.jpg", "사자", "2601")
		assert.NoError(t, err)
	})

	t.Run("InsertRankedImage_Duplicate", func(t *testing.T) {
		err := repo.InsertRankedImage(ctx, "abc_사자.jpg", "/elsewhere.jpg", "사자", "2601")
		assert.ErrorIs(t, err, domain.ErrDuplicateImage)
	})

	t.Run("ExistsByImgName", func(t *testing.T) {
		exists, err := repo.ExistsByImgName(ctx, "abc_사자.jpg")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("ListMonthAndRecommend", func(t *testing.T) {
		require.NoError(t, repo.InsertRankedImage(ctx, "def_호랑이.jpg", "/ranking/images/def_호랑이.jpg", "호랑이", "2601"))

		images, err := repo.ListMonth(ctx, "2601")
		require.NoError(t, err)
		require.Len(t, images, 2)

		require.NoError(t, repo.IncrementRecommend(ctx, images[1].ImgId))
		bumped := images[1].ImgId

		images, err = repo.ListMonth(ctx, "2601")
		require.NoError(t, err)
		assert.Equal(t, bumped, images[0].ImgId) // recommend sorts first

		assert.Empty(t, mustList(t, "2512"))
	})

	t.Run("IncrementRecommend_NotFound", func(t *testing.T) {
		assert.ErrorIs(t, repo.IncrementRecommend(ctx, 999_999), domain.ErrImageNotFound)
	})
}

func mustList(t *testing.T, monthKey string) []domain.RankedImage {
	t.Helper()
	images, err := repo.ListMonth(context.Background(), monthKey)
	require.NoError(t, err)
	return images
}
