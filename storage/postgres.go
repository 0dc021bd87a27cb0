// Package storage is the PostgreSQL persistence layer: the room
// directory, the word-chain dictionary and the monthly image ranking.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/EatingIting/DRAW-IT/domain"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func NewPostgresRepoFromPool(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// --- Room directory ---

func (r *PostgresRepo) CreateLobby(ctx context.Context, lobby domain.Lobby) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO lobbies(id, name, mode, password, host_user_id, host_nickname, game_started)
		 VALUES($1, $2, $3, $4, $5, $6, false)`,
		lobby.Id, lobby.Name, string(lobby.Mode), lobby.Password, lobby.HostUserId, lobby.HostNickname)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrRoomAlreadyExists
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (r *PostgresRepo) GetLobby(ctx context.Context, roomId string) (domain.Lobby, error) {
	lobby := domain.Lobby{Id: roomId}
	var mode string

	row := r.pool.QueryRow(ctx,
		`SELECT name, mode, password, host_user_id, host_nickname, game_started, created_at
		 FROM lobbies WHERE id = $1`, roomId)

	err := row.Scan(&lobby.Name, &mode, &lobby.Password, &lobby.HostUserId,
		&lobby.HostNickname, &lobby.GameStarted, &lobby.CreatedAt)

	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return domain.Lobby{}, domain.ErrRoomNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return domain.Lobby{}, err
		default:
			return domain.Lobby{}, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}

	lobby.Mode = domain.GameMode(mode)
	lobby.HasPassword = lobby.Password != ""
	return lobby, nil
}

func (r *PostgresRepo) ListLobbies(ctx context.Context) ([]domain.Lobby, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, mode, password, host_user_id, host_nickname, game_started, created_at
		 FROM lobbies ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	var lobbies []domain.Lobby
	for rows.Next() {
		var lobby domain.Lobby
		var mode string
		if err := rows.Scan(&lobby.Id, &lobby.Name, &mode, &lobby.Password,
			&lobby.HostUserId, &lobby.HostNickname, &lobby.GameStarted, &lobby.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		lobby.Mode = domain.GameMode(mode)
		lobby.HasPassword = lobby.Password != ""
		lobbies = append(lobbies, lobby)
	}
	return lobbies, rows.Err()
}

func (r *PostgresRepo) UpdateHost(ctx context.Context, roomId, hostUserId string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lobbies SET host_user_id = $2 WHERE id = $1`, roomId, hostUserId)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRepo) MarkGameStarted(ctx context.Context, roomId string, started bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lobbies SET game_started = $2 WHERE id = $1`, roomId, started)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRepo) UpdateLobbySettings(ctx context.Context, roomId, mode, password string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lobbies SET mode = $2, password = $3 WHERE id = $1`, roomId, mode, password)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *PostgresRepo) DeleteLobby(ctx context.Context, roomId string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lobbies WHERE id = $1`, roomId)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// --- Word dictionary ---

func (r *PostgresRepo) RandomByFirstChar(ctx context.Context, firstChar string, includeUsed bool) (string, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT word FROM word_dictionary
		 WHERE first_char = $1 AND (used = false OR $2)
		 ORDER BY RANDOM() LIMIT 1`, firstChar, includeUsed)

	var word string
	err := row.Scan(&word)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return "", domain.ErrWordNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return "", err
		default:
			return "", fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
	}
	return word, nil
}

func (r *PostgresRepo) MarkUsed(ctx context.Context, word string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE word_dictionary SET used = true WHERE word = $1`, word)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (r *PostgresRepo) ResetUsedFlags(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `UPDATE word_dictionary SET used = false WHERE used = true`)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (r *PostgresRepo) Exists(ctx context.Context, word string) (bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM word_dictionary WHERE word = $1)`, word)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return exists, nil
}

// --- Monthly ranking ---

func (r *PostgresRepo) ExistsByImgName(ctx context.Context, imgName string) (bool, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM monthly_ranking WHERE img_name = $1)`, imgName)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return exists, nil
}

func (r *PostgresRepo) InsertRankedImage(ctx context.Context, imgName, imgUrl, topic, monthKey string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO monthly_ranking(img_name, img_url, topic, month_key)
		 VALUES($1, $2, $3, $4)`, imgName, imgUrl, topic, monthKey)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrDuplicateImage
		}
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	return nil
}

func (r *PostgresRepo) ListMonth(ctx context.Context, monthKey string) ([]domain.RankedImage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT img_id, img_name, img_url, topic, recommend, reg_date
		 FROM monthly_ranking WHERE month_key = $1
		 ORDER BY recommend DESC, reg_date`, monthKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	var images []domain.RankedImage
	for rows.Next() {
		var img domain.RankedImage
		if err := rows.Scan(&img.ImgId, &img.ImgName, &img.ImgUrl, &img.Topic,
			&img.Recommend, &img.RegDate); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *PostgresRepo) IncrementRecommend(ctx context.Context, imgId int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE monthly_ranking SET recommend = recommend + 1 WHERE img_id = $1`, imgId)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedDatabaseError, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}
