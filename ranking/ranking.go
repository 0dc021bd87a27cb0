// Package ranking persists post-game vote winners into the monthly
// ranking: the image file moves into the month's directory and a row
// lands in monthly_ranking.
package ranking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/logger"
)

// Store is the persistence surface the service needs.
type Store interface {
	ExistsByImgName(ctx context.Context, imgName string) (bool, error)
	InsertRankedImage(ctx context.Context, imgName, imgUrl, topic, monthKey string) error
}

type Service struct {
	store   Store
	baseDir string
	now     func() time.Time
}

func NewService(store Store, baseDir string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, baseDir: baseDir, now: now}
}

// MonthKey is the yyMM bucket images are ranked under.
func (s *Service) MonthKey() string {
	return s.now().Format("0601")
}

// SaveWinners files each winner under the current month. One broken
// winner is skipped and logged; the rest of the batch still lands.
func (s *Service) SaveWinners(ctx context.Context, winners []domain.WinnerImage) {
	monthKey := s.MonthKey()
	destDir := filepath.Join(s.baseDir, monthKey)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		logger.Criticalf("[Ranking] cannot create month dir %s: %v", destDir, err)
		return
	}

	for _, winner := range winners {
		if err := s.saveOne(ctx, winner, monthKey, destDir); err != nil {
			logger.Warningf("[Ranking] skipping winner %s: %v", winner.Filename, err)
		}
	}
}

func (s *Service) saveOne(ctx context.Context, winner domain.WinnerImage, monthKey, destDir string) error {
	imgName := filepath.Base(winner.Filename)

	exists, err := s.store.ExistsByImgName(ctx, imgName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	raw, err := os.ReadFile(winner.Filename)
	if err != nil {
		return err
	}
	destPath := filepath.Join(destDir, imgName)
	if err := os.WriteFile(destPath, raw, 0o644); err != nil {
		return err
	}

	imgUrl := "/api/ranking/images/" + monthKey + "/" + imgName
	if err := s.store.InsertRankedImage(ctx, imgName, imgUrl, winner.Keyword, monthKey); err != nil {
		if errors.Is(err, domain.ErrDuplicateImage) {
			return nil
		}
		return err
	}

	logger.Infof("[Ranking] saved %s under %s", imgName, monthKey)
	return nil
}

// ImagePath resolves a ranked image for serving. Base-name only, so a
// crafted URL cannot walk out of the ranking dir.
func (s *Service) ImagePath(monthKey, imgName string) (string, error) {
	if imgName != filepath.Base(imgName) || monthKey != filepath.Base(monthKey) {
		return "", domain.ErrImageNotFound
	}
	path := filepath.Join(s.baseDir, monthKey, imgName)
	if _, err := os.Stat(path); err != nil {
		return "", domain.ErrImageNotFound
	}
	return path, nil
}
