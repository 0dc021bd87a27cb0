// Package gallery keeps the per-room drawings captured at the end of
// each round and runs the post-game vote. Images live on disk under the
// configured temp dir; vote state is in memory only.
package gallery

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/EatingIting/DRAW-IT/domain"
	"github.com/EatingIting/DRAW-IT/logger"
)

// ImageInfo is one gallery entry as the web layer lists it.
type ImageInfo struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Keyword  string `json:"keyword"`
	UserId   string `json:"userId"`
	Nickname string `json:"nickname"`
	Votes    int    `json:"votes"`
}

type imageEntry struct {
	filename string
	keyword  string
	userId   string
	nickname string
}

type roomGallery struct {
	images     []imageEntry
	votes      []int
	voteByUser map[string]int
}

// Store implements the session-facing gallery plus the save/list surface
// the web layer uses.
type Store struct {
	mu      sync.Mutex
	baseDir string
	rooms   map[string]*roomGallery
}

func NewStore(baseDir string) *Store {
	return &Store{
		baseDir: baseDir,
		rooms:   make(map[string]*roomGallery),
	}
}

// Recover rebuilds the in-memory index from whatever survived on disk.
// Votes do not survive a restart; only the images do.
func (s *Store) Recover() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomDirs, err := os.ReadDir(s.baseDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading gallery dir: %w", err)
	}

	for _, roomDir := range roomDirs {
		if !roomDir.IsDir() {
			continue
		}
		roomId := roomDir.Name()
		files, err := os.ReadDir(filepath.Join(s.baseDir, roomId))
		if err != nil {
			logger.Warningf("[Gallery %s] skipping unreadable room dir: %v", roomId, err)
			continue
		}
		room := s.roomLocked(roomId)
		for _, file := range files {
			name := file.Name()
			if file.IsDir() || !strings.HasSuffix(name, ".jpg") {
				continue
			}
			room.images = append(room.images, imageEntry{
				filename: name,
				keyword:  keywordFromFilename(name),
			})
			room.votes = append(room.votes, 0)
		}
		logger.Infof("[Gallery %s] recovered %d images", roomId, len(room.images))
	}
	return nil
}

// keywordFromFilename undoes the "<uuid>_<keyword>.jpg" naming.
func keywordFromFilename(name string) string {
	name = strings.TrimSuffix(name, ".jpg")
	if idx := strings.IndexByte(name, '_'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func (s *Store) roomLocked(roomId string) *roomGallery {
	room, ok := s.rooms[roomId]
	if !ok {
		room = &roomGallery{voteByUser: make(map[string]int)}
		s.rooms[roomId] = room
	}
	return room
}

// SaveImage decodes a data-URL (or bare base64) JPEG and files it under
// the room's directory. Returns the new image's gallery index.
func (s *Store) SaveImage(roomId, keyword, userId, nickname, data string) (int, error) {
	if idx := strings.IndexByte(data, ','); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrInvalidImageData, err)
	}

	dir := filepath.Join(s.baseDir, roomId)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("creating room dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.jpg", uuid.NewString(), keyword)
	if err := os.WriteFile(filepath.Join(dir, filename), raw, 0o644); err != nil {
		return 0, fmt.Errorf("writing image: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.roomLocked(roomId)
	room.images = append(room.images, imageEntry{
		filename: filename,
		keyword:  keyword,
		userId:   userId,
		nickname: nickname,
	})
	room.votes = append(room.votes, 0)

	logger.Infof("[Gallery %s] saved %s (keyword=%s)", roomId, filename, keyword)
	return len(room.images) - 1, nil
}

// Images lists the room's gallery in save order.
func (s *Store) Images(roomId string) []ImageInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return nil
	}
	out := make([]ImageInfo, 0, len(room.images))
	for i, img := range room.images {
		out = append(out, ImageInfo{
			Index:    i,
			Filename: img.filename,
			Keyword:  img.keyword,
			UserId:   img.userId,
			Nickname: img.nickname,
			Votes:    room.votes[i],
		})
	}
	return out
}

// FilePath resolves a stored image for serving. The filename is matched
// against the index, never joined blindly, so path escapes cannot happen.
func (s *Store) FilePath(roomId, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return "", domain.ErrImageNotFound
	}
	for _, img := range room.images {
		if img.filename == filename {
			return filepath.Join(s.baseDir, roomId, filename), nil
		}
	}
	return "", domain.ErrImageNotFound
}

func (s *Store) VoteCounts(roomId string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return nil
	}
	counts := make([]int, len(room.votes))
	copy(counts, room.votes)
	return counts
}

// AddVote registers one user's vote. A revote moves the vote instead of
// double counting.
func (s *Store) AddVote(roomId string, imageIndex int, userId string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok {
		return nil, domain.ErrImageNotFound
	}
	if imageIndex < 0 || imageIndex >= len(room.votes) {
		return nil, domain.ErrImageNotFound
	}

	if prev, voted := room.voteByUser[userId]; voted {
		if prev == imageIndex {
			counts := make([]int, len(room.votes))
			copy(counts, room.votes)
			return counts, nil
		}
		room.votes[prev]--
	}
	room.voteByUser[userId] = imageIndex
	room.votes[imageIndex]++

	counts := make([]int, len(room.votes))
	copy(counts, room.votes)
	return counts, nil
}

// Winners returns every image tied for the highest vote count. A room
// where nobody voted has no winners.
func (s *Store) Winners(roomId string) []domain.WinnerImage {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomId]
	if !ok || len(room.images) == 0 {
		return nil
	}

	maxVotes := 0
	for _, v := range room.votes {
		if v > maxVotes {
			maxVotes = v
		}
	}
	if maxVotes == 0 {
		return nil
	}

	var winners []domain.WinnerImage
	for i, img := range room.images {
		if room.votes[i] == maxVotes {
			winners = append(winners, domain.WinnerImage{
				LobbyId:  roomId,
				Filename: filepath.Join(s.baseDir, roomId, img.filename),
				Keyword:  img.keyword,
				UserId:   img.userId,
				Nickname: img.nickname,
			})
		}
	}
	return winners
}

// ClearRoom drops the room's vote state and its files.
func (s *Store) ClearRoom(roomId string) {
	s.mu.Lock()
	delete(s.rooms, roomId)
	s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.baseDir, roomId)); err != nil {
		logger.Warningf("[Gallery %s] cleanup failed: %v", roomId, err)
	}
}
