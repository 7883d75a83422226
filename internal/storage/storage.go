package storage

import (
	"sort"
	"sync"

	"github.com/lehigh-university-libraries/scenetiler/internal/models"
)

// OutcomeStore collects classified tiles from concurrent workers.
// Tiles are keyed by index so the completion order never leaks into output.
type OutcomeStore struct {
	tiles map[int]models.Tile
	mu    sync.RWMutex
}

func New() *OutcomeStore {
	return &OutcomeStore{
		tiles: make(map[int]models.Tile),
	}
}

func (s *OutcomeStore) Set(tile models.Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiles[tile.Index] = tile
}

func (s *OutcomeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tiles)
}

// Sorted returns every stored tile ordered by tile index.
func (s *OutcomeStore) Sorted() []models.Tile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Tile, 0, len(s.tiles))
	for _, t := range s.tiles {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result
}
