package service

import (
	"context"
	"sync"
	"time"

	"github.com/coverpoint/backend/internal/models"
)

// memStore is the in-memory Store double the orchestrator tests run against.
type memStore struct {
	mu sync.Mutex

	snapshots map[string]models.InsuranceSnapshot
	snapErr   map[string]error
	orgProps  map[string][]string

	gaps      map[string]models.Gap
	conflicts map[string]models.CoverageConflict
	scores    map[string][]models.HealthScore

	replaceGapErr      error
	replaceConflictErr error
	insertScoreErr     error
}

func newMemStore() *memStore {
	return &memStore{
		snapshots: map[string]models.InsuranceSnapshot{},
		snapErr:   map[string]error{},
		orgProps:  map[string][]string{},
		gaps:      map[string]models.Gap{},
		conflicts: map[string]models.CoverageConflict{},
		scores:    map[string][]models.HealthScore{},
	}
}

func (m *memStore) GetSnapshot(ctx context.Context, propertyID string) (models.InsuranceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.snapErr[propertyID]; ok {
		return models.InsuranceSnapshot{}, err
	}
	snap, ok := m.snapshots[propertyID]
	if !ok {
		return models.InsuranceSnapshot{}, errNotFound
	}
	return snap, nil
}

func (m *memStore) ListPropertyIDs(ctx context.Context, orgID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.orgProps[orgID]...), nil
}

func (m *memStore) ReplaceOpenGaps(ctx context.Context, propertyID string, clearExisting bool, gaps []models.Gap) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceGapErr != nil {
		return m.replaceGapErr
	}
	if clearExisting {
		for id, g := range m.gaps {
			if g.PropertyID == propertyID && g.Status == models.StatusOpen {
				delete(m.gaps, id)
			}
		}
	}
	for _, g := range gaps {
		m.gaps[g.ID] = g
	}
	return nil
}

func (m *memStore) ReplaceOpenConflicts(ctx context.Context, propertyID string, clearExisting bool, conflicts []models.CoverageConflict) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceConflictErr != nil {
		return m.replaceConflictErr
	}
	if clearExisting {
		for id, c := range m.conflicts {
			if c.PropertyID == propertyID && c.Status == models.StatusOpen {
				delete(m.conflicts, id)
			}
		}
	}
	for _, c := range conflicts {
		m.conflicts[c.ID] = c
	}
	return nil
}

func (m *memStore) ListGaps(ctx context.Context, propertyID string, status models.FindingStatus) ([]models.Gap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Gap
	for _, g := range m.gaps {
		if g.PropertyID != propertyID {
			continue
		}
		if status != "" && g.Status != status {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m *memStore) ListConflicts(ctx context.Context, propertyID string, status models.FindingStatus) ([]models.CoverageConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CoverageConflict
	for _, c := range m.conflicts {
		if c.PropertyID != propertyID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memStore) UpdateGapStatus(ctx context.Context, id string, status models.FindingStatus, notes, actor *string, at time.Time) (*models.Gap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gaps[id]
	if !ok {
		return nil, nil
	}
	g.Status = status
	g.ResolutionNotes = notes
	g.ResolvedBy = actor
	if status == models.StatusResolved {
		g.ResolvedAt = &at
	}
	m.gaps[id] = g
	return &g, nil
}

func (m *memStore) UpdateConflictStatus(ctx context.Context, id string, status models.FindingStatus, notes, actor *string, at time.Time) (*models.CoverageConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conflicts[id]
	if !ok {
		return nil, nil
	}
	c.Status = status
	c.ResolutionNotes = notes
	c.ResolvedBy = actor
	if status == models.StatusResolved {
		c.ResolvedAt = &at
	}
	m.conflicts[id] = c
	return &c, nil
}

func (m *memStore) InsertHealthScore(ctx context.Context, hs models.HealthScore) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertScoreErr != nil {
		return m.insertScoreErr
	}
	m.scores[hs.PropertyID] = append(m.scores[hs.PropertyID], hs)
	return nil
}

func (m *memStore) GetLatestHealthScore(ctx context.Context, propertyID string) (*models.HealthScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.scores[propertyID]
	if len(history) == 0 {
		return nil, nil
	}
	hs := history[len(history)-1]
	return &hs, nil
}
