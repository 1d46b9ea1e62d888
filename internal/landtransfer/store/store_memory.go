package store

import (
	"context"
	"slices"
	"sync"

	"landadmin/internal/landtransfer/models"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
)

// InMemoryTransferStore keeps transfers in a map guarded by a RWMutex.
type InMemoryTransferStore struct {
	mu        sync.RWMutex
	transfers map[id.TransferID]*models.Transfer
}

func NewInMemory() *InMemoryTransferStore {
	return &InMemoryTransferStore{transfers: make(map[id.TransferID]*models.Transfer)}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryTransferStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.TransferID]*models.Transfer, len(s.transfers))
	for k, v := range s.transfers {
		saved[k] = v.Clone()
	}
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.transfers = saved
		s.mu.Unlock()
	}
}

func (s *InMemoryTransferStore) Create(_ context.Context, t *models.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.transfers {
		if existing.TransferNumber == t.TransferNumber {
			return ErrDuplicateNumber
		}
	}
	if _, ok := s.transfers[t.ID]; ok {
		return sentinel.ErrConflict
	}
	s.transfers[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryTransferStore) FindByID(_ context.Context, transferID id.TransferID) (*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transfers[transferID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return t.Clone(), nil
}

func (s *InMemoryTransferStore) ExistsByNumber(_ context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transfers {
		if t.TransferNumber == number {
			return true, nil
		}
	}
	return false, nil
}

// Transition replaces the stored transfer with t when the stored status is
// one of from.
func (s *InMemoryTransferStore) Transition(_ context.Context, t *models.Transfer, from ...models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.transfers[t.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !slices.Contains(from, current.Status) {
		return sentinel.ErrInvalidState
	}
	s.transfers[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryTransferStore) List(_ context.Context, scope policy.Scope, filter models.ListFilter) ([]*models.Transfer, int, error) {
	page, limit := NormalizePage(filter.Page, filter.Limit)
	matched := s.collect(func(t *models.Transfer) bool {
		if !scope.Permits(t.District, t.CurrentOwnerID, t.NewOwnerID) {
			return false
		}
		if filter.Status != "" && t.Status != filter.Status {
			return false
		}
		return filter.District == "" || t.District == filter.District
	}, newestFirst)

	total := len(matched)
	start := (page - 1) * limit
	if start >= total {
		return []*models.Transfer{}, total, nil
	}
	return matched[start:min(start+limit, total)], total, nil
}

func (s *InMemoryTransferStore) FindByLand(_ context.Context, landID id.LandID) ([]*models.Transfer, error) {
	return s.collect(func(t *models.Transfer) bool { return t.LandID == landID }, newestFirst), nil
}

func (s *InMemoryTransferStore) FindByUser(_ context.Context, userID id.UserID) ([]*models.Transfer, error) {
	return s.collect(func(t *models.Transfer) bool { return t.InvolvesUser(userID) }, newestFirst), nil
}

func (s *InMemoryTransferStore) FindByDistrict(_ context.Context, district string) ([]*models.Transfer, error) {
	return s.collect(func(t *models.Transfer) bool { return t.District == district }, newestFirst), nil
}

func (s *InMemoryTransferStore) History(_ context.Context, landID id.LandID) ([]*models.Transfer, error) {
	return s.collect(func(t *models.Transfer) bool { return t.LandID == landID }, oldestFirst), nil
}

func (s *InMemoryTransferStore) Recent(_ context.Context, limit int) ([]*models.Transfer, error) {
	all := s.collect(func(*models.Transfer) bool { return true }, newestFirst)
	return all[:min(limit, len(all))], nil
}

// Count returns how many transfers visible in scope have one of statuses.
// No statuses counts everything visible.
func (s *InMemoryTransferStore) Count(_ context.Context, scope policy.Scope, statuses ...models.Status) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, t := range s.transfers {
		if !scope.Permits(t.District, t.CurrentOwnerID, t.NewOwnerID) {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}
		n++
	}
	return n, nil
}

func newestFirst(a, b *models.Transfer) int { return b.CreatedAt.Compare(a.CreatedAt) }
func oldestFirst(a, b *models.Transfer) int { return a.CreatedAt.Compare(b.CreatedAt) }

func (s *InMemoryTransferStore) collect(keep func(*models.Transfer) bool, order func(a, b *models.Transfer) int) []*models.Transfer {
	s.mu.RLock()
	out := []*models.Transfer{}
	for _, t := range s.transfers {
		if keep(t) {
			out = append(out, t.Clone())
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, order)
	return out
}
