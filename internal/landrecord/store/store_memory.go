package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"landadmin/internal/landrecord/models"
	"landadmin/internal/policy"
	id "landadmin/pkg/domain"
	"landadmin/pkg/platform/sentinel"
)

// InMemoryLandStore keeps land records in a map guarded by a RWMutex.
type InMemoryLandStore struct {
	mu      sync.RWMutex
	records map[id.LandID]*models.LandRecord
}

func NewInMemory() *InMemoryLandStore {
	return &InMemoryLandStore{records: make(map[id.LandID]*models.LandRecord)}
}

// Snapshot implements tx.Snapshotter.
func (s *InMemoryLandStore) Snapshot() func() {
	s.mu.RLock()
	saved := make(map[id.LandID]*models.LandRecord, len(s.records))
	for k, v := range s.records {
		saved[k] = v.Clone()
	}
	s.mu.RUnlock()
	return func() {
		s.mu.Lock()
		s.records = saved
		s.mu.Unlock()
	}
}

func (s *InMemoryLandStore) Create(_ context.Context, land *models.LandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records {
		if existing.ParcelNumber == land.ParcelNumber {
			return ErrDuplicateParcel
		}
		if existing.UPINumber == land.UPINumber {
			return ErrDuplicateUPI
		}
	}
	if _, ok := s.records[land.ID]; ok {
		return sentinel.ErrConflict
	}
	s.records[land.ID] = land.Clone()
	return nil
}

func (s *InMemoryLandStore) FindByID(_ context.Context, landID id.LandID) (*models.LandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	land, ok := s.records[landID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return land.Clone(), nil
}

func (s *InMemoryLandStore) ExistsByParcelNumber(_ context.Context, parcel string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.records {
		if l.ParcelNumber == parcel {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryLandStore) ExistsByUPI(_ context.Context, upi string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.records {
		if l.UPINumber == upi {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryLandStore) List(_ context.Context, scope policy.Scope, filter models.ListFilter) ([]*models.LandRecord, int, error) {
	page, limit := NormalizePage(filter.Page, filter.Limit)
	s.mu.RLock()
	var matched []*models.LandRecord
	for _, l := range s.records {
		if !scope.Permits(l.District, l.OwnerID) {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.District != "" && l.District != filter.District {
			continue
		}
		matched = append(matched, l.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *models.LandRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	total := len(matched)
	start := (page - 1) * limit
	if start >= total {
		return []*models.LandRecord{}, total, nil
	}
	end := min(start+limit, total)
	return matched[start:end], total, nil
}

// mutate applies fn to the stored record when its status is in from.
func (s *InMemoryLandStore) mutate(landID id.LandID, from []models.Status, fn func(l *models.LandRecord) error) (*models.LandRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[landID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !slices.Contains(from, current.Status) {
		return nil, sentinel.ErrInvalidState
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, sentinel.ErrInvalidState
	}
	s.records[landID] = next
	return next.Clone(), nil
}

func (s *InMemoryLandStore) Review(_ context.Context, land *models.LandRecord) error {
	_, err := s.mutate(land.ID, models.ReviewableStatuses, func(l *models.LandRecord) error {
		l.Status = land.Status
		l.ApprovedBy = land.ApprovedBy
		l.ApprovedAt = land.ApprovedAt
		l.RejectionReason = land.RejectionReason
		l.UpdatedAt = land.UpdatedAt
		return nil
	})
	return err
}

func (s *InMemoryLandStore) LockForTransfer(_ context.Context, landID id.LandID, now time.Time) (*models.LandRecord, error) {
	return s.mutate(landID, models.TransferableStatuses, func(l *models.LandRecord) error {
		return l.ApplyLock(now)
	})
}

func (s *InMemoryLandStore) FinalizeTransfer(_ context.Context, landID id.LandID, expectedOwner, newOwner id.UserID, now time.Time) error {
	_, err := s.mutate(landID, []models.Status{models.StatusUnderReview}, func(l *models.LandRecord) error {
		if l.OwnerID != expectedOwner {
			return sentinel.ErrInvalidState
		}
		return l.ApplyFinalize(newOwner, now)
	})
	return err
}

func (s *InMemoryLandStore) RestoreAfterTransfer(_ context.Context, landID id.LandID, now time.Time) error {
	_, err := s.mutate(landID, []models.Status{models.StatusUnderReview}, func(l *models.LandRecord) error {
		return l.ApplyRestore(now)
	})
	return err
}

// All returns every record. Used by tests and seeding.
func (s *InMemoryLandStore) All() []*models.LandRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.LandRecord, 0, len(s.records))
	for _, l := range s.records {
		out = append(out, l.Clone())
	}
	slices.SortFunc(out, func(a, b *models.LandRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
