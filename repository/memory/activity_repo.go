package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
)

// ActivityRepository is an append-only in-memory activity log.
type ActivityRepository struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.ActivityLog
	users   *UserRepository
}

// NewActivityRepository counts total users from users when it is non-nil.
func NewActivityRepository(users *UserRepository) *ActivityRepository {
	return &ActivityRepository{users: users}
}

func (r *ActivityRepository) Record(_ context.Context, entry *domain.ActivityLog) error {
	if entry == nil || entry.Action == "" {
		return domain.ErrInvalidPayload
	}
	entry.Touch()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	entry.ID = r.nextID
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *ActivityRepository) Recent(_ context.Context, limit int) ([]domain.ActivityLog, error) {
	r.mu.RLock()
	out := make([]domain.ActivityLog, len(r.entries))
	copy(out, r.entries)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, limit, 0), nil
}

func (r *ActivityRepository) UserStats(_ context.Context, email string, topPages int) (*domain.UserStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.UserStats{Email: email, MostVisitedPages: []domain.PageCount{}}
	counts := map[string]int64{}
	for _, e := range r.entries {
		if e.UserEmail != email {
			continue
		}
		stats.TotalActions++
		if e.Action == domain.ActionPageView {
			counts[e.Page]++
		}
	}
	for p, n := range counts {
		stats.MostVisitedPages = append(stats.MostVisitedPages, domain.PageCount{Page: p, Count: n})
	}
	sort.Slice(stats.MostVisitedPages, func(i, j int) bool {
		a, b := stats.MostVisitedPages[i], stats.MostVisitedPages[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Page < b.Page
	})
	if topPages > 0 && len(stats.MostVisitedPages) > topPages {
		stats.MostVisitedPages = stats.MostVisitedPages[:topPages]
	}
	return stats, nil
}

func (r *ActivityRepository) AppStats(_ context.Context) (*domain.AppStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := map[string]struct{}{}
	for _, e := range r.entries {
		active[e.UserEmail] = struct{}{}
	}
	stats := &domain.AppStats{
		ActiveUsers:  int64(len(active)),
		TotalActions: int64(len(r.entries)),
	}
	if r.users != nil {
		stats.TotalUsers = int64(r.users.Len())
	}
	return stats, nil
}

var _ repository.ActivityRepository = (*ActivityRepository)(nil)
