package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/mic-havock/ridb-backend/internal/model"
)

// GroupKey identifies a facility-month bulk fetch
type GroupKey struct {
	FacilityID string
	Year       int
	Month      time.Month
}

func (k GroupKey) String() string {
	return fmt.Sprintf("facility %s %04d-%02d", k.FacilityID, k.Year, int(k.Month))
}

// MonthStart returns the first day of the key's month
func (k GroupKey) MonthStart() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// WatchGroup is a set of watches answered by one facility-month fetch
type WatchGroup struct {
	Key     GroupKey
	Watches []model.Watch
}

// GroupWatches partitions watches into facility-month groups of two or more
// and singletons. Watches whose range crosses a month boundary are always
// singletons. Groups keep the input order of their first member and
// singletons are ordered by ID.
func GroupWatches(watches []model.Watch) (groups []WatchGroup, singletons []model.Watch) {
	index := make(map[GroupKey]int)
	var candidates []WatchGroup

	for _, w := range watches {
		if w.SpansMonths() {
			singletons = append(singletons, w)
			continue
		}
		y, m, _ := w.StartDate.Date()
		key := GroupKey{FacilityID: w.FacilityID, Year: y, Month: m}

		i, ok := index[key]
		if !ok {
			i = len(candidates)
			index[key] = i
			candidates = append(candidates, WatchGroup{Key: key})
		}
		candidates[i].Watches = append(candidates[i].Watches, w)
	}

	for _, g := range candidates {
		if len(g.Watches) >= 2 {
			groups = append(groups, g)
			continue
		}
		singletons = append(singletons, g.Watches...)
	}

	sort.SliceStable(singletons, func(i, j int) bool {
		return singletons[i].ID < singletons[j].ID
	})

	return groups, singletons
}
