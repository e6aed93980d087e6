package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/registration-tracker/internal/stats"
)

// CounterRepo is an in-memory stats.CounterStore.
type CounterRepo struct {
	mu         sync.Mutex
	totals     stats.Totals
	daily      map[string]int64
	geo        stats.GeoStats
	deviceDays map[string]struct{}
}

// NewCounterRepo creates a zeroed counter store.
func NewCounterRepo() *CounterRepo {
	return &CounterRepo{
		daily:      make(map[string]int64),
		geo:        stats.GeoStats{Counts: map[string]int64{}, Monthly: map[string]map[string]int64{}},
		deviceDays: make(map[string]struct{}),
	}
}

// IncrementTotals implements stats.CounterStore.
func (r *CounterRepo) IncrementTotals(ctx context.Context, deltas map[string]float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for field, delta := range deltas {
		switch field {
		case stats.FieldTotalPrograms:
			r.totals.TotalPrograms += int64(delta)
		case stats.FieldTotalParticipants:
			r.totals.TotalParticipants += int64(delta)
		case stats.FieldTotalBanners:
			r.totals.TotalBanners += int64(delta)
		case stats.FieldTotalOnlineBanners:
			r.totals.TotalOnlineBanners += int64(delta)
		case stats.FieldTotalSathsangBanners:
			r.totals.TotalSathsangBanners += int64(delta)
		case stats.FieldTotalReceipts:
			r.totals.TotalReceipts += int64(delta)
		case stats.FieldTotalImageSizeMB:
			r.totals.TotalImageSizeMB += delta
		case stats.FieldTotalUniqueDevices:
			r.totals.TotalUniqueDevices += int64(delta)
		}
	}
	r.totals.UpdatedAt = time.Now().UTC()
	return nil
}

// GetTotals implements stats.CounterStore.
func (r *CounterRepo) GetTotals(ctx context.Context) (stats.Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals, nil
}

// SetTotals implements stats.CounterStore.
func (r *CounterRepo) SetTotals(ctx context.Context, t stats.Totals) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totals = t
	return nil
}

// IncrementDaily implements stats.CounterStore.
func (r *CounterRepo) IncrementDaily(ctx context.Context, date string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.daily[date] += delta
	return nil
}

// ListDaily implements stats.CounterStore.
func (r *CounterRepo) ListDaily(ctx context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64, len(r.daily))
	for k, v := range r.daily {
		out[k] = v
	}
	return out, nil
}

// IncrementGeo implements stats.CounterStore.
func (r *CounterRepo) IncrementGeo(ctx context.Context, location, month string, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.geo.Counts == nil {
		r.geo.Counts = map[string]int64{}
	}
	if r.geo.Monthly == nil {
		r.geo.Monthly = map[string]map[string]int64{}
	}
	r.geo.Counts[location] += delta
	if r.geo.Monthly[month] == nil {
		r.geo.Monthly[month] = map[string]int64{}
	}
	r.geo.Monthly[month][location] += delta
	return nil
}

// SetGeo implements stats.CounterStore.
func (r *CounterRepo) SetGeo(ctx context.Context, g stats.GeoStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.geo = g
	return nil
}

// GetGeo implements stats.CounterStore.
func (r *CounterRepo) GetGeo(ctx context.Context) (stats.GeoStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := stats.GeoStats{Counts: map[string]int64{}, Monthly: map[string]map[string]int64{}}
	for k, v := range r.geo.Counts {
		out.Counts[k] = v
	}
	for m, locs := range r.geo.Monthly {
		out.Monthly[m] = map[string]int64{}
		for k, v := range locs {
			out.Monthly[m][k] = v
		}
	}
	return out, nil
}

// MarkDeviceDay implements stats.CounterStore.
func (r *CounterRepo) MarkDeviceDay(ctx context.Context, deviceToken, date string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := deviceToken + "|" + date
	if _, seen := r.deviceDays[key]; seen {
		return false, nil
	}
	r.deviceDays[key] = struct{}{}
	return true, nil
}

var _ stats.CounterStore = (*CounterRepo)(nil)
