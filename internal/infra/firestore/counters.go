package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/registration-tracker/internal/stats"
)

const (
	colSystemStats = "system_stats"
	colGeoStats    = "geo_stats"
	colDeviceDays  = "device_days"

	docTotals      = "totals"
	docLoginCounts = "login_counts"

	dailyDocPrefix = "daily_"
)

// CounterRepo implements stats.CounterStore over the system_stats and
// geo_stats collections. Per-field increments use Firestore transforms, so
// concurrent writers never lose updates to the same document.
type CounterRepo struct {
	client *firestore.Client
}

// NewCounterRepo wraps an existing Firestore client.
func NewCounterRepo(client *firestore.Client) *CounterRepo {
	return &CounterRepo{client: client}
}

func (r *CounterRepo) totalsDoc() *firestore.DocumentRef {
	return r.client.Collection(colSystemStats).Doc(docTotals)
}

func (r *CounterRepo) geoDoc() *firestore.DocumentRef {
	return r.client.Collection(colGeoStats).Doc(docLoginCounts)
}

// IncrementTotals implements stats.CounterStore.
func (r *CounterRepo) IncrementTotals(ctx context.Context, deltas map[string]float64) error {
	fields := make(map[string]any, len(deltas)+1)
	for field, delta := range deltas {
		fields[field] = firestore.Increment(delta)
	}
	fields["updatedAt"] = time.Now().UTC()

	if _, err := r.totalsDoc().Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("increment totals: %w", err)
	}
	return nil
}

// GetTotals implements stats.CounterStore. A missing document reads as all
// zeros.
func (r *CounterRepo) GetTotals(ctx context.Context) (stats.Totals, error) {
	snap, err := r.totalsDoc().Get(ctx)
	if isNotFound(err) {
		return stats.Totals{}, nil
	}
	if err != nil {
		return stats.Totals{}, fmt.Errorf("get totals: %w", err)
	}
	var t stats.Totals
	if err := snap.DataTo(&t); err != nil {
		return stats.Totals{}, fmt.Errorf("decode totals: %w", err)
	}
	return t, nil
}

// SetTotals implements stats.CounterStore.
func (r *CounterRepo) SetTotals(ctx context.Context, t stats.Totals) error {
	if _, err := r.totalsDoc().Set(ctx, t); err != nil {
		return fmt.Errorf("set totals: %w", err)
	}
	return nil
}

// IncrementDaily implements stats.CounterStore. One document per date.
func (r *CounterRepo) IncrementDaily(ctx context.Context, date string, delta int64) error {
	doc := r.client.Collection(colSystemStats).Doc(dailyDocPrefix + date)
	_, err := doc.Set(ctx, map[string]any{
		"date":  date,
		"count": firestore.Increment(delta),
	}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("increment daily %s: %w", date, err)
	}
	return nil
}

// ListDaily implements stats.CounterStore.
func (r *CounterRepo) ListDaily(ctx context.Context) (map[string]int64, error) {
	it := r.client.Collection(colSystemStats).Documents(ctx)
	defer it.Stop()

	out := make(map[string]int64)
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("iterate daily counters: %w", err)
		}
		if !strings.HasPrefix(snap.Ref.ID, dailyDocPrefix) {
			continue
		}
		date := strings.TrimPrefix(snap.Ref.ID, dailyDocPrefix)
		if n, ok := snap.Data()["count"].(int64); ok {
			out[date] = n
		}
	}
}

// IncrementGeo implements stats.CounterStore. Location names can contain
// characters that are unsafe in field paths, so nested updates use explicit
// FieldPaths rather than dotted strings.
func (r *CounterRepo) IncrementGeo(ctx context.Context, location, month string, delta int64) error {
	_, err := r.geoDoc().Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"counts", location}, Value: firestore.Increment(delta)},
		{FieldPath: firestore.FieldPath{"monthly", month, location}, Value: firestore.Increment(delta)},
	})
	if isNotFound(err) {
		// First ever visit; create the document.
		_, err = r.geoDoc().Set(ctx, stats.GeoStats{
			Counts:  map[string]int64{location: delta},
			Monthly: map[string]map[string]int64{month: {location: delta}},
		})
	}
	if err != nil {
		return fmt.Errorf("increment geo %s/%s: %w", location, month, err)
	}
	return nil
}

// SetGeo implements stats.CounterStore.
func (r *CounterRepo) SetGeo(ctx context.Context, g stats.GeoStats) error {
	if _, err := r.geoDoc().Set(ctx, g); err != nil {
		return fmt.Errorf("set geo stats: %w", err)
	}
	return nil
}

// GetGeo implements stats.CounterStore.
func (r *CounterRepo) GetGeo(ctx context.Context) (stats.GeoStats, error) {
	snap, err := r.geoDoc().Get(ctx)
	if isNotFound(err) {
		return stats.GeoStats{}, nil
	}
	if err != nil {
		return stats.GeoStats{}, fmt.Errorf("get geo stats: %w", err)
	}
	var g stats.GeoStats
	if err := snap.DataTo(&g); err != nil {
		return stats.GeoStats{}, fmt.Errorf("decode geo stats: %w", err)
	}
	return g, nil
}

// MarkDeviceDay implements stats.CounterStore via a create-only write: the
// first writer for a device and date wins, every later one sees
// AlreadyExists.
func (r *CounterRepo) MarkDeviceDay(ctx context.Context, deviceToken, date string) (bool, error) {
	doc := r.client.Collection(colDeviceDays).Doc(deviceToken + "_" + date)
	_, err := doc.Create(ctx, map[string]any{
		"device": deviceToken,
		"date":   date,
		"seenAt": time.Now().UTC(),
	})
	if status.Code(err) == codes.AlreadyExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark device day: %w", err)
	}
	return true, nil
}

var _ stats.CounterStore = (*CounterRepo)(nil)
