package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Engine maintains the derived aggregate counters. Incremental updates are
// fire-and-forget relative to the primary write that triggered them; the
// recalculation pass is the corrective mechanism for any drift they leave
// behind.
type Engine struct {
	counters   CounterStore
	sources    CollectionScanner
	blobs      BlobScanner
	audit      AuditLog
	thresholds Thresholds
	log        zerolog.Logger
}

// NewEngine wires the engine. blobs and audit may be nil when the
// deployment has no GCS blob store or no audit dataset.
func NewEngine(counters CounterStore, sources CollectionScanner, blobs BlobScanner, audit AuditLog, thresholds Thresholds, log zerolog.Logger) *Engine {
	return &Engine{
		counters:   counters,
		sources:    sources,
		blobs:      blobs,
		audit:      audit,
		thresholds: thresholds,
		log:        log,
	}
}

const bytesPerMB = 1024 * 1024

// RecordRegistration adjusts the participant total for a created (isNew) or
// deleted registration. Failures never propagate to the primary write.
func (e *Engine) RecordRegistration(ctx context.Context, participantCount int, isNew bool) {
	delta := float64(participantCount)
	if !isNew {
		delta = -delta
	}
	e.increment(ctx, map[string]float64{FieldTotalParticipants: delta})
}

// RecordReceiptImage accounts for one stored evidence image.
func (e *Engine) RecordReceiptImage(ctx context.Context, sizeBytes int64) {
	e.increment(ctx, map[string]float64{
		FieldTotalReceipts:    1,
		FieldTotalImageSizeMB: float64(sizeBytes) / bytesPerMB,
	})
}

// RecordProgram adjusts the program total for a created or deleted program.
func (e *Engine) RecordProgram(ctx context.Context, isNew bool) {
	delta := 1.0
	if !isNew {
		delta = -1
	}
	e.increment(ctx, map[string]float64{FieldTotalPrograms: delta})
}

// RecordBanner accounts for one stored banner image of the given kind.
func (e *Engine) RecordBanner(ctx context.Context, kind BannerKind, sizeBytes int64) {
	deltas := map[string]float64{
		FieldTotalBanners:     1,
		FieldTotalImageSizeMB: float64(sizeBytes) / bytesPerMB,
	}
	switch kind {
	case BannerOnline:
		deltas[FieldTotalOnlineBanners] = 1
	case BannerSathsang:
		deltas[FieldTotalSathsangBanners] = 1
	}
	e.increment(ctx, deltas)
}

// TrackVisit counts a device once per day into the daily, monthly and
// geographic counters. The device token is passed explicitly by the caller;
// it is never read from ambient state. All updates are best-effort.
func (e *Engine) TrackVisit(ctx context.Context, deviceToken, location string) {
	if deviceToken == "" {
		return
	}
	if location == "" {
		location = "Unknown"
	}

	today := time.Now().UTC().Format("2006-01-02")
	month := today[:7]

	first, err := e.counters.MarkDeviceDay(ctx, deviceToken, today)
	if err != nil {
		e.log.Warn().Err(err).Msg("Device day mark failed")
		return
	}
	if !first {
		return
	}

	if err := e.counters.IncrementDaily(ctx, today, 1); err != nil {
		e.log.Warn().Err(err).Str("date", today).Msg("Daily counter increment failed")
	}
	if err := e.counters.IncrementGeo(ctx, location, month, 1); err != nil {
		e.log.Warn().Err(err).Str("location", location).Msg("Geo counter increment failed")
	}
}

// Totals returns the current (possibly drifted) counter snapshot.
func (e *Engine) Totals(ctx context.Context) (Totals, error) {
	return e.counters.GetTotals(ctx)
}

// Geo returns the current geographic distribution.
func (e *Engine) Geo(ctx context.Context) (GeoStats, error) {
	return e.counters.GetGeo(ctx)
}

// DailyCounts returns every daily counter keyed by date.
func (e *Engine) DailyCounts(ctx context.Context) (map[string]int64, error) {
	return e.counters.ListDaily(ctx)
}

func (e *Engine) increment(ctx context.Context, deltas map[string]float64) {
	if err := e.counters.IncrementTotals(ctx, deltas); err != nil {
		e.log.Warn().Err(err).Interface("deltas", deltas).Msg("Counter increment failed")
	}
}
