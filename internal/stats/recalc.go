package stats

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Recalculate rebuilds the Totals record by rescanning every source
// collection and overwrites it wholesale. It is idempotent: two consecutive
// runs over an unchanged dataset produce identical totals. On any scan
// failure the existing (possibly drifted) counters are left untouched.
//
// The scan respects ctx cancellation between documents, so a long run can
// be interrupted and safely re-run later.
func (e *Engine) Recalculate(ctx context.Context) (Totals, error) {
	run := RecalcRun{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	e.log.Info().Str("run_id", run.RunID).Msg("Recalculation started")

	totals, err := e.computeTotals(ctx)
	if err != nil {
		e.finishRun(ctx, run, Totals{}, err)
		return Totals{}, fmt.Errorf("recalculate: %w", err)
	}

	totals.UpdatedAt = time.Now().UTC()
	if err := e.counters.SetTotals(ctx, totals); err != nil {
		e.finishRun(ctx, run, totals, err)
		return Totals{}, fmt.Errorf("recalculate: write totals: %w", err)
	}

	e.finishRun(ctx, run, totals, nil)
	e.log.Info().
		Str("run_id", run.RunID).
		Int64("programs", totals.TotalPrograms).
		Int64("participants", totals.TotalParticipants).
		Int64("receipts", totals.TotalReceipts).
		Float64("image_mb", totals.TotalImageSizeMB).
		Msg("Recalculation completed")
	return totals, nil
}

func (e *Engine) computeTotals(ctx context.Context) (Totals, error) {
	var totals Totals

	if err := e.sources.Scan(ctx, ColPrograms, func(id string, doc map[string]any) error {
		totals.TotalPrograms++
		return ctx.Err()
	}); err != nil {
		return totals, fmt.Errorf("scan programs: %w", err)
	}

	devices := make(map[string]struct{})
	if err := e.sources.Scan(ctx, ColTransactions, func(id string, doc map[string]any) error {
		totals.TotalParticipants += participantCountOf(doc)
		if dev, ok := doc["deviceId"].(string); ok && dev != "" {
			devices[dev] = struct{}{}
		}
		return ctx.Err()
	}); err != nil {
		return totals, fmt.Errorf("scan transactions: %w", err)
	}
	totals.TotalUniqueDevices = int64(len(devices))

	if err := e.sources.Scan(ctx, ColTransactionImages, func(id string, doc map[string]any) error {
		totals.TotalReceipts++
		totals.TotalImageSizeMB += float64(payloadSize(doc)) / bytesPerMB
		return ctx.Err()
	}); err != nil {
		return totals, fmt.Errorf("scan transaction images: %w", err)
	}

	banners := []struct {
		col  string
		kind BannerKind
	}{
		{ColProgramBanners, BannerProgram},
		{ColOnlineBanners, BannerOnline},
		{ColSathsangBanners, BannerSathsang},
	}
	for _, b := range banners {
		kind := b.kind
		if err := e.sources.Scan(ctx, b.col, func(id string, doc map[string]any) error {
			totals.TotalBanners++
			switch kind {
			case BannerOnline:
				totals.TotalOnlineBanners++
			case BannerSathsang:
				totals.TotalSathsangBanners++
			}
			totals.TotalImageSizeMB += float64(payloadSize(doc)) / bytesPerMB
			return ctx.Err()
		}); err != nil {
			return totals, fmt.Errorf("scan %s: %w", b.col, err)
		}
	}

	// Evidence blobs promoted out of the document store into GCS.
	if e.blobs != nil {
		if err := e.blobs.ScanSizes(ctx, func(id string, size int64) error {
			totals.TotalReceipts++
			totals.TotalImageSizeMB += float64(size) / bytesPerMB
			return ctx.Err()
		}); err != nil {
			return totals, fmt.Errorf("scan evidence blobs: %w", err)
		}
	}

	return totals, nil
}

// participantCountOf extracts the participant count from a transaction
// document of any historical shape: an explicit count, the participant list
// length, or 1 for the oldest single-participant records.
func participantCountOf(doc map[string]any) int64 {
	switch v := doc["participantCount"].(type) {
	case int64:
		if v > 0 {
			return v
		}
	case int:
		if v > 0 {
			return int64(v)
		}
	case float64:
		if v > 0 {
			return int64(v)
		}
	}
	if list, ok := doc["participants"].([]any); ok && len(list) > 0 {
		return int64(len(list))
	}
	return 1
}

// payloadSize returns the decoded byte size of an image document's payload,
// checking every historical field name the payload may live under.
func payloadSize(doc map[string]any) int64 {
	for _, field := range legacyPayloadFields {
		switch v := doc[field].(type) {
		case string:
			if v != "" {
				return int64(base64.StdEncoding.DecodedLen(len(v)))
			}
		case []byte:
			if len(v) > 0 {
				return int64(len(v))
			}
		}
	}
	return 0
}

func (e *Engine) finishRun(ctx context.Context, run RecalcRun, totals Totals, runErr error) {
	if e.audit == nil {
		return
	}
	run.FinishedAt = time.Now().UTC()
	run.Totals = totals
	if runErr != nil {
		run.Status = "FAILED"
		run.Error = runErr.Error()
	} else {
		run.Status = "SUCCESS"
	}
	if err := e.audit.RecordRecalculation(ctx, run); err != nil {
		e.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Recalculation audit write failed")
	}
}
