package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/registration-tracker/internal/stats"
)

// AuditLog implements stats.AuditLog over a BigQuery dataset using the
// streaming inserter.
type AuditLog struct {
	client  *bigquery.Client
	dataset string
}

// NewAuditLog wraps an existing BigQuery client. The caller owns the
// client's lifecycle.
func NewAuditLog(client *bigquery.Client, dataset string) *AuditLog {
	return &AuditLog{client: client, dataset: dataset}
}

// RecordRecalculation implements stats.AuditLog.
func (a *AuditLog) RecordRecalculation(ctx context.Context, run stats.RecalcRun) error {
	const maxErrLen = 2000
	errMsg := run.Error
	if len(errMsg) > maxErrLen {
		errMsg = errMsg[:maxErrLen]
	}

	row := &RecalcRunRow{
		RunID:        run.RunID,
		RunDate:      civil.DateOf(run.StartedAt),
		StartedTS:    run.StartedAt,
		FinishedTS:   bigquery.NullTimestamp{Timestamp: run.FinishedAt, Valid: !run.FinishedAt.IsZero()},
		Status:       run.Status,
		ErrorMessage: errMsg,
	}
	if run.Status == "SUCCESS" {
		row.TotalPrograms = bigquery.NullInt64{Int64: run.Totals.TotalPrograms, Valid: true}
		row.TotalParticipants = bigquery.NullInt64{Int64: run.Totals.TotalParticipants, Valid: true}
		row.TotalBanners = bigquery.NullInt64{Int64: run.Totals.TotalBanners, Valid: true}
		row.TotalOnlineBanners = bigquery.NullInt64{Int64: run.Totals.TotalOnlineBanners, Valid: true}
		row.TotalSathsangBanners = bigquery.NullInt64{Int64: run.Totals.TotalSathsangBanners, Valid: true}
		row.TotalReceipts = bigquery.NullInt64{Int64: run.Totals.TotalReceipts, Valid: true}
		row.TotalImageSizeMB = bigquery.NullFloat64{Float64: run.Totals.TotalImageSizeMB, Valid: true}
		row.TotalUniqueDevices = bigquery.NullInt64{Int64: run.Totals.TotalUniqueDevices, Valid: true}
	}

	inserter := a.client.Dataset(a.dataset).Table(recalcRunsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("record recalculation run %s: %w", run.RunID, err)
	}
	return nil
}

var _ stats.AuditLog = (*AuditLog)(nil)
