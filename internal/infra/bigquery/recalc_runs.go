// Package bigquery records recalculation runs in a BigQuery dataset for
// operational history. Counter corrections are silent in the serving store;
// the audit table is the only place drift size is visible over time.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

const recalcRunsTable = "recalc_runs"

type RecalcRunRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED

	RunDate    civil.Date             `bigquery:"run_date"`    // REQUIRED
	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	Status       string `bigquery:"status"`        // NULLABLE
	ErrorMessage string `bigquery:"error_message"` // NULLABLE

	TotalPrograms        bigquery.NullInt64   `bigquery:"total_programs"`         // NULLABLE
	TotalParticipants    bigquery.NullInt64   `bigquery:"total_participants"`     // NULLABLE
	TotalBanners         bigquery.NullInt64   `bigquery:"total_banners"`          // NULLABLE
	TotalOnlineBanners   bigquery.NullInt64   `bigquery:"total_online_banners"`   // NULLABLE
	TotalSathsangBanners bigquery.NullInt64   `bigquery:"total_sathsang_banners"` // NULLABLE
	TotalReceipts        bigquery.NullInt64   `bigquery:"total_receipts"`         // NULLABLE
	TotalImageSizeMB     bigquery.NullFloat64 `bigquery:"total_image_size_mb"`    // NULLABLE
	TotalUniqueDevices   bigquery.NullInt64   `bigquery:"total_unique_devices"`   // NULLABLE
}
