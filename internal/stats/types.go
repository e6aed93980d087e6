package stats

import (
	"context"
	"time"
)

// Totals is the singleton aggregate counter record. It is an approximation:
// incremental updates are best-effort and may drift, and only a full
// recalculation guarantees correctness at a point in time.
type Totals struct {
	TotalPrograms        int64     `json:"totalPrograms" firestore:"totalPrograms"`
	TotalParticipants    int64     `json:"totalParticipants" firestore:"totalParticipants"`
	TotalBanners         int64     `json:"totalBanners" firestore:"totalBanners"`
	TotalOnlineBanners   int64     `json:"totalOnlineBanners" firestore:"totalOnlineBanners"`
	TotalSathsangBanners int64     `json:"totalSathsangBanners" firestore:"totalSathsangBanners"`
	TotalReceipts        int64     `json:"totalReceipts" firestore:"totalReceipts"`
	TotalImageSizeMB     float64   `json:"totalImageSizeMB" firestore:"totalImageSizeMB"`
	TotalUniqueDevices   int64     `json:"totalUniqueDevices" firestore:"totalUniqueDevices"`
	UpdatedAt            time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Counter field names inside the totals document, used for atomic
// per-field increments.
const (
	FieldTotalPrograms        = "totalPrograms"
	FieldTotalParticipants    = "totalParticipants"
	FieldTotalBanners         = "totalBanners"
	FieldTotalOnlineBanners   = "totalOnlineBanners"
	FieldTotalSathsangBanners = "totalSathsangBanners"
	FieldTotalReceipts        = "totalReceipts"
	FieldTotalImageSizeMB     = "totalImageSizeMB"
	FieldTotalUniqueDevices   = "totalUniqueDevices"
)

// GeoStats is the geographic distribution record: overall counts per
// location and per-month breakdowns.
type GeoStats struct {
	Counts  map[string]int64            `json:"counts" firestore:"counts"`
	Monthly map[string]map[string]int64 `json:"monthly" firestore:"monthly"`
}

// BannerKind distinguishes the banner collections for per-kind totals.
type BannerKind string

const (
	BannerProgram  BannerKind = "program"
	BannerOnline   BannerKind = "online"
	BannerSathsang BannerKind = "sathsang"
)

// Source collection names scanned by recalculation and wiped by ClearAll.
const (
	ColTransactions      = "transactions"
	ColTransactionImages = "transaction_images"
	ColPrograms          = "programs"
	ColProgramBanners    = "program_banners"
	ColOnlineBanners     = "online_meeting_banners"
	ColSathsangBanners   = "sathsang_banners"
)

// AllCollections is the fixed list ClearAll wipes, in deletion order.
var AllCollections = []string{
	ColTransactionImages,
	ColTransactions,
	ColProgramBanners,
	ColOnlineBanners,
	ColSathsangBanners,
	ColPrograms,
}

// legacyPayloadFields are the historical field names an image document may
// store its payload under. Recalculation checks all of them; assuming one
// shape undercounts older records.
var legacyPayloadFields = []string{"base64", "imageData", "data", "image"}

// RecalcRun is the audit record of one recalculation pass.
type RecalcRun struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // SUCCESS or FAILED
	Error      string
	Totals     Totals
}

// CounterStore is the persistence boundary for counter documents. Each
// method touches a single document; increments are atomic per document but
// there is no cross-document transaction.
type CounterStore interface {
	IncrementTotals(ctx context.Context, deltas map[string]float64) error
	GetTotals(ctx context.Context) (Totals, error)
	SetTotals(ctx context.Context, t Totals) error

	IncrementDaily(ctx context.Context, date string, delta int64) error
	// ListDaily returns every daily counter keyed by YYYY-MM-DD date.
	ListDaily(ctx context.Context) (map[string]int64, error)

	IncrementGeo(ctx context.Context, location, month string, delta int64) error
	SetGeo(ctx context.Context, g GeoStats) error
	GetGeo(ctx context.Context) (GeoStats, error)

	// MarkDeviceDay records that a device was seen on a date, returning
	// true only the first time that pair is seen.
	MarkDeviceDay(ctx context.Context, deviceToken, date string) (bool, error)
}

// CollectionScanner iterates and wipes raw source collections. Documents
// are surfaced as untyped maps because historical records do not share a
// single shape.
type CollectionScanner interface {
	Scan(ctx context.Context, collection string, fn func(id string, doc map[string]any) error) error
	Clear(ctx context.Context, collection string) (int, error)
}

// BlobScanner enumerates evidence blobs held outside the document store
// (the content-addressed GCS store), yielding per-blob sizes.
type BlobScanner interface {
	ScanSizes(ctx context.Context, fn func(id string, size int64) error) error
}

// AuditLog records recalculation runs for operational history.
type AuditLog interface {
	RecordRecalculation(ctx context.Context, run RecalcRun) error
}
