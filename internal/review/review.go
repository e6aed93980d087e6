// Package review implements the administrator console logic: bucket
// classification, program resolution for legacy records, demographic
// rollups and reconciliation display flags. Everything here is pure
// computation over transaction snapshots; persistence stays in the stores.
package review

import (
	"context"
	"sort"
	"strings"

	"github.com/dvloznov/registration-tracker/internal/evidence"
	"github.com/dvloznov/registration-tracker/internal/program"
	"github.com/dvloznov/registration-tracker/internal/registration"
	"github.com/dvloznov/registration-tracker/internal/transaction"
)

// Buckets shown in the review console, in display order.
var Buckets = []transaction.Status{
	transaction.StatusPending,
	transaction.StatusRegistered,
	transaction.StatusHold,
	transaction.StatusBnkVerified,
}

// BucketFor classifies a raw status string into a review bucket. PENDING is
// the default bucket: any status outside the known set absorbs into it
// rather than disappearing from the console.
func BucketFor(rawStatus string) transaction.Status {
	switch transaction.Status(rawStatus) {
	case transaction.StatusRegistered, transaction.StatusHold,
		transaction.StatusBnkVerified, transaction.StatusRejected:
		return transaction.Status(rawStatus)
	default:
		return transaction.StatusPending
	}
}

// InBucket reports whether a transaction belongs to the given bucket.
func InBucket(tx *transaction.Transaction, bucket transaction.Status) bool {
	return BucketFor(tx.Status) == bucket
}

// Counts tallies transactions per bucket.
func Counts(txs []*transaction.Transaction) map[transaction.Status]int {
	counts := make(map[transaction.Status]int, len(Buckets))
	for _, tx := range txs {
		counts[BucketFor(tx.Status)]++
	}
	return counts
}

// FilterBucket returns the transactions in one bucket, preserving order.
func FilterBucket(txs []*transaction.Transaction, bucket transaction.Status) []*transaction.Transaction {
	var out []*transaction.Transaction
	for _, tx := range txs {
		if InBucket(tx, bucket) {
			out = append(out, tx)
		}
	}
	return out
}

// FilterProgram returns the transactions whose program name matches,
// ignoring case and whitespace differences so legacy spellings of the same
// program stay in one filter. An empty name means no filtering.
func FilterProgram(txs []*transaction.Transaction, itemName string) []*transaction.Transaction {
	if itemName == "" {
		return txs
	}
	want := normalizeName(itemName)
	var out []*transaction.Transaction
	for _, tx := range txs {
		if KeyOf(tx).Name == want {
			out = append(out, tx)
		}
	}
	return out
}

// DistinctPrograms lists one display name per distinct program, sorted.
// Names that differ only in case or whitespace collapse to the first
// spelling seen.
func DistinctPrograms(txs []*transaction.Transaction) []string {
	seen := make(map[string]bool)
	var names []string
	for _, tx := range txs {
		key := KeyOf(tx).Name
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, tx.ItemName)
	}
	sort.Strings(names)
	return names
}

// AmountMatch reports whether the recognized amount reconciles with the
// quoted total. Display flag only; a mismatch never blocks a transition.
func AmountMatch(tx *transaction.Transaction) bool {
	return evidence.Reconcile(tx.Amount, tx.ParsedAmount)
}

// ProgramKey identifies a distinct program by its visible signature rather
// than its id, so legacy and current transactions that reference the same
// program under different identifiers still group together.
type ProgramKey struct {
	Name string
	Date string
	City string
}

// KeyOf builds the grouping signature for a transaction.
func KeyOf(tx *transaction.Transaction) ProgramKey {
	return ProgramKey{Name: normalizeName(tx.ItemName), Date: tx.ProgramDate, City: tx.ProgramCity}
}

// Rollup is the demographic breakdown of a filtered transaction set.
type Rollup struct {
	DormMale     int `json:"dormMale"`
	DormFemale   int `json:"dormFemale"`
	RoomMale     int `json:"roomMale"`
	RoomFemale   int `json:"roomFemale"`
	TotalMale    int `json:"totalMale"`
	TotalFemale  int `json:"totalFemale"`
	Participants int `json:"participants"`
}

// RollupOf counts participants by accommodation and gender across the given
// transactions. Pure aggregation, recomputed on every filter change.
func RollupOf(txs []*transaction.Transaction) Rollup {
	var r Rollup
	for _, tx := range txs {
		for _, p := range tx.Participants {
			r.Participants++
			female := p.Gender == registration.Female
			if female {
				r.TotalFemale++
			} else {
				r.TotalMale++
			}
			switch p.Accommodation {
			case registration.Dorm:
				if female {
					r.DormFemale++
				} else {
					r.DormMale++
				}
			case registration.Room:
				if female {
					r.RoomFemale++
				} else {
					r.RoomMale++
				}
			}
		}
	}
	return r
}

// ProgramGroup is the per-program slice of a review listing: the signature
// plus the demographic rollup of its transactions.
type ProgramGroup struct {
	Name         string `json:"name"`
	Date         string `json:"date,omitempty"`
	City         string `json:"city,omitempty"`
	Transactions int    `json:"transactions"`
	Rollup       Rollup `json:"rollup"`
}

// GroupPrograms buckets transactions by program signature, so legacy and
// current records referencing the same program under different identifiers
// aggregate together. Groups come back sorted by name, date and city.
func GroupPrograms(txs []*transaction.Transaction) []ProgramGroup {
	byKey := make(map[ProgramKey][]*transaction.Transaction)
	display := make(map[ProgramKey]string)
	var keys []ProgramKey
	for _, tx := range txs {
		key := KeyOf(tx)
		if _, ok := byKey[key]; !ok {
			keys = append(keys, key)
			display[key] = tx.ItemName
		}
		byKey[key] = append(byKey[key], tx)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].City < keys[j].City
	})
	groups := make([]ProgramGroup, 0, len(keys))
	for _, key := range keys {
		members := byKey[key]
		groups = append(groups, ProgramGroup{
			Name:         display[key],
			Date:         key.Date,
			City:         key.City,
			Transactions: len(members),
			Rollup:       RollupOf(members),
		})
	}
	return groups
}

// ResolutionMethod tags how a program reference was resolved, so callers can
// tell a high-confidence id match from a best-effort name heuristic.
type ResolutionMethod string

const (
	ResolvedByID     ResolutionMethod = "id"
	ResolvedByFields ResolutionMethod = "fields"
	ResolvedByName   ResolutionMethod = "name"
	Unresolved       ResolutionMethod = "none"
)

// Resolution is the outcome of resolving a transaction's program context.
type Resolution struct {
	ProgramID string
	Date      string
	City      string
	Method    ResolutionMethod
}

// ResolveProgram finds the program context for display, trying in order:
// exact id match against the directory, the transaction's own denormalized
// date/city fields, and finally a normalized name match. The name path is a
// known collision risk (several programs can share a name across dates and
// cities) and is tagged as such in the result.
func ResolveProgram(ctx context.Context, dir program.Directory, tx *transaction.Transaction) (Resolution, error) {
	if tx.ProgramID != "" {
		ref, err := dir.GetByID(ctx, tx.ProgramID)
		if err == nil {
			return Resolution{ProgramID: ref.ID, Date: ref.ProgramDate, City: ref.ProgramCity, Method: ResolvedByID}, nil
		}
		// The referenced program may have been deleted; keep the id and
		// whatever denormalized context the record carries.
		return Resolution{ProgramID: tx.ProgramID, Date: tx.ProgramDate, City: tx.ProgramCity, Method: ResolvedByID}, nil
	}

	if tx.ProgramDate != "" && tx.ProgramCity != "" {
		return Resolution{Date: tx.ProgramDate, City: tx.ProgramCity, Method: ResolvedByFields}, nil
	}

	refs, err := dir.List(ctx)
	if err != nil {
		return Resolution{Method: Unresolved}, err
	}
	txName := normalizeName(tx.ItemName)
	for _, ref := range refs {
		progName := normalizeName(ref.ProgramName)
		if txName == "" || progName == "" {
			continue
		}
		// Containment either way handles legacy suffixes like "(Dec 20)".
		if txName == progName || strings.Contains(txName, progName) || strings.Contains(progName, txName) {
			date, city := tx.ProgramDate, tx.ProgramCity
			if date == "" {
				date = ref.ProgramDate
			}
			if city == "" {
				city = ref.ProgramCity
			}
			return Resolution{ProgramID: ref.ID, Date: date, City: city, Method: ResolvedByName}, nil
		}
	}

	return Resolution{Method: Unresolved}, nil
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
