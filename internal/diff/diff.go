package diff

import (
	"fmt"
	"strings"
	"time"

	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/ChaseHampton/memorease/internal/search"
)

// Key identifies a record for comparison. Two records with the same id but a
// different name or lot are treated as different records.
type Key struct {
	ID        int64
	FirstName string
	LastName  string
	LotID     int64
}

func KeyOf(rec search.DeceasedRecord) Key {
	return Key{
		ID:        rec.ID,
		FirstName: search.Deref(rec.FirstName),
		LastName:  search.Deref(rec.LastName),
		LotID:     rec.LotIdentity(),
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%s/%s/%d", k.ID, k.FirstName, k.LastName, k.LotID)
}

type FieldMismatch struct {
	Key    Key
	Field  string
	Remote string
	Local  string
}

type Report struct {
	Equivalent    bool
	RemoteCount   int
	LocalCount    int
	CountMismatch bool
	Missing       []Key
	Mismatches    []FieldMismatch
}

func (r Report) Summary() string {
	if r.Equivalent {
		return fmt.Sprintf("equivalent (%d records)", r.LocalCount)
	}
	if r.CountMismatch {
		return fmt.Sprintf("count mismatch: remote=%d local=%d", r.RemoteCount, r.LocalCount)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d local records missing from remote, %d field mismatches", len(r.Missing), len(r.Mismatches))
	if len(r.Mismatches) > 0 {
		m := r.Mismatches[0]
		fmt.Fprintf(&b, " (first: %s %s remote=%q local=%q)", m.Key, m.Field, m.Remote, m.Local)
	}
	return b.String()
}

// IsEquivalent reports whether local already mirrors remote. It checks the
// counts, then that every local record has a remote record with the same key
// and the same compared fields.
func IsEquivalent(remote, local []search.DeceasedRecord) bool {
	if len(remote) != len(local) {
		return false
	}

	byKey := index(remote)
	for _, l := range local {
		r, ok := byKey[KeyOf(l)]
		if !ok {
			return false
		}
		if len(fieldMismatches(r, l, true)) > 0 {
			return false
		}
	}
	return true
}

// Compare runs the same checks as IsEquivalent but collects every difference.
func Compare(remote, local []search.DeceasedRecord) Report {
	report := Report{RemoteCount: len(remote), LocalCount: len(local)}
	if len(remote) != len(local) {
		report.CountMismatch = true
		return report
	}

	byKey := index(remote)
	for _, l := range local {
		key := KeyOf(l)
		r, ok := byKey[key]
		if !ok {
			report.Missing = append(report.Missing, key)
			continue
		}
		report.Mismatches = append(report.Mismatches, fieldMismatches(r, l, false)...)
	}
	report.Equivalent = len(report.Missing) == 0 && len(report.Mismatches) == 0
	return report
}

func index(records []search.DeceasedRecord) map[Key]search.DeceasedRecord {
	byKey := make(map[Key]search.DeceasedRecord, len(records))
	for _, rec := range records {
		byKey[KeyOf(rec)] = rec
	}
	return byKey
}

type field struct {
	name string
	get  func(search.DeceasedRecord) string
}

var comparedFields = []field{
	{"full_name", func(r search.DeceasedRecord) string { return search.Deref(r.FullName) }},
	{"gender", func(r search.DeceasedRecord) string { return search.Deref(r.Gender) }},
	{"birthday", func(r search.DeceasedRecord) string { return NormalizeDate(r.Birthday) }},
	{"death_date", func(r search.DeceasedRecord) string { return NormalizeDate(r.DeathDate) }},
	{"death_certificate", func(r search.DeceasedRecord) string { return search.Deref(r.DeathCertificate) }},
	{"lot_image", func(r search.DeceasedRecord) string { return search.Deref(r.LotImage) }},
	{"is_private", func(r search.DeceasedRecord) string {
		if r.IsPrivate {
			return "1"
		}
		return "0"
	}},
	{"visibility", func(r search.DeceasedRecord) string { return search.Deref(r.Visibility) }},
}

func fieldMismatches(remote, local search.DeceasedRecord, firstOnly bool) []FieldMismatch {
	var out []FieldMismatch
	key := KeyOf(local)
	for _, f := range comparedFields {
		rv, lv := f.get(remote), f.get(local)
		if rv != lv {
			out = append(out, FieldMismatch{Key: key, Field: f.name, Remote: rv, Local: lv})
			if firstOnly {
				return out
			}
		}
	}

	rc, rok := coordinates(remote)
	lc, lok := coordinates(local)
	if rok && lok && rc != lc {
		out = append(out, FieldMismatch{Key: key, Field: "lot_coordinates", Remote: rc, Local: lc})
	}
	return out
}

// coordinates returns the canonical encoding when the record carries a
// coordinate list.
func coordinates(rec search.DeceasedRecord) (string, bool) {
	if rec.Lot == nil || rec.Lot.Coordinates == nil {
		return "", false
	}
	encoded, err := db.EncodeCoordinates(rec.Lot.Coordinates)
	if err != nil {
		return "", false
	}
	return encoded, true
}

// NormalizeDate reduces a date or timestamp to YYYY-MM-DD. Values that do not
// start with a date are compared as trimmed text.
func NormalizeDate(s *string) string {
	v := strings.TrimSpace(search.Deref(s))
	if len(v) >= 10 {
		if _, err := time.Parse(time.DateOnly, v[:10]); err == nil {
			return v[:10]
		}
	}
	return v
}
