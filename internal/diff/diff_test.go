package diff_test

import (
	"testing"

	"github.com/ChaseHampton/memorease/internal/diff"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id int64, first, last string) search.DeceasedRecord {
	return search.DeceasedRecord{
		ID:        id,
		FirstName: search.Ptr(first),
		LastName:  search.Ptr(last),
		FullName:  search.Ptr(first + " " + last),
		Birthday:  search.Ptr("1931-05-04"),
		DeathDate: search.Ptr("2019-11-30"),
		LotID:     search.Ptr(int64(10)),
		Lot: &search.Lot{
			ID:          10,
			LotNumber:   search.Ptr("A1"),
			Coordinates: []search.Coordinate{{14.1, 121.1}, {14.2, 121.2}, {14.3, 121.1}},
		},
	}
}

func TestIsEquivalent_Identical(t *testing.T) {
	remote := []search.DeceasedRecord{record(1, "Ana", "Cruz"), record(2, "Ben", "Reyes")}
	local := []search.DeceasedRecord{record(2, "Ben", "Reyes"), record(1, "Ana", "Cruz")}
	assert.True(t, diff.IsEquivalent(remote, local))
	assert.True(t, diff.IsEquivalent(nil, nil))
}

func TestIsEquivalent_CountMismatchShortCircuits(t *testing.T) {
	remote := []search.DeceasedRecord{record(1, "Ana", "Cruz"), record(2, "Ben", "Reyes")}
	local := []search.DeceasedRecord{record(1, "Ana", "Cruz")}
	assert.False(t, diff.IsEquivalent(remote, local))

	report := diff.Compare(remote, local)
	assert.True(t, report.CountMismatch)
	assert.Empty(t, report.Mismatches)
	assert.Empty(t, report.Missing)
	assert.Contains(t, report.Summary(), "remote=2 local=1")
}

func TestIsEquivalent_KeyIncludesNameAndLot(t *testing.T) {
	remote := []search.DeceasedRecord{record(1, "Ana", "Cruz")}

	renamed := record(1, "Anna", "Cruz")
	assert.False(t, diff.IsEquivalent(remote, []search.DeceasedRecord{renamed}))

	moved := record(1, "Ana", "Cruz")
	moved.Lot.ID = 11
	assert.False(t, diff.IsEquivalent(remote, []search.DeceasedRecord{moved}))

	report := diff.Compare(remote, []search.DeceasedRecord{moved})
	require.Len(t, report.Missing, 1)
	assert.Equal(t, diff.Key{ID: 1, FirstName: "Ana", LastName: "Cruz", LotID: 11}, report.Missing[0])
}

func TestIsEquivalent_FieldMismatch(t *testing.T) {
	remote := []search.DeceasedRecord{record(1, "Ana", "Cruz")}

	changes := map[string]func(*search.DeceasedRecord){
		"full_name":         func(r *search.DeceasedRecord) { r.FullName = search.Ptr("Ana M. Cruz") },
		"gender":            func(r *search.DeceasedRecord) { r.Gender = search.Ptr("female") },
		"birthday":          func(r *search.DeceasedRecord) { r.Birthday = search.Ptr("1931-05-05") },
		"death_date":        func(r *search.DeceasedRecord) { r.DeathDate = nil },
		"death_certificate": func(r *search.DeceasedRecord) { r.DeathCertificate = search.Ptr("certs/1.pdf") },
		"lot_image":         func(r *search.DeceasedRecord) { r.LotImage = search.Ptr("lots/1.jpg") },
		"is_private":        func(r *search.DeceasedRecord) { r.IsPrivate = true },
		"visibility":        func(r *search.DeceasedRecord) { r.Visibility = search.Ptr("hidden") },
		"lot_coordinates":   func(r *search.DeceasedRecord) { r.Lot.Coordinates[2] = search.Coordinate{14.3, 121.10001} },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			local := record(1, "Ana", "Cruz")
			change(&local)
			assert.False(t, diff.IsEquivalent(remote, []search.DeceasedRecord{local}))

			report := diff.Compare(remote, []search.DeceasedRecord{local})
			require.Len(t, report.Mismatches, 1)
			assert.Equal(t, name, report.Mismatches[0].Field)
			assert.False(t, report.Equivalent)
		})
	}
}

func TestIsEquivalent_DatesIgnoreTime(t *testing.T) {
	remote := record(1, "Ana", "Cruz")
	remote.DeathDate = search.Ptr("2019-11-30T00:00:00.000000Z")
	local := record(1, "Ana", "Cruz")
	local.DeathDate = search.Ptr("2019-11-30")
	assert.True(t, diff.IsEquivalent([]search.DeceasedRecord{remote}, []search.DeceasedRecord{local}))
}

func TestIsEquivalent_MissingAndEmptyStringsMatch(t *testing.T) {
	remote := record(1, "Ana", "Cruz")
	remote.Gender = search.Ptr("")
	local := record(1, "Ana", "Cruz")
	local.Gender = nil
	assert.True(t, diff.IsEquivalent([]search.DeceasedRecord{remote}, []search.DeceasedRecord{local}))
}

func TestIsEquivalent_CoordinatesOnlyWhenBothPresent(t *testing.T) {
	remote := record(1, "Ana", "Cruz")
	local := record(1, "Ana", "Cruz")
	local.Lot.Coordinates = nil
	assert.True(t, diff.IsEquivalent([]search.DeceasedRecord{remote}, []search.DeceasedRecord{local}))
}

func TestCompare_Equivalent(t *testing.T) {
	recs := []search.DeceasedRecord{record(1, "Ana", "Cruz")}
	report := diff.Compare(recs, recs)
	assert.True(t, report.Equivalent)
	assert.Equal(t, "equivalent (1 records)", report.Summary())
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   *string
		want string
	}{
		{nil, ""},
		{search.Ptr(""), ""},
		{search.Ptr("1950-01-02"), "1950-01-02"},
		{search.Ptr("1950-01-02T00:00:00.000000Z"), "1950-01-02"},
		{search.Ptr("1950-01-02 08:00:00"), "1950-01-02"},
		{search.Ptr("  unknown "), "unknown"},
		{search.Ptr("1950-13-45 bad"), "1950-13-45 bad"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, diff.NormalizeDate(tc.in))
	}
}
