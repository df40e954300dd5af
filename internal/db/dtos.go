package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ChaseHampton/memorease/internal/search"
)

var ErrMalformedCoordinates = errors.New("malformed lot coordinates")

// DeceasedRow is the flat, persisted form of a search.DeceasedRecord.
type DeceasedRow struct {
	ID               int64          `db:"id"`
	FirstName        sql.NullString `db:"fname"`
	LastName         sql.NullString `db:"lname"`
	MiddleName       sql.NullString `db:"mname"`
	Suffix           sql.NullString `db:"suffix"`
	FullName         sql.NullString `db:"full_name"`
	Gender           sql.NullString `db:"gender"`
	Birthday         sql.NullString `db:"birthday"`
	DeathDate        sql.NullString `db:"death_date"`
	DeathCertificate sql.NullString `db:"death_certificate"`
	LotID            sql.NullInt64  `db:"lot_id"`
	LotNumber        sql.NullString `db:"lot_number"`
	LotCoordinates   sql.NullString `db:"lot_coordinates"`
	LotImage         sql.NullString `db:"lot_image"`
	IsPrivate        int64          `db:"is_private"`
	Visibility       sql.NullString `db:"visibility"`
	SyncedAt         string         `db:"synced_at"`
}

func ToRow(rec search.DeceasedRecord, syncedAt time.Time) (DeceasedRow, error) {
	row := DeceasedRow{
		ID:               rec.ID,
		FirstName:        nullString(rec.FirstName),
		LastName:         nullString(rec.LastName),
		MiddleName:       nullString(rec.MiddleName),
		Suffix:           nullString(rec.Suffix),
		FullName:         nullString(rec.FullName),
		Gender:           nullString(rec.Gender),
		Birthday:         nullString(rec.Birthday),
		DeathDate:        nullString(rec.DeathDate),
		DeathCertificate: nullString(rec.DeathCertificate),
		LotImage:         nullString(rec.LotImage),
		Visibility:       nullString(rec.Visibility),
		SyncedAt:         syncedAt.UTC().Format(time.RFC3339Nano),
	}
	if rec.IsPrivate {
		row.IsPrivate = 1
	}
	if lotID := rec.LotIdentity(); lotID != 0 {
		row.LotID = sql.NullInt64{Int64: lotID, Valid: true}
	}
	if rec.Lot != nil {
		row.LotNumber = nullString(rec.Lot.LotNumber)
		if rec.Lot.Coordinates != nil {
			encoded, err := EncodeCoordinates(rec.Lot.Coordinates)
			if err != nil {
				return DeceasedRow{}, fmt.Errorf("failed to encode coordinates for record %d: %w", rec.ID, err)
			}
			row.LotCoordinates = sql.NullString{String: encoded, Valid: true}
		}
	}
	return row, nil
}

// FromRow rebuilds the record. Coordinates that fail to decode are dropped and
// reported with ErrMalformedCoordinates; the rest of the record is still returned.
func FromRow(row DeceasedRow) (search.DeceasedRecord, error) {
	rec := search.DeceasedRecord{
		ID:               row.ID,
		FirstName:        stringPtr(row.FirstName),
		LastName:         stringPtr(row.LastName),
		MiddleName:       stringPtr(row.MiddleName),
		Suffix:           stringPtr(row.Suffix),
		FullName:         stringPtr(row.FullName),
		Gender:           stringPtr(row.Gender),
		Birthday:         stringPtr(row.Birthday),
		DeathDate:        stringPtr(row.DeathDate),
		DeathCertificate: stringPtr(row.DeathCertificate),
		LotImage:         stringPtr(row.LotImage),
		IsPrivate:        search.Flag(row.IsPrivate != 0),
		Visibility:       stringPtr(row.Visibility),
	}
	if row.LotID.Valid {
		rec.LotID = search.Ptr(row.LotID.Int64)
	}

	if !row.LotID.Valid && !row.LotNumber.Valid && !row.LotCoordinates.Valid {
		return rec, nil
	}
	rec.Lot = &search.Lot{
		ID:        row.LotID.Int64,
		LotNumber: stringPtr(row.LotNumber),
	}
	if row.LotCoordinates.Valid {
		coords, err := DecodeCoordinates(row.LotCoordinates.String)
		if err != nil {
			return rec, fmt.Errorf("record %d: %w", row.ID, err)
		}
		rec.Lot.Coordinates = coords
	}
	return rec, nil
}

// EncodeCoordinates renders the canonical [[lat,lon],...] text form. Floats use
// the shortest representation that parses back to the same value.
func EncodeCoordinates(coords []search.Coordinate) (string, error) {
	if coords == nil {
		coords = []search.Coordinate{}
	}
	data, err := json.Marshal(coords)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func DecodeCoordinates(text string) ([]search.Coordinate, error) {
	var raw [][]float64
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCoordinates, err)
	}
	coords := make([]search.Coordinate, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: point %d has %d values", ErrMalformedCoordinates, i, len(pair))
		}
		coords = append(coords, search.Coordinate{pair[0], pair[1]})
	}
	return coords, nil
}

func ConvertRecords(records []search.DeceasedRecord, syncedAt time.Time) ([]DeceasedRow, error) {
	rows := make([]DeceasedRow, 0, len(records))
	for _, rec := range records {
		row, err := ToRow(rec, syncedAt)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ConvertRows decodes every row. Rows with malformed coordinates are kept and
// counted in malformed.
func ConvertRows(rows []DeceasedRow) (records []search.DeceasedRecord, malformed int) {
	records = make([]search.DeceasedRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := FromRow(row)
		if err != nil {
			malformed++
		}
		records = append(records, rec)
	}
	return records, malformed
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
