package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MinPolygonPoints is the smallest coordinate count that describes a plottable lot.
const MinPolygonPoints = 3

type DeceasedRecord struct {
	ID               int64   `json:"id"`
	FirstName        *string `json:"fname"`
	MiddleName       *string `json:"mname"`
	LastName         *string `json:"lname"`
	Suffix           *string `json:"suffix"`
	FullName         *string `json:"full_name"`
	Gender           *string `json:"gender"`
	Birthday         *string `json:"birthday"`
	DeathDate        *string `json:"death_date"`
	DeathCertificate *string `json:"death_certificate"`
	LotID            *int64  `json:"lot_id"`
	LotImage         *string `json:"lot_image"`
	IsPrivate        Flag    `json:"is_private"`
	Visibility       *string `json:"visibility"`
	Lot              *Lot    `json:"lot"`
}

type Lot struct {
	ID          int64        `json:"id"`
	LotNumber   *string      `json:"lot_number"`
	Coordinates []Coordinate `json:"coordinates"`
}

// Coordinate is a {latitude, longitude} pair, encoded as a two element JSON array.
type Coordinate [2]float64

func (c Coordinate) Lat() float64 { return c[0] }
func (c Coordinate) Lon() float64 { return c[1] }

// Flag is a boolean the API sends as 0/1, "0"/"1" or true/false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	switch raw {
	case "null", `""`:
		*f = false
		return nil
	case "true", `"true"`:
		*f = true
		return nil
	case "false", `"false"`:
		*f = false
		return nil
	}
	n, err := strconv.ParseFloat(strings.Trim(raw, `"`), 64)
	if err != nil {
		return fmt.Errorf("invalid flag value %s", raw)
	}
	*f = n != 0
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

// LotIdentity returns the lot id, preferring the nested lot over the flat lot_id.
func (d *DeceasedRecord) LotIdentity() int64 {
	if d.Lot != nil && d.Lot.ID != 0 {
		return d.Lot.ID
	}
	if d.LotID != nil {
		return *d.LotID
	}
	return 0
}

func (d *DeceasedRecord) HasPolygon() bool {
	return d.Lot != nil && len(d.Lot.Coordinates) >= MinPolygonPoints
}

func (d *DeceasedRecord) DisplayName() string {
	if name := Deref(d.FullName); strings.TrimSpace(name) != "" {
		return name
	}
	parts := make([]string, 0, 4)
	for _, p := range []*string{d.FirstName, d.MiddleName, d.LastName, d.Suffix} {
		if s := strings.TrimSpace(Deref(p)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func Ptr[T any](v T) *T {
	return &v
}

func DecodeRecords(data []byte) ([]DeceasedRecord, error) {
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deceased response: %w", err)
	}
	return resp.Data, nil
}
