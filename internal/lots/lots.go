package lots

import (
	"sort"
	"strings"

	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Group is one plottable lot and everyone buried in it.
type Group struct {
	LotID     int64                   `json:"lot_id"`
	LotNumber string                  `json:"lot_number"`
	Polygon   orb.Polygon             `json:"-"`
	Center    orb.Point               `json:"-"`
	Deceased  []search.DeceasedRecord `json:"deceased"`
}

// GroupByLot buckets records by lot. Records without a lot polygon are left
// out. The first record seen for a lot supplies its outline.
func GroupByLot(records []search.DeceasedRecord) []Group {
	byLot := make(map[int64]*Group)
	for _, rec := range records {
		if !rec.HasPolygon() {
			continue
		}
		id := rec.LotIdentity()
		g, ok := byLot[id]
		if !ok {
			g = &Group{
				LotID:     id,
				LotNumber: search.Deref(rec.Lot.LotNumber),
				Polygon:   polygon(rec.Lot.Coordinates),
				Center:    center(rec.Lot.Coordinates),
			}
			byLot[id] = g
		}
		g.Deceased = append(g.Deceased, rec)
	}

	groups := make([]Group, 0, len(byLot))
	for _, g := range byLot {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].LotID < groups[j].LotID })
	return groups
}

// SearchByName matches query against DisplayName, ignoring case.
func SearchByName(records []search.DeceasedRecord, query string) []search.DeceasedRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []search.DeceasedRecord{}
	}
	matches := []search.DeceasedRecord{}
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.DisplayName()), q) {
			matches = append(matches, rec)
		}
	}
	return matches
}

// LotAt returns the lot whose outline contains the point.
func LotAt(groups []Group, lat, lon float64) (Group, bool) {
	p := toPoint(search.Coordinate{lat, lon})
	for _, g := range groups {
		if !g.Polygon.Bound().Contains(p) {
			continue
		}
		if planar.PolygonContains(g.Polygon, p) {
			return g, true
		}
	}
	return Group{}, false
}

// toPoint converts a {lat, lon} pair to orb's {x=lon, y=lat}.
func toPoint(c search.Coordinate) orb.Point {
	return orb.Point{c.Lon(), c.Lat()}
}

func polygon(coords []search.Coordinate) orb.Polygon {
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, toPoint(c))
	}
	if !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}

// center is the mean of the lot's vertices, where the map places the marker.
func center(coords []search.Coordinate) orb.Point {
	mp := make(orb.MultiPoint, 0, len(coords))
	for _, c := range coords {
		mp = append(mp, toPoint(c))
	}
	centroid, _ := planar.CentroidArea(mp)
	return centroid
}

// Lat and Lon read a point back in map order.
func Lat(p orb.Point) float64 { return p.Y() }
func Lon(p orb.Point) float64 { return p.X() }
