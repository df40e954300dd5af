package source

import (
	"database/sql"
	"testing"

	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSQLQuery_Snapshot(t *testing.T) {
	query, args := buildSQLQuery(search.DefaultSnapshotParams())

	assert.Contains(t, query, "LEFT JOIN dbo.Lots l ON l.id = d.lot_id")
	assert.Contains(t, query, "d.status = @Status")
	assert.Contains(t, query, "d.is_private = @IsPrivate")
	assert.NotContains(t, query, "@Search")
	assert.NotContains(t, query, "OFFSET")
	assert.Equal(t, []any{sql.Named("Status", "active"), sql.Named("IsPrivate", 0)}, args)
}

func TestBuildSQLQuery_SearchAndPaging(t *testing.T) {
	params := search.SearchParams{Search: "cruz", Pagination: search.PaginationPaged, Page: 3, PerPage: 50}
	query, args := buildSQLQuery(params)

	assert.Contains(t, query, "d.full_name LIKE @Search")
	assert.Contains(t, query, "OFFSET @Skip ROWS FETCH NEXT @Limit ROWS ONLY")
	assert.Equal(t, []any{
		sql.Named("Search", "%cruz%"),
		sql.Named("Skip", 100),
		sql.Named("Limit", 50),
	}, args)
}

func TestDeceasedLotRow_Record(t *testing.T) {
	row := deceasedLotRow{
		ID:             1,
		FullName:       sql.NullString{String: "Ana Cruz", Valid: true},
		LotID:          sql.NullInt64{Int64: 10, Valid: true},
		LotRef:         sql.NullInt64{Int64: 10, Valid: true},
		LotNumber:      sql.NullString{String: "A1", Valid: true},
		LotCoordinates: sql.NullString{String: "[[14.1,121.1],[14.2,121.2],[14.3,121.1]]", Valid: true},
		IsPrivate:      true,
	}
	rec, err := row.record()
	require.NoError(t, err)
	assert.True(t, rec.HasPolygon())
	assert.Equal(t, "A1", search.Deref(rec.Lot.LotNumber))
	assert.True(t, bool(rec.IsPrivate))
	assert.Nil(t, rec.Gender)

	row.LotCoordinates.String = "not json"
	rec, err = row.record()
	assert.Error(t, err)
	require.NotNil(t, rec.Lot)
	assert.Nil(t, rec.Lot.Coordinates)

	row.LotRef = sql.NullInt64{}
	rec, err = row.record()
	require.NoError(t, err)
	assert.Nil(t, rec.Lot)
	assert.Equal(t, int64(10), rec.LotIdentity())
}
