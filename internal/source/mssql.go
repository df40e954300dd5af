package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/db"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"
)

// SQLServerSource reads the snapshot straight from the park office database.
type SQLServerSource struct {
	db     *sqlx.DB
	logger zerolog.Logger
}

// NewSQLServerSource prepares a pool without connecting; the first Fetch dials.
func NewSQLServerSource(cfg config.SQLServerConfig, logger zerolog.Logger) (*SQLServerSource, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s;encrypt=true;trustservercertificate=true",
		cfg.Host, cfg.Port, cfg.DBName, cfg.User, cfg.Password)

	conn, err := sqlx.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql server pool: %w", err)
	}
	conn.SetMaxOpenConns(2)
	return &SQLServerSource{
		db:     conn,
		logger: logger.With().Str("component", "sqlserver_source").Logger(),
	}, nil
}

type deceasedLotRow struct {
	ID               int64          `db:"id"`
	FirstName        sql.NullString `db:"fname"`
	MiddleName       sql.NullString `db:"mname"`
	LastName         sql.NullString `db:"lname"`
	Suffix           sql.NullString `db:"suffix"`
	FullName         sql.NullString `db:"full_name"`
	Gender           sql.NullString `db:"gender"`
	Birthday         sql.NullString `db:"birthday"`
	DeathDate        sql.NullString `db:"death_date"`
	DeathCertificate sql.NullString `db:"death_certificate"`
	LotID            sql.NullInt64  `db:"lot_id"`
	LotImage         sql.NullString `db:"lot_image"`
	IsPrivate        bool           `db:"is_private"`
	Visibility       sql.NullString `db:"visibility"`
	LotRef           sql.NullInt64  `db:"lot_ref"`
	LotNumber        sql.NullString `db:"lot_number"`
	LotCoordinates   sql.NullString `db:"lot_coordinates"`
}

func (s *SQLServerSource) Fetch(ctx context.Context, params search.SearchParams) ([]search.DeceasedRecord, error) {
	query, args := buildSQLQuery(params)

	var rows []deceasedLotRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query deceased: %w", err)
	}

	records := make([]search.DeceasedRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			s.logger.Warn().Err(err).Int64("id", row.ID).Msg("dropping lot coordinates")
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SQLServerSource) Close() error {
	return s.db.Close()
}

func (r deceasedLotRow) record() (search.DeceasedRecord, error) {
	rec := search.DeceasedRecord{
		ID:               r.ID,
		FirstName:        nullable(r.FirstName),
		MiddleName:       nullable(r.MiddleName),
		LastName:         nullable(r.LastName),
		Suffix:           nullable(r.Suffix),
		FullName:         nullable(r.FullName),
		Gender:           nullable(r.Gender),
		Birthday:         nullable(r.Birthday),
		DeathDate:        nullable(r.DeathDate),
		DeathCertificate: nullable(r.DeathCertificate),
		LotImage:         nullable(r.LotImage),
		IsPrivate:        search.Flag(r.IsPrivate),
		Visibility:       nullable(r.Visibility),
	}
	if r.LotID.Valid {
		rec.LotID = search.Ptr(r.LotID.Int64)
	}
	if !r.LotRef.Valid {
		return rec, nil
	}

	rec.Lot = &search.Lot{ID: r.LotRef.Int64, LotNumber: nullable(r.LotNumber)}
	if r.LotCoordinates.Valid && strings.TrimSpace(r.LotCoordinates.String) != "" {
		coords, err := db.DecodeCoordinates(r.LotCoordinates.String)
		if err != nil {
			return rec, err
		}
		rec.Lot.Coordinates = coords
	}
	return rec, nil
}

// buildSQLQuery renders the same filters the REST endpoint accepts.
func buildSQLQuery(params search.SearchParams) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT d.id, d.fname, d.mname, d.lname, d.suffix, d.full_name, d.gender,
	CONVERT(varchar(33), d.birthday, 126) AS birthday,
	CONVERT(varchar(33), d.death_date, 126) AS death_date,
	d.death_certificate, d.lot_id, d.lot_image, d.is_private, d.visibility,
	l.id AS lot_ref, l.lot_number, l.coordinates AS lot_coordinates
FROM dbo.Deceased d
LEFT JOIN dbo.Lots l ON l.id = d.lot_id
WHERE 1 = 1`)

	var args []any
	if params.Search != "" {
		b.WriteString(" AND d.full_name LIKE @Search")
		args = append(args, sql.Named("Search", "%"+params.Search+"%"))
	}
	if params.Status != "" {
		b.WriteString(" AND d.status = @Status")
		args = append(args, sql.Named("Status", params.Status))
	}
	if params.IsPrivate != nil {
		b.WriteString(" AND d.is_private = @IsPrivate")
		args = append(args, sql.Named("IsPrivate", *params.IsPrivate))
	}
	b.WriteString(" ORDER BY d.id")

	if params.Pagination == search.PaginationPaged && params.PerPage > 0 {
		page := params.Page
		if page < 1 {
			page = 1
		}
		b.WriteString(" OFFSET @Skip ROWS FETCH NEXT @Limit ROWS ONLY")
		args = append(args, sql.Named("Skip", (page-1)*params.PerPage), sql.Named("Limit", params.PerPage))
	}
	return b.String(), args
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
