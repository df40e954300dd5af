package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized      = errors.New("remote rejected credentials")
	ErrDuplicateIdentity = errors.New("duplicate record identity in remote snapshot")
)

// Source returns the remote snapshot of deceased records.
type Source interface {
	Fetch(ctx context.Context, params search.SearchParams) ([]search.DeceasedRecord, error)
}

// New picks the source named by cfg.RemoteConfig.Kind.
func New(cfg *config.Config, logger zerolog.Logger) (Source, error) {
	switch cfg.RemoteConfig.Kind {
	case "", "http":
		return NewHTTPSource(&cfg.HTTPConfig, cfg.RemoteConfig, logger), nil
	case "sqlserver":
		return NewSQLServerSource(cfg.RemoteConfig.SQLServer, logger)
	case "fixture":
		return LoadFixture(cfg.RemoteConfig.FixturePath)
	default:
		return nil, fmt.Errorf("unknown remote kind %q", cfg.RemoteConfig.Kind)
	}
}

// CheckUnique fails with ErrDuplicateIdentity when two records share an id.
func CheckUnique(records []search.DeceasedRecord) error {
	seen := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.ID]; ok {
			return fmt.Errorf("%w: id %d", ErrDuplicateIdentity, rec.ID)
		}
		seen[rec.ID] = struct{}{}
	}
	return nil
}

// Static serves a fixed snapshot. Err, when set, is returned instead.
type Static struct {
	Records []search.DeceasedRecord
	Err     error
}

func (s *Static) Fetch(ctx context.Context, params search.SearchParams) ([]search.DeceasedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]search.DeceasedRecord, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

// LoadFixture reads a file holding a {"data":[...]} response body.
func LoadFixture(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	records, err := search.DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode fixture %s: %w", path, err)
	}
	return &Static{Records: records}, nil
}
