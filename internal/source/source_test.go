package source_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChaseHampton/memorease/internal/config"
	"github.com/ChaseHampton/memorease/internal/search"
	"github.com/ChaseHampton/memorease/internal/source"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckUnique(t *testing.T) {
	assert.NoError(t, source.CheckUnique([]search.DeceasedRecord{{ID: 1}, {ID: 2}}))

	err := source.CheckUnique([]search.DeceasedRecord{{ID: 1}, {ID: 2}, {ID: 1}})
	assert.ErrorIs(t, err, source.ErrDuplicateIdentity)
	assert.Contains(t, err.Error(), "id 1")
}

func TestStatic_Fetch(t *testing.T) {
	s := &source.Static{Records: []search.DeceasedRecord{{ID: 1}}}
	records, err := s.Fetch(context.Background(), search.DefaultSnapshotParams())
	require.NoError(t, err)
	records[0].ID = 99
	assert.Equal(t, int64(1), s.Records[0].ID)

	boom := errors.New("offline")
	_, err = (&source.Static{Err: boom}).Fetch(context.Background(), search.DefaultSnapshotParams())
	assert.ErrorIs(t, err, boom)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deceased.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"data":[{"id":4,"full_name":"Dee Santos"}]}`), 0o644))

	s, err := source.LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, s.Records, 1)
	assert.Equal(t, "Dee Santos", s.Records[0].DisplayName())

	_, err = source.LoadFixture(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestNew_SelectsByKind(t *testing.T) {
	cfg := &config.Config{RemoteConfig: config.RemoteConfig{Kind: "http", BaseURL: "http://example.invalid"}}
	src, err := source.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &source.HTTPSource{}, src)

	cfg.RemoteConfig.Kind = "sqlserver"
	cfg.RemoteConfig.SQLServer = config.SQLServerConfig{Host: "office", Port: 1433, DBName: "park"}
	src, err = source.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &source.SQLServerSource{}, src)

	cfg.RemoteConfig.Kind = "carrier-pigeon"
	_, err = source.New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
