package rulestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-normalizer/internal/vendors"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: "file::memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestLoad_BuildsRegistryFromRows(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	_, err := s.db.ExecContext(ctx, `INSERT INTO vendor_rules (vendor_key, category, pack_token, multiplier) VALUES
		('Cold Springs', 'beverage', NULL, NULL),
		('Cold Springs', NULL, '4pk', 6),
		('Hill Dairy', 'DAIRY', NULL, NULL),
		('Bad Row', NULL, '3PK', 0)`)
	require.NoError(t, err)

	require.NoError(t, s.HealthCheck(ctx, 0))
	opts, err := s.Load(ctx)
	require.NoError(t, err)
	r := vendors.NewRegistry(opts...)

	rs, tier := r.Lookup("COLDSPRINGS")
	assert.Equal(t, vendors.TierExact, tier)
	assert.Equal(t, vendors.CategoryBeverage, rs.Category)
	one := 1
	assert.Equal(t, 6, rs.UnitsPerCase(vendors.UnitsInput{Description: "TEA 4PK", CaseCode: &one}))
	assert.Equal(t, 4, rs.UnitsPerCase(vendors.UnitsInput{Description: "COLA 6PK", CaseCode: &one}))

	// DAIRY has no registered base set
	_, tier = r.Lookup("HILLDAIRY")
	assert.Equal(t, vendors.TierDefault, tier)

	_, tier = r.Lookup("BADROW")
	assert.Equal(t, vendors.TierDefault, tier)
}

func TestLoad_EmptyTable(t *testing.T) {
	s := openMemory(t)
	opts, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestOptions_SkipsUnusableRows(t *testing.T) {
	opts, skipped := Options([]Rule{
		{VendorKey: "  ", PackToken: "6PK", Multiplier: 4},
		{VendorKey: "A", PackToken: "6PK", Multiplier: 500},
		{VendorKey: "A", PackToken: "12PK", Multiplier: 2},
		{VendorKey: "A", Category: "BEVERAGE"},
		{VendorKey: "A", Category: "DAIRY"},
	})
	assert.Equal(t, 2, skipped)
	assert.Len(t, opts, 2)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, nil)
	assert.ErrorContains(t, err, "unsupported")
}

func TestBuildRegistry(t *testing.T) {
	ctx := context.Background()

	r, err := BuildRegistry(ctx, Config{}, nil)
	require.NoError(t, err)
	_, tier := r.Lookup("BONBRIGHTDISTR")
	assert.Equal(t, vendors.TierExact, tier)

	dsn := "file:" + filepath.Join(t.TempDir(), "rules.db")
	s, err := Open(ctx, Config{Driver: DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	_, err = s.db.ExecContext(ctx, `INSERT INTO vendor_rules (vendor_key, category) VALUES ('North Shore Bev', 'BEVERAGE')`)
	require.NoError(t, err)
	s.Close()

	r, err = BuildRegistry(ctx, Config{Driver: DriverSQLite, DSN: dsn}, nil)
	require.NoError(t, err)
	rs, tier := r.Lookup("NORTHSHOREBEV")
	assert.Equal(t, vendors.TierCategory, tier)
	assert.Equal(t, vendors.CategoryBeverage, rs.Category)
}
