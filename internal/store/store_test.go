package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/subway_path/internal/config"
	"github.com/passbi/subway_path/internal/db"
	"github.com/passbi/subway_path/internal/graph"
	"github.com/passbi/subway_path/internal/models"
	"github.com/passbi/subway_path/internal/routing"
	"github.com/passbi/subway_path/internal/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreIsLoader(t *testing.T) {
	var loader graph.Loader = New(nil)
	assert.NotNil(t, loader)
}

// testPool connects to the database named by the DB_* variables and points
// search_path at a throwaway schema, so Import never truncates real tables
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set")
	}

	cfg, err := config.LoadFile("")
	require.NoError(t, err)

	ctx := context.Background()
	admin, err := db.Connect(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(admin.Close)

	schema := fmt.Sprintf("subway_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		if _, err := admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE"); err != nil {
			t.Logf("failed to drop %s: %v", schema, err)
		}
	})

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnString())
	require.NoError(t, err)
	poolConfig.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, graph.NewBuilder(pool).EnsureSchema(ctx))
	return pool
}

func TestStoreRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	st := New(pool)

	t.Run("No import yet", func(t *testing.T) {
		entry, err := st.LastImport(ctx)
		require.NoError(t, err)
		assert.Nil(t, entry)
	})

	// Line 9 is listed before Line 2 on purpose
	s := &seed.Seed{
		Stations: []string{"Sinnonhyeon", "Gangnam", "Gyodae", "Yangjae", "Seocho"},
		LineStops: []models.SeedLineStop{
			{LineName: "Line 9", StationName: "Sinnonhyeon", Sequence: 1},
			{LineName: "Line 2", StationName: "Gangnam", Sequence: 3},
			{LineName: "Line 2", StationName: "Seocho", Sequence: 1},
			{LineName: "Line 2", StationName: "Gyodae", Sequence: 2},
			{LineName: "Line 9", StationName: "Gangnam", Sequence: 2},
		},
		Sections: []models.Section{
			{From: "Seocho", To: "Gyodae", Distance: 1, Time: 2},
			{From: "Gyodae", To: "Gangnam", Distance: 2, Time: 3},
			{From: "Gangnam", To: "Yangjae", Distance: 2, Time: 3},
			{From: "Sinnonhyeon", To: "Gangnam", Distance: 1.5, Time: 2},
			{From: "Gangnam", To: "Gyodae", Distance: 4, Time: 6},
		},
	}

	id, err := st.StartImport(ctx)
	require.NoError(t, err)

	stats, err := graph.NewBuilder(pool).Import(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, graph.ImportStats{Stations: 5, Lines: 2, Sections: 5}, stats)
	require.NoError(t, st.FinishImport(ctx, id, stats.Stations, stats.Lines, stats.Sections, nil))

	t.Run("Stations", func(t *testing.T) {
		stations, err := st.LoadStations(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Gangnam", "Gyodae", "Seocho", "Sinnonhyeon", "Yangjae"}, stations)
	})

	t.Run("Lines keep seed order", func(t *testing.T) {
		lines, err := st.LoadLines(ctx)
		require.NoError(t, err)
		assert.Equal(t, s.Lines(), lines)
		assert.Equal(t, []models.Line{
			{Name: "Line 9", Stations: []string{"Sinnonhyeon", "Gangnam"}},
			{Name: "Line 2", Stations: []string{"Seocho", "Gyodae", "Gangnam"}},
		}, lines)
	})

	t.Run("Sections keep insertion order", func(t *testing.T) {
		sections, err := st.LoadSections(ctx)
		require.NoError(t, err)
		require.Len(t, sections, len(s.Sections))
		for i, sec := range sections {
			assert.NotZero(t, sec.ID)
			sec.ID = 0
			assert.Equal(t, s.Sections[i], sec)
		}
	})

	t.Run("Network builds from store", func(t *testing.T) {
		network, err := graph.LoadNetwork(ctx, st, routing.WeightFuncs())
		require.NoError(t, err)
		assert.Equal(t, []string{"Line 9", "Line 2"}, []string{network.Lines()[0].Name, network.Lines()[1].Name})

		// The later Gangnam-Gyodae record overwrites the earlier one
		g, ok := network.Graph(models.MetricDistance)
		require.True(t, ok)
		assert.Contains(t, g.NeighborsOf("Gyodae"), graph.Neighbor{Station: "Gangnam", Weight: 4})
		assert.Contains(t, g.NeighborsOf("Gangnam"), graph.Neighbor{Station: "Gyodae", Weight: 4})
	})

	t.Run("Completed import", func(t *testing.T) {
		entry, err := st.LastImport(ctx)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, id, entry.ID)
		assert.Equal(t, "completed", entry.Status)
		assert.Equal(t, 5, entry.StationsCount)
		assert.Equal(t, 2, entry.LinesCount)
		assert.Equal(t, 5, entry.SectionsCount)
		assert.NotNil(t, entry.CompletedAt)
		assert.Empty(t, entry.ErrorMsg)
	})

	t.Run("Failed import", func(t *testing.T) {
		failedID, err := st.StartImport(ctx)
		require.NoError(t, err)
		require.NoError(t, st.FinishImport(ctx, failedID, 0, 0, 0, errors.New("bad seed")))

		entry, err := st.LastImport(ctx)
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, failedID, entry.ID)
		assert.Equal(t, "failed", entry.Status)
		assert.Equal(t, "bad seed", entry.ErrorMsg)
	})
}
