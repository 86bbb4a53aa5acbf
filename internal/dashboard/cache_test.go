package dashboard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semlayer/semlayer/internal/db"
)

func TestQueryCacheTTL(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	c := NewQueryCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	var loads int
	load := func(context.Context) (*db.Result, error) {
		loads++
		return &db.Result{Columns: []string{"n"}, Rows: [][]any{{loads}}}, nil
	}

	res, hit, err := c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, res.Rows[0][0])

	now = now.Add(4 * time.Minute)
	res, hit, err = c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, res.Rows[0][0])

	now = now.Add(time.Minute)
	res, hit, err = c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, res.Rows[0][0])
	assert.Equal(t, 1, c.Len())
}

func TestQueryCacheDoesNotCacheErrors(t *testing.T) {
	c := NewQueryCache(time.Minute)
	boom := errors.New("boom")

	_, _, err := c.Get(context.Background(), "k", func(context.Context) (*db.Result, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	_, hit, err := c.Get(context.Background(), "k", func(context.Context) (*db.Result, error) { return &db.Result{}, nil })
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestQueryCacheCoalescesMisses(t *testing.T) {
	c := NewQueryCache(time.Minute)
	var loads atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Get(context.Background(), "same", func(context.Context) (*db.Result, error) {
				loads.Add(1)
				<-release
				return &db.Result{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, loads.Load(), int32(2))
}

func TestQueryCacheWaiterOutlivesCancelledCaller(t *testing.T) {
	c := NewQueryCache(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.Get(firstCtx, "shared", func(ctx context.Context) (*db.Result, error) {
			close(started)
			select {
			case <-release:
				return &db.Result{Columns: []string{"n"}, Rows: [][]any{{1}}}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		firstErr <- err
	}()
	<-started

	secondRes := make(chan *db.Result, 1)
	secondErr := make(chan error, 1)
	go func() {
		res, _, err := c.Get(context.Background(), "shared", func(context.Context) (*db.Result, error) {
			return &db.Result{Columns: []string{"n"}, Rows: [][]any{{2}}}, nil
		})
		secondRes <- res
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-secondErr)
	res := <-secondRes
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Rows[0][0])
	assert.Equal(t, 1, c.Len())
}

func TestQueryCacheDisabled(t *testing.T) {
	c := NewQueryCache(0)
	var loads int
	for i := 0; i < 3; i++ {
		_, hit, err := c.Get(context.Background(), "k", func(context.Context) (*db.Result, error) { loads++; return &db.Result{}, nil })
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 3, loads)
}

func TestCacheKey(t *testing.T) {
	assert.NotEqual(t, CacheKey("SELECT ?", 1), CacheKey("SELECT ?", "1"))
	assert.Equal(t, CacheKey("SELECT ?", "a"), CacheKey("SELECT ?", "a"))
}

func TestBuildChart(t *testing.T) {
	res := &db.Result{
		Columns: []string{"shift", "records", "hours"},
		Rows:    [][]any{{"Day", int64(10), 80.0}, {nil, int64(2), 16.5}},
	}

	cfg, err := BuildChart("bar", "Shifts", res, "shift", "records", "hours")
	require.NoError(t, err)
	assert.Equal(t, []string{"Day", "(none)"}, cfg.Labels)
	require.Len(t, cfg.Series, 2)
	assert.Equal(t, []float64{10, 2}, cfg.Series[0].Data)
	assert.Equal(t, []float64{80, 16.5}, cfg.Series[1].Data)
	assert.Len(t, cfg.Colors, 2)
	assert.True(t, cfg.ShowLegend)

	pie, err := BuildChart("pie", "Shifts", res, "shift", "records")
	require.NoError(t, err)
	assert.Len(t, pie.Colors, 2)

	_, err = BuildChart("bar", "x", res, "missing", "records")
	assert.Error(t, err)
}

func TestPivotChart(t *testing.T) {
	res := &db.Result{
		Columns: []string{"week_number", "shift", "total_hours"},
		Rows: [][]any{
			{int32(40), "Night", 32.0},
			{int32(40), "Day", 80.0},
			{int32(41), "Day", 48.0},
		},
	}
	cfg, err := PivotChart("bar", "Hours", res, "week_number", "shift", "total_hours")
	require.NoError(t, err)
	assert.Equal(t, []string{"40", "41"}, cfg.Labels)
	require.Len(t, cfg.Series, 2)
	assert.Equal(t, "Day", cfg.Series[0].Name)
	assert.Equal(t, []float64{80, 48}, cfg.Series[0].Data)
	assert.Equal(t, []float64{32, 0}, cfg.Series[1].Data)
}

func TestCountBy(t *testing.T) {
	res := &db.Result{Columns: []string{"module"}, Rows: [][]any{{"Payroll"}, {"Benefits"}, {"Payroll"}}}
	out := CountBy(res, "module")
	assert.Equal(t, [][]any{{"Payroll", int64(2)}, {"Benefits", int64(1)}}, out.Rows)
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "0", thousands(0))
	assert.Equal(t, "999", thousands(999))
	assert.Equal(t, "1,000", thousands(1000))
	assert.Equal(t, "-1,234,567", thousands(-1234567))
}
