package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/ledgertest"
)

type staticSource struct {
	records [][]string
	err     error
}

func (s staticSource) Records(context.Context) ([][]string, error) { return s.records, s.err }
func (staticSource) String() string                               { return "static" }

func TestReloadReplacesCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ledgertest.NewStore(t, nil, entity.Code{Code: "OLD", Points: 1})
	svc := NewService(store, nil, nil)

	n, err := svc.Reload(ctx, []Row{{Code: " new-1 ", Title: " New ", Points: 5}, {Code: "free", Points: 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	codes, err := svc.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.Code{
		{Code: "FREE", Points: 0},
		{Code: "NEW-1", Title: "New", Points: 5},
	}, codes)
}

func TestReloadRejectsInvalidRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	old := entity.Code{Code: "OLD", Title: "Old", Points: 1}

	cases := map[string][]Row{
		"empty code":     {{Code: "  ", Points: 1}},
		"negative":       {{Code: "A", Points: -1}},
		"case duplicate": {{Code: "dup", Points: 1}, {Code: "DUP", Points: 2}},
	}
	for name, rows := range cases {
		t.Run(name, func(t *testing.T) {
			store := ledgertest.NewStore(t, nil, old)
			svc := NewService(store, nil, nil)
			_, err := svc.Reload(ctx, rows)
			assert.ErrorIs(t, err, ErrInvalidRow)

			codes, err := svc.Codes(ctx)
			require.NoError(t, err)
			assert.Equal(t, []entity.Code{old}, codes)
		})
	}
}

func TestEmptyReloadClearsCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := ledgertest.NewStore(t, nil, entity.Code{Code: "OLD", Points: 1})
	svc := NewService(store, nil, nil)

	n, err := svc.Reload(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	codes, err := svc.Codes(ctx)
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestReloadFromSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewService(ledgertest.NewStore(t, nil), nil, nil).ReloadFromSource(ctx)
	assert.ErrorIs(t, err, ErrNoSource)

	src := staticSource{records: [][]string{
		{"code", "title", "points"},
		{"alpha", "Alpha", "10"},
		{"beta", "Beta", "20"},
	}}
	svc := NewService(ledgertest.NewStore(t, nil), src, nil)
	n, err := svc.ReloadFromSource(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	svc = NewService(ledgertest.NewStore(t, nil), staticSource{err: errors.New("timeout")}, nil)
	_, err = svc.ReloadFromSource(ctx)
	assert.ErrorContains(t, err, "timeout")
}

func TestParseRows(t *testing.T) {
	t.Parallel()
	rows, err := ParseRows([][]string{{"A", "a", "1"}, {"B", "b", "2", "extra"}})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"A", "a", 1}, {"B", "b", 2}}, rows)

	_, err = ParseRows([][]string{{"A", "a", "1"}, {"B", "b", "two"}})
	assert.ErrorIs(t, err, ErrInvalidRow)

	_, err = ParseRows([][]string{{"A", "a"}})
	assert.ErrorIs(t, err, ErrInvalidRow)

	rows, err = ParseRows([][]string{{"Code", "TITLE", "points"}, {"A", "a", "1"}})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"A", "a", 1}}, rows)
}

func TestParseRowsBadFirstRow(t *testing.T) {
	t.Parallel()
	_, err := ParseRows([][]string{{"WELCOME", "Welcome", "1O"}, {"DAY1", "Day one", "5"}})
	assert.ErrorIs(t, err, ErrInvalidRow)
	assert.ErrorContains(t, err, "line 1")
}

func TestReloadFromSourceKeepsCatalogOnBadFirstRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	old := entity.Code{Code: "OLD", Title: "Old", Points: 1}
	src := staticSource{records: [][]string{{"WELCOME", "Welcome", "1O"}, {"DAY1", "Day one", "5"}}}
	svc := NewService(ledgertest.NewStore(t, nil, old), src, nil)

	_, err := svc.ReloadFromSource(ctx)
	assert.ErrorIs(t, err, ErrInvalidRow)
	codes, err := svc.Codes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []entity.Code{old}, codes)
}

func TestReloadStorageFailure(t *testing.T) {
	t.Parallel()
	_, err := NewService(ledgertest.Broken{}, nil, nil).Reload(context.Background(), []Row{{Code: "A"}})
	assert.ErrorIs(t, err, ledger.ErrStorageUnavailable)
}
