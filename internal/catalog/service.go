// Package catalog owns the redemption code table. The table is only ever
// replaced whole; there is no partial update path.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/tabular"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

var (
	ErrNoSource   = errors.New("no catalog source configured")
	ErrInvalidRow = errors.New("invalid catalog row")
)

// Row is one entry of the external code table.
type Row struct {
	Code   string
	Title  string
	Points int64
}

type Service struct {
	store  ledger.Store
	source tabular.Source
	logger *zap.SugaredLogger
}

// NewService builds the catalog service. source may be nil when reloads are
// only pushed through Reload.
func NewService(store ledger.Store, source tabular.Source, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, source: source, logger: logger}
}

// Reload validates rows and replaces the catalog with them in one
// transaction. Redemptions see either the old table or the new one. An
// invalid row rejects the whole reload and leaves the catalog as it was.
func (s *Service) Reload(ctx context.Context, rows []Row) (int, error) {
	codes, err := normalize(rows)
	if err != nil {
		return 0, err
	}
	opID := utilities.NewKSUID()
	err = s.store.InTx(ctx, func(tx ledger.Tx) error {
		return tx.ReplaceCodes(ctx, codes)
	})
	if err != nil {
		return 0, ledger.Unavailable("reload catalog", err)
	}
	s.logger.Infow("catalog reloaded", "op", opID, "codes", len(codes))
	return len(codes), nil
}

// ReloadFromSource fetches the configured source and reloads from it.
func (s *Service) ReloadFromSource(ctx context.Context) (int, error) {
	if s.source == nil {
		return 0, ErrNoSource
	}
	records, err := s.source.Records(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.source, err)
	}
	rows, err := ParseRows(records)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.source, err)
	}
	return s.Reload(ctx, rows)
}

// Codes lists the current catalog ordered by code.
func (s *Service) Codes(ctx context.Context) ([]entity.Code, error) {
	var out []entity.Code
	err := s.store.Snapshot(ctx, func(tx ledger.Tx) error {
		var err error
		out, err = tx.ListCodes(ctx)
		return err
	})
	if err != nil {
		return nil, ledger.Unavailable("list codes", err)
	}
	return out, nil
}

// ParseRows reads (code, title, points) records. A first record reading
// code,title,points (any case) is a header and skipped.
func ParseRows(records [][]string) ([]Row, error) {
	rows := make([]Row, 0, len(records))
	for i, rec := range records {
		if len(rec) < 3 {
			return nil, fmt.Errorf("%w: line %d: want code,title,points", ErrInvalidRow, i+1)
		}
		if i == 0 && isHeader(rec) {
			continue
		}
		pts, err := strconv.ParseInt(rec[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: points %q", ErrInvalidRow, i+1, rec[2])
		}
		rows = append(rows, Row{Code: rec[0], Title: rec[1], Points: pts})
	}
	return rows, nil
}

func isHeader(rec []string) bool {
	return strings.EqualFold(rec[0], "code") &&
		strings.EqualFold(rec[1], "title") &&
		strings.EqualFold(rec[2], "points")
}

func normalize(rows []Row) ([]entity.Code, error) {
	seen := make(map[string]struct{}, len(rows))
	out := make([]entity.Code, 0, len(rows))
	for i, r := range rows {
		code := ledger.NormalizeCode(r.Code)
		switch {
		case code == "":
			return nil, fmt.Errorf("%w: row %d: empty code", ErrInvalidRow, i+1)
		case r.Points < 0:
			return nil, fmt.Errorf("%w: row %d: negative points for %s", ErrInvalidRow, i+1, code)
		}
		if _, ok := seen[code]; ok {
			return nil, fmt.Errorf("%w: row %d: duplicate code %s", ErrInvalidRow, i+1, code)
		}
		seen[code] = struct{}{}
		out = append(out, entity.Code{Code: code, Title: strings.TrimSpace(r.Title), Points: r.Points})
	}
	return out, nil
}
