// Package grant applies operator point adjustments.
package grant

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

// Result lists the ids that were updated and the ids that have no record,
// both in request order.
type Result struct {
	Delta     int64   `json:"delta"`
	Succeeded []int64 `json:"succeeded"`
	NotFound  []int64 `json:"not_found"`
}

// Err returns nil when every target was found, otherwise an error wrapping
// ledger.ErrNotFoundTarget. The updates in Succeeded are applied either way.
func (r *Result) Err() error {
	if len(r.NotFound) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ledger.ErrNotFoundTarget, r.NotFound)
}

type Service struct {
	store  ledger.Store
	logger *zap.SugaredLogger
}

func NewService(store ledger.Store, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, logger: logger}
}

// ApplyDelta adds delta to every registered id in one transaction. Unknown
// ids are collected in NotFound and do not abort the others. Points are not
// clamped.
func (s *Service) ApplyDelta(ctx context.Context, delta int64, userIDs []int64) (*Result, error) {
	ids := dedup(userIDs)
	res := &Result{Delta: delta, Succeeded: []int64{}, NotFound: []int64{}}
	opID := utilities.NewKSUID()

	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		res.Succeeded = res.Succeeded[:0]
		res.NotFound = res.NotFound[:0]
		for _, id := range ids {
			ok, err := tx.AddPoints(ctx, id, delta)
			if err != nil {
				return err
			}
			if ok {
				res.Succeeded = append(res.Succeeded, id)
			} else {
				res.NotFound = append(res.NotFound, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, ledger.Unavailable("apply delta", err)
	}
	s.logger.Infow("points adjusted", "op", opID, "delta", delta,
		"succeeded", len(res.Succeeded), "not_found", len(res.NotFound))
	return res, nil
}

// Revoke subtracts magnitude from every registered id.
func (s *Service) Revoke(ctx context.Context, magnitude int64, userIDs []int64) (*Result, error) {
	if magnitude == math.MinInt64 {
		return nil, fmt.Errorf("%w: cannot negate %d", ledger.ErrPointsOutOfRange, magnitude)
	}
	return s.ApplyDelta(ctx, -magnitude, userIDs)
}

func dedup(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
