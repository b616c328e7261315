// Package registration keeps ledger membership in line with the roster
// supplied by the chat platform.
package registration

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

type SeedMode int

const (
	// SeedZero starts everyone at 0 points.
	SeedZero SeedMode = iota
	// SeedRandom draws uniform points in [min, max]; demo and test data only.
	SeedRandom
)

func (m SeedMode) String() string {
	switch m {
	case SeedZero:
		return "zero"
	case SeedRandom:
		return "random"
	default:
		return fmt.Sprintf("SeedMode(%d)", int(m))
	}
}

type Service struct {
	store            ledger.Store
	seedMin, seedMax int64
	draw             func(span uint64) uint64
	logger           *zap.SugaredLogger
}

// NewService builds the registration service; seedMin and seedMax bound
// SeedRandom inclusively.
func NewService(store ledger.Store, seedMin, seedMax int64, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if seedMax < seedMin {
		seedMin, seedMax = seedMax, seedMin
	}
	return &Service{store: store, seedMin: seedMin, seedMax: seedMax, draw: uniform, logger: logger}
}

// RegisterAll replaces the whole ledger with one fresh record per roster
// member. Everyone not on the roster is removed and everyone on it starts
// over with no redeemed codes. It returns the number of records written.
func (s *Service) RegisterAll(ctx context.Context, roster []int64, mode SeedMode) (int, error) {
	seen := make(map[int64]struct{}, len(roster))
	rows := make([]entity.Seed, 0, len(roster))
	for _, id := range roster {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, entity.Seed{UserID: id, Points: s.seed(mode)})
	}

	opID := utilities.NewKSUID()
	var removed int64
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		if removed, err = tx.DeleteAll(ctx); err != nil {
			return err
		}
		return tx.InsertMany(ctx, rows)
	})
	if err != nil {
		return 0, ledger.Unavailable("register all", err)
	}
	s.logger.Infow("ledger re-registered", "op", opID, "mode", mode.String(),
		"registered", len(rows), "removed", removed)
	return len(rows), nil
}

// RegisterOne adds a zero record if userID is absent. An existing record is
// left untouched. It reports whether a record was created.
func (s *Service) RegisterOne(ctx context.Context, userID int64) (bool, error) {
	var created bool
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		created, err = tx.InsertIfAbsent(ctx, userID)
		return err
	})
	if err != nil {
		return false, ledger.Unavailable("register one", err)
	}
	if created {
		s.logger.Infow("participant registered", "user_id", userID)
	}
	return created, nil
}

// UnregisterOne hard deletes the record and its redemption history. It
// reports whether a record existed.
func (s *Service) UnregisterOne(ctx context.Context, userID int64) (bool, error) {
	var deleted bool
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		deleted, err = tx.Delete(ctx, userID)
		return err
	})
	if err != nil {
		return false, ledger.Unavailable("unregister one", err)
	}
	if deleted {
		s.logger.Infow("participant unregistered", "user_id", userID)
	}
	return deleted, nil
}

func (s *Service) seed(mode SeedMode) int64 {
	if mode != SeedRandom {
		return 0
	}
	// two's complement: the span and the offset add back without overflow
	span := uint64(s.seedMax) - uint64(s.seedMin)
	return s.seedMin + int64(s.draw(span))
}

// uniform draws from [0, span].
func uniform(span uint64) uint64 {
	if span == math.MaxUint64 {
		return rand.Uint64()
	}
	return rand.Uint64N(span + 1)
}
