// Package ledgertest has helpers for tests of code built on ledger.Store.
package ledgertest

import (
	"context"
	"errors"
	"testing"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/memstore"
)

// ErrBroken is returned by every Broken store call.
var ErrBroken = errors.New("ledgertest: connection refused")

// Broken is a store whose transactions never start.
type Broken struct{}

func (Broken) InTx(context.Context, func(ledger.Tx) error) error     { return ErrBroken }
func (Broken) Snapshot(context.Context, func(ledger.Tx) error) error { return ErrBroken }

// NewStore returns a memstore holding participants with the given points
// and the given catalog.
func NewStore(t testing.TB, points map[int64]int64, codes ...entity.Code) *memstore.Store {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()
	seeds := make([]entity.Seed, 0, len(points))
	for id, p := range points {
		seeds = append(seeds, entity.Seed{UserID: id, Points: p})
	}
	err := s.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertMany(ctx, seeds); err != nil {
			return err
		}
		return tx.ReplaceCodes(ctx, codes)
	})
	if err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}

// Participant reads one record, failing the test on any error other than
// ledger.ErrNotRegistered, for which it returns nil.
func Participant(t testing.TB, s ledger.Store, userID int64) *entity.Participant {
	t.Helper()
	var p *entity.Participant
	err := s.Snapshot(context.Background(), func(tx ledger.Tx) error {
		var err error
		p, err = tx.Get(context.Background(), userID)
		return err
	})
	if errors.Is(err, ledger.ErrNotRegistered) {
		return nil
	}
	if err != nil {
		t.Fatalf("get participant %d: %v", userID, err)
	}
	return p
}
