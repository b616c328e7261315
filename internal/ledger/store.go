// Package ledger defines the points ledger: participant balances with their
// redeemed-code sets, and the code catalog they redeem against.
//
// Storage is reached only through Store. Every call opens a scoped
// transaction, so no participant state is cached between calls.
package ledger

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
)

// Store opens transactions against the ledger.
type Store interface {
	// InTx runs fn in a read-write transaction. It commits when fn returns
	// nil and rolls back on error, panic or context cancellation.
	InTx(ctx context.Context, fn func(Tx) error) error
	// Snapshot runs fn in a read-only transaction that sees one consistent
	// state of the ledger.
	Snapshot(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of ledger operations available inside a transaction.
type Tx interface {
	Participants
	Codes
}

// Participants is the participant half of the ledger.
type Participants interface {
	// Get returns the participant or ErrNotRegistered.
	Get(ctx context.Context, userID int64) (*entity.Participant, error)
	// GetForUpdate is Get plus a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, userID int64) (*entity.Participant, error)
	Upsert(ctx context.Context, p *entity.Participant) error
	// InsertIfAbsent creates a zero record; false when it already existed.
	InsertIfAbsent(ctx context.Context, userID int64) (bool, error)
	// AddPoints applies points = points + delta; false when absent.
	AddPoints(ctx context.Context, userID, delta int64) (bool, error)
	// Redeem applies points = points + delta and adds code to the set.
	Redeem(ctx context.Context, userID, delta int64, code string) error
	Delete(ctx context.Context, userID int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, rows []entity.Seed) error

	// TopPage orders by points desc, user id desc.
	TopPage(ctx context.Context, offset, limit int) ([]entity.Standing, error)
	// RankOf returns ErrNotRegistered for unknown ids.
	RankOf(ctx context.Context, userID int64) (*entity.Standing, error)
	Count(ctx context.Context) (int64, error)
}

// Codes is the catalog half of the ledger.
type Codes interface {
	// GetCode returns the code or ErrUnknownCode. code must be normalized.
	GetCode(ctx context.Context, code string) (*entity.Code, error)
	ListCodes(ctx context.Context) ([]entity.Code, error)
	// ReplaceCodes deletes the whole catalog and inserts rows.
	ReplaceCodes(ctx context.Context, rows []entity.Code) error
}
