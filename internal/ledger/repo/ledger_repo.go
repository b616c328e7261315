package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/database"
)

// insertChunk bounds rows per bulk INSERT so the statement stays under the
// 65535 bind parameter limit.
const insertChunk = 1000

// LedgerRepo is the PostgreSQL backed ledger.Store using sqlx.
type LedgerRepo struct {
	db *sqlx.DB
}

func NewLedgerRepo(db *sqlx.DB) *LedgerRepo { return &LedgerRepo{db: db} }

var _ ledger.Store = (*LedgerRepo)(nil)

// EnsureTable creates the participants and codes tables if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *LedgerRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS participants (
  user_id BIGINT PRIMARY KEY,
  points BIGINT NOT NULL DEFAULT 0,
  redeemed_codes TEXT[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_participants_ranking ON participants(points DESC, user_id DESC);
CREATE TABLE IF NOT EXISTS codes (
  code TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// InTx runs fn in a read-write transaction.
func (r *LedgerRepo) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	return database.WithTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		return fn(&txLedger{tx: tx})
	})
}

// Snapshot runs fn in a read-only repeatable read transaction.
func (r *LedgerRepo) Snapshot(ctx context.Context, fn func(ledger.Tx) error) error {
	return database.WithTx(ctx, r.db, database.ReadOnlySnapshot, func(tx *sqlx.Tx) error {
		return fn(&txLedger{tx: tx})
	})
}

// txLedger implements ledger.Tx on one open transaction.
type txLedger struct {
	tx *sqlx.Tx
}

const selectParticipant = `SELECT user_id, points, redeemed_codes FROM participants WHERE user_id=$1`

func (t *txLedger) get(ctx context.Context, q string, userID int64) (*entity.Participant, error) {
	var (
		p     entity.Participant
		codes []string
	)
	if err := t.tx.QueryRowxContext(ctx, q, userID).Scan(&p.UserID, &p.Points, pq.Array(&codes)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotRegistered
		}
		return nil, err
	}
	p.RedeemedCodes = entity.NewCodeSet(codes...)
	return &p, nil
}

func (t *txLedger) Get(ctx context.Context, userID int64) (*entity.Participant, error) {
	return t.get(ctx, selectParticipant, userID)
}

func (t *txLedger) GetForUpdate(ctx context.Context, userID int64) (*entity.Participant, error) {
	return t.get(ctx, selectParticipant+` FOR UPDATE`, userID)
}

func (t *txLedger) Upsert(ctx context.Context, p *entity.Participant) error {
	const q = `INSERT INTO participants (user_id, points, redeemed_codes) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET points=EXCLUDED.points, redeemed_codes=EXCLUDED.redeemed_codes`
	_, err := t.tx.ExecContext(ctx, q, p.UserID, p.Points, pq.Array(p.RedeemedCodes.Slice()))
	return err
}

func (t *txLedger) InsertIfAbsent(ctx context.Context, userID int64) (bool, error) {
	const q = `INSERT INTO participants (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`
	return affected(t.tx.ExecContext(ctx, q, userID))
}

func (t *txLedger) AddPoints(ctx context.Context, userID, delta int64) (bool, error) {
	const q = `UPDATE participants SET points = points + $2 WHERE user_id=$1`
	ok, err := affected(t.tx.ExecContext(ctx, q, userID, delta))
	return ok, outOfRange(err)
}

func (t *txLedger) Redeem(ctx context.Context, userID, delta int64, code string) error {
	const q = `UPDATE participants SET points = points + $2, redeemed_codes = array_append(redeemed_codes, $3)
		WHERE user_id=$1`
	ok, err := affected(t.tx.ExecContext(ctx, q, userID, delta, code))
	if err != nil {
		return outOfRange(err)
	}
	if !ok {
		return ledger.ErrNotRegistered
	}
	return nil
}

func (t *txLedger) Delete(ctx context.Context, userID int64) (bool, error) {
	return affected(t.tx.ExecContext(ctx, `DELETE FROM participants WHERE user_id=$1`, userID))
}

func (t *txLedger) DeleteAll(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *txLedger) InsertMany(ctx context.Context, rows []entity.Seed) error {
	const q = `INSERT INTO participants (user_id, points) VALUES (:user_id, :points)`
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := t.tx.NamedExecContext(ctx, q, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (t *txLedger) TopPage(ctx context.Context, offset, limit int) ([]entity.Standing, error) {
	const q = `SELECT user_id, points FROM participants ORDER BY points DESC, user_id DESC OFFSET $1 LIMIT $2`
	var rows []entity.Standing
	if err := t.tx.SelectContext(ctx, &rows, q, offset, limit); err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = int64(offset + i + 1)
	}
	return rows, nil
}

func (t *txLedger) RankOf(ctx context.Context, userID int64) (*entity.Standing, error) {
	const q = `SELECT p.user_id, p.points,
		(SELECT COUNT(*) FROM participants o
		  WHERE o.points > p.points OR (o.points = p.points AND o.user_id > p.user_id)) + 1 AS rank
	  FROM participants p WHERE p.user_id=$1`
	var s entity.Standing
	if err := t.tx.GetContext(ctx, &s, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrNotRegistered
		}
		return nil, err
	}
	return &s, nil
}

func (t *txLedger) Count(ctx context.Context) (int64, error) {
	var n int64
	err := t.tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM participants`)
	return n, err
}

func (t *txLedger) GetCode(ctx context.Context, code string) (*entity.Code, error) {
	var c entity.Code
	if err := t.tx.GetContext(ctx, &c, `SELECT code, title, points FROM codes WHERE code=$1`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrUnknownCode
		}
		return nil, err
	}
	return &c, nil
}

func (t *txLedger) ListCodes(ctx context.Context) ([]entity.Code, error) {
	var rows []entity.Code
	if err := t.tx.SelectContext(ctx, &rows, `SELECT code, title, points FROM codes ORDER BY code`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *txLedger) ReplaceCodes(ctx context.Context, rows []entity.Code) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM codes`); err != nil {
		return err
	}
	const q = `INSERT INTO codes (code, title, points) VALUES (:code, :title, :points)`
	for start := 0; start < len(rows); start += insertChunk {
		end := min(start+insertChunk, len(rows))
		if _, err := t.tx.NamedExecContext(ctx, q, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// numericOutOfRange is the SQLSTATE for "bigint out of range".
const numericOutOfRange = pq.ErrorCode("22003")

func outOfRange(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == numericOutOfRange {
		return fmt.Errorf("%w: %s", ledger.ErrPointsOutOfRange, pqErr.Message)
	}
	return err
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
