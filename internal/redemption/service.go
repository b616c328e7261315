package redemption

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

// Result is what a successful redemption applied.
type Result struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Points int64  `json:"points"`
}

// Service redeems one-time codes for participants.
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

// Redeem claims code for userID in one transaction. The participant row is
// locked first, so concurrent attempts for the same participant serialize
// and at most one of them can add a given code.
//
// Outcomes: ledger.ErrNotRegistered, ledger.ErrAlreadyRedeemed,
// ledger.ErrUnknownCode, or a ledger.ErrStorageUnavailable error.
func (s *Service) Redeem(ctx context.Context, userID int64, submitted string) (*Result, error) {
	code := ledger.NormalizeCode(submitted)
	opID := utilities.NewKSUID()

	var res *Result
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		p, err := tx.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if code == "" {
			return ledger.ErrUnknownCode
		}
		c, err := tx.GetCode(ctx, code)
		// redemption history wins over the current catalog
		if p.RedeemedCodes.Has(code) {
			return ledger.ErrAlreadyRedeemed
		}
		if err != nil {
			return err
		}
		if err := tx.Redeem(ctx, userID, c.Points, c.Code); err != nil {
			return err
		}
		res = &Result{Code: c.Code, Title: c.Title, Points: c.Points}
		return nil
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNotRegistered) || errors.Is(err, ledger.ErrUnknownCode) || errors.Is(err, ledger.ErrAlreadyRedeemed) ||
			errors.Is(err, ledger.ErrPointsOutOfRange) {
			s.logger.Debugw("redemption refused", "op", opID, "user_id", userID, "code", code, "reason", err)
			return nil, err
		}
		return nil, ledger.Unavailable("redeem", err)
	}
	s.logger.Infow("code redeemed", "op", opID, "user_id", userID, "code", res.Code, "points", res.Points)
	return res, nil
}
