// Package ranking derives the leaderboard from the ledger.
//
// Order is points descending with ties broken by user id descending. The
// tie-break is arbitrary but fixed, so equal scores never swap places between
// two queries over the same data.
package ranking

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
)

const DefaultPageSize = 10

var ErrInvalidPage = errors.New("page and page size must be positive integers")

// Member is display metadata owned by the chat platform.
type Member struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// Directory resolves display metadata. Missing ids are simply absent from
// the returned map.
type Directory interface {
	Members(ctx context.Context, userIDs []int64) (map[int64]Member, error)
}

// Entry is a standing joined with display metadata for rendering.
type Entry struct {
	entity.Standing
	Member
}

type Service struct {
	store    ledger.Store
	dir      Directory
	pageSize int
	logger   *zap.SugaredLogger
}

// NewService builds the ranking engine. dir may be nil, in which case
// entries carry no display names.
func NewService(store ledger.Store, dir Directory, pageSize int, logger *zap.SugaredLogger) *Service {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{store: store, dir: dir, pageSize: pageSize, logger: logger}
}

// TopPage returns up to pageSize standings of the given 1-based page. Ranks
// are absolute positions in the full ordering. A page past the end is empty.
func (s *Service) TopPage(ctx context.Context, page, pageSize int) ([]entity.Standing, error) {
	if page < 1 || pageSize < 1 {
		return nil, ErrInvalidPage
	}
	if page-1 > math.MaxInt32/pageSize {
		return []entity.Standing{}, nil
	}
	offset := (page - 1) * pageSize

	var rows []entity.Standing
	err := s.store.Snapshot(ctx, func(tx ledger.Tx) error {
		var err error
		rows, err = tx.TopPage(ctx, offset, pageSize)
		return err
	})
	if err != nil {
		return nil, ledger.Unavailable("top page", err)
	}
	if rows == nil {
		rows = []entity.Standing{}
	}
	return rows, nil
}

// RankOf returns the participant's points and rank, or ledger.ErrNotRegistered.
func (s *Service) RankOf(ctx context.Context, userID int64) (*entity.Standing, error) {
	var st *entity.Standing
	err := s.store.Snapshot(ctx, func(tx ledger.Tx) error {
		var err error
		st, err = tx.RankOf(ctx, userID)
		return err
	})
	if err != nil {
		return nil, ledger.Unavailable("rank of", err)
	}
	return st, nil
}

// Board is TopPage with the configured page size and display names joined.
func (s *Service) Board(ctx context.Context, page int) ([]Entry, error) {
	rows, err := s.TopPage(ctx, page, s.pageSize)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.UserID
	}
	members := s.members(ctx, ids)
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry{Standing: r, Member: members[r.UserID]}
	}
	return out, nil
}

// Profile is RankOf with display names joined.
func (s *Service) Profile(ctx context.Context, userID int64) (*Entry, error) {
	st, err := s.RankOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	members := s.members(ctx, []int64{userID})
	return &Entry{Standing: *st, Member: members[userID]}, nil
}

// members never fails the query: names are decoration only.
func (s *Service) members(ctx context.Context, ids []int64) map[int64]Member {
	if s.dir == nil || len(ids) == 0 {
		return nil
	}
	m, err := s.dir.Members(ctx, ids)
	if err != nil {
		s.logger.Warnw("directory lookup failed", "err", err, "ids", len(ids))
		return nil
	}
	return m
}
