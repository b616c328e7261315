// Package memstore is an in-process ledger.Store. Write transactions are
// fully serialized and work on a private copy that replaces the shared state
// only on commit, so a failed or cancelled transaction leaves nothing behind.
// It backs tests and LEDGER_BACKEND=memory demos; state is lost on exit.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
)

type state struct {
	participants map[int64]*entity.Participant
	codes        map[string]entity.Code
}

func (s *state) clone() *state {
	out := &state{
		participants: make(map[int64]*entity.Participant, len(s.participants)),
		codes:        make(map[string]entity.Code, len(s.codes)),
	}
	for id, p := range s.participants {
		out.participants[id] = &entity.Participant{UserID: p.UserID, Points: p.Points, RedeemedCodes: p.RedeemedCodes.Clone()}
	}
	for k, c := range s.codes {
		out.codes[k] = c
	}
	return out
}

type Store struct {
	mu  sync.RWMutex
	cur *state
}

func New() *Store {
	return &Store{cur: &state{participants: map[int64]*entity.Participant{}, codes: map[string]entity.Code{}}}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) InTx(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.cur.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cur = work
	return nil
}

func (s *Store) Snapshot(ctx context.Context, fn func(ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&tx{st: s.cur, readOnly: true})
}

type tx struct {
	st       *state
	readOnly bool
}

func (t *tx) Get(_ context.Context, userID int64) (*entity.Participant, error) {
	p, ok := t.st.participants[userID]
	if !ok {
		return nil, ledger.ErrNotRegistered
	}
	return &entity.Participant{UserID: p.UserID, Points: p.Points, RedeemedCodes: p.RedeemedCodes.Clone()}, nil
}

// GetForUpdate needs no lock of its own: write transactions are serialized.
func (t *tx) GetForUpdate(ctx context.Context, userID int64) (*entity.Participant, error) {
	return t.Get(ctx, userID)
}

func (t *tx) Upsert(_ context.Context, p *entity.Participant) error {
	if err := t.writable(); err != nil {
		return err
	}
	codes := p.RedeemedCodes.Clone()
	t.st.participants[p.UserID] = &entity.Participant{UserID: p.UserID, Points: p.Points, RedeemedCodes: codes}
	return nil
}

func (t *tx) InsertIfAbsent(_ context.Context, userID int64) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	if _, ok := t.st.participants[userID]; ok {
		return false, nil
	}
	t.st.participants[userID] = entity.NewParticipant(userID)
	return true, nil
}

func (t *tx) AddPoints(_ context.Context, userID, delta int64) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	p, ok := t.st.participants[userID]
	if !ok {
		return false, nil
	}
	sum, err := ledger.AddPoints(p.Points, delta)
	if err != nil {
		return false, err
	}
	p.Points = sum
	return true, nil
}

func (t *tx) Redeem(_ context.Context, userID, delta int64, code string) error {
	if err := t.writable(); err != nil {
		return err
	}
	p, ok := t.st.participants[userID]
	if !ok {
		return ledger.ErrNotRegistered
	}
	sum, err := ledger.AddPoints(p.Points, delta)
	if err != nil {
		return err
	}
	p.Points = sum
	p.RedeemedCodes.Add(code)
	return nil
}

func (t *tx) Delete(_ context.Context, userID int64) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	if _, ok := t.st.participants[userID]; !ok {
		return false, nil
	}
	delete(t.st.participants, userID)
	return true, nil
}

func (t *tx) DeleteAll(_ context.Context) (int64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := int64(len(t.st.participants))
	t.st.participants = map[int64]*entity.Participant{}
	return n, nil
}

func (t *tx) InsertMany(_ context.Context, rows []entity.Seed) error {
	if err := t.writable(); err != nil {
		return err
	}
	for _, r := range rows {
		if _, ok := t.st.participants[r.UserID]; ok {
			return &duplicateKeyError{userID: r.UserID}
		}
		p := entity.NewParticipant(r.UserID)
		p.Points = r.Points
		t.st.participants[r.UserID] = p
	}
	return nil
}

func (t *tx) ordered() []entity.Standing {
	out := make([]entity.Standing, 0, len(t.st.participants))
	for _, p := range t.st.participants {
		out = append(out, entity.Standing{UserID: p.UserID, Points: p.Points})
	}
	sort.Slice(out, func(i, j int) bool {
		return entity.Ahead(out[i].Points, out[i].UserID, out[j].Points, out[j].UserID)
	})
	return out
}

func (t *tx) TopPage(_ context.Context, offset, limit int) ([]entity.Standing, error) {
	all := t.ordered()
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	page := all[offset:end]
	for i := range page {
		page[i].Rank = int64(offset + i + 1)
	}
	return page, nil
}

func (t *tx) RankOf(_ context.Context, userID int64) (*entity.Standing, error) {
	p, ok := t.st.participants[userID]
	if !ok {
		return nil, ledger.ErrNotRegistered
	}
	var ahead int64
	for _, o := range t.st.participants {
		if entity.Ahead(o.Points, o.UserID, p.Points, p.UserID) {
			ahead++
		}
	}
	return &entity.Standing{Rank: ahead + 1, UserID: p.UserID, Points: p.Points}, nil
}

func (t *tx) Count(_ context.Context) (int64, error) {
	return int64(len(t.st.participants)), nil
}

func (t *tx) GetCode(_ context.Context, code string) (*entity.Code, error) {
	c, ok := t.st.codes[code]
	if !ok {
		return nil, ledger.ErrUnknownCode
	}
	return &c, nil
}

func (t *tx) ListCodes(_ context.Context) ([]entity.Code, error) {
	out := make([]entity.Code, 0, len(t.st.codes))
	for _, c := range t.st.codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) ReplaceCodes(_ context.Context, rows []entity.Code) error {
	if err := t.writable(); err != nil {
		return err
	}
	codes := make(map[string]entity.Code, len(rows))
	for _, c := range rows {
		if _, ok := codes[c.Code]; ok {
			return &duplicateKeyError{code: c.Code}
		}
		codes[c.Code] = c
	}
	t.st.codes = codes
	return nil
}

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}
