package command

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/grant"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/entity"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/ledgertest"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ledger/memstore"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ranking"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/redemption"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/registration"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/roster"
)

const (
	operator = int64(900)
	alice    = int64(100)
	bob      = int64(200)
)

// rosterSource is an in-memory roster sheet that tests can edit.
type rosterSource struct {
	mu   sync.Mutex
	rows [][]string
}

func (s *rosterSource) Records(context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.rows), nil
}

func (*rosterSource) String() string { return "roster" }

func (s *rosterSource) set(rows ...[]string) {
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

type fixture struct {
	table   *Table
	handler *Handler
	sheet   *rosterSource
	store   *memstore.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := ledgertest.NewStore(t, nil, entity.Code{Code: "WELCOME", Title: "Welcome", Points: 10})
	sheet := &rosterSource{}
	sheet.set(
		[]string{"user_id", "username", "display_name", "role"},
		[]string{"100", "alice", "Alice", "hacker"},
		[]string{"200", "bob", "Bob", "hacker"},
		[]string{"900", "olga", "Olga", "operator"},
	)
	people := roster.New(sheet, nil)
	_, err := people.Reload(context.Background())
	require.NoError(t, err)
	rk := ranking.NewService(store, people, 10, nil)
	tbl, err := NewTable(people, nil, Commands(Deps{
		Ranking:      rk,
		Redemption:   redemption.NewService(store, nil),
		Grant:        grant.NewService(store, nil),
		Registration: registration.NewService(store, 0, 0, nil),
		Catalog:      catalog.NewService(store, nil, nil),
		Roster:       people,
	})...)
	require.NoError(t, err)
	return fixture{table: tbl, handler: NewHandler(tbl, rk, nil), sheet: sheet, store: store}
}

func (f fixture) run(t *testing.T, caller int64, line string) (*Reply, error) {
	t.Helper()
	fields := strings.Fields(line)
	return f.table.Dispatch(context.Background(), Request{Caller: caller, Name: fields[0], Args: fields[1:]})
}

func TestCommandFlow(t *testing.T) {
	f := newFixture(t)

	reply, err := f.run(t, operator, "register")
	require.NoError(t, err)
	assert.Equal(t, RegisterReply{Mode: "zero", Registered: 2}, reply.Data)

	_, err = f.run(t, alice, "redeem welcome")
	require.NoError(t, err)
	_, err = f.run(t, alice, "redeem WELCOME")
	assert.Equal(t, ReasonAlreadyRedeemed, ReasonFor(err))

	reply, err = f.run(t, operator, "give 5 <@200> 300")
	require.NoError(t, err)
	res := reply.Data.(*grant.Result)
	assert.Equal(t, []int64{bob}, res.Succeeded)
	assert.Equal(t, []int64{300}, res.NotFound)

	reply, err = f.run(t, alice, "top")
	require.NoError(t, err)
	board := reply.Data.(BoardReply)
	require.Len(t, board.Entries, 2)
	assert.Equal(t, alice, board.Entries[0].UserID)
	assert.Equal(t, "Alice", board.Entries[0].DisplayName)
	assert.EqualValues(t, 5, board.Entries[1].Points)

	reply, err = f.run(t, bob, "profile")
	require.NoError(t, err)
	assert.EqualValues(t, 2, reply.Data.(*ranking.Entry).Rank)

	_, err = f.run(t, operator, "take 10 200")
	require.NoError(t, err)
	reply, err = f.run(t, alice, "profile 200")
	require.NoError(t, err)
	assert.EqualValues(t, -5, reply.Data.(*ranking.Entry).Points)

	reply, err = f.run(t, operator, "leave 100")
	require.NoError(t, err)
	assert.Equal(t, MembershipReply{UserID: alice, Changed: true}, reply.Data)
	_, err = f.run(t, alice, "profile")
	assert.Equal(t, ReasonNotRegistered, ReasonFor(err))

	reply, err = f.run(t, operator, "join 100")
	require.NoError(t, err)
	assert.Equal(t, MembershipReply{UserID: alice, Changed: true}, reply.Data)
}

func TestReloadRosterKeepsLedger(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, operator, "register")
	require.NoError(t, err)
	_, err = f.run(t, operator, "give 7 100")
	require.NoError(t, err)

	_, err = f.run(t, bob, "give 1 200")
	assert.ErrorIs(t, err, ErrForbidden)

	f.sheet.set(
		[]string{"user_id", "username", "display_name", "role"},
		[]string{"100", "alice", "Alice", "hacker"},
		[]string{"200", "bob", "Bob", "operator"},
		[]string{"900", "olga", "Olga", "operator"},
	)
	reply, err := f.run(t, operator, "reload-roster")
	require.NoError(t, err)
	assert.Equal(t, RosterReply{People: 3, Hackers: 1}, reply.Data)

	_, err = f.run(t, bob, "give 1 200")
	require.NoError(t, err)

	// promoted without a re-registration: balances are untouched
	assert.EqualValues(t, 7, ledgertest.Participant(t, f.store, alice).Points)
	assert.EqualValues(t, 1, ledgertest.Participant(t, f.store, bob).Points)
}

func TestCommandArguments(t *testing.T) {
	f := newFixture(t)
	for _, line := range []string{
		"top zero", "top 0", "redeem", "redeem a b", "give", "give x 100",
		"give 5 bob", "take -1 100", "join", "leave 1 2", "profile nobody",
	} {
		_, err := f.run(t, operator, line)
		assert.ErrorIs(t, err, ErrBadArgument, line)
	}
}

func TestPrivilegedCommandsRefused(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"give", "take", "register", "register-random", "join", "leave", "reload-codes", "reload-roster", "codes"} {
		_, err := f.run(t, alice, name)
		assert.ErrorIs(t, err, ErrForbidden, name)
	}
}

func TestReloadWithoutSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, operator, "reload-codes")
	assert.Equal(t, ReasonNotConfigured, ReasonFor(err))

	reply, err := f.run(t, operator, "codes")
	require.NoError(t, err)
	assert.Equal(t, []entity.Code{{Code: "WELCOME", Title: "Welcome", Points: 10}}, reply.Data)
}

func serve(f fixture, caller int64, req *http.Request, h http.HandlerFunc) *httptest.ResponseRecorder {
	if caller != 0 {
		req = req.WithContext(auth.WithCaller(req.Context(), caller))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestHandlerRun(t *testing.T) {
	f := newFixture(t)

	rec := serve(f, operator, httptest.NewRequest("POST", "/hackbot/commands", strings.NewReader(`{"name":"register"}`)), f.handler.Run)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"command":"register","data":{"mode":"zero","registered":2}}`, rec.Body.String())

	rec = serve(f, alice, httptest.NewRequest("POST", "/hackbot/commands", strings.NewReader(`{"name":"redeem","args":["nope"]}`)), f.handler.Run)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ReasonUnknownCode, body.Reason)
	assert.Equal(t, "unknown code", body.Error)

	rec = serve(f, alice, httptest.NewRequest("POST", "/hackbot/commands", strings.NewReader(`{"name":"give","args":["1","100"]}`)), f.handler.Run)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(f, alice, httptest.NewRequest("POST", "/hackbot/commands", strings.NewReader(`{`)), f.handler.Run)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(f, 0, httptest.NewRequest("POST", "/hackbot/commands", strings.NewReader(`{"name":"top"}`)), f.handler.Run)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRunRejectsOversizedBody(t *testing.T) {
	f := newFixture(t)
	body := `{"name":"redeem","args":["` + strings.Repeat("A", maxCommandBody) + `"]}`
	rec := serve(f, alice, httptest.NewRequest("POST", "/hackbot/commands", strings.NewReader(body)), f.handler.Run)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ReasonBadArgument, resp.Reason)
}

func TestHandlerQueries(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(t, operator, "register")
	require.NoError(t, err)

	rec := serve(f, alice, httptest.NewRequest("GET", "/hackbot/leaderboard?page=1", nil), f.handler.Leaderboard)
	assert.Equal(t, http.StatusOK, rec.Code)
	var board BoardReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Len(t, board.Entries, 2)

	rec = serve(f, alice, httptest.NewRequest("GET", "/hackbot/leaderboard?page=0", nil), f.handler.Leaderboard)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest("GET", "/hackbot/participants/200", nil)
	req.SetPathValue("id", "200")
	rec = serve(f, alice, req, f.handler.Participant)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"bob"`)

	req = httptest.NewRequest("GET", "/hackbot/participants/999", nil)
	req.SetPathValue("id", "999")
	rec = serve(f, alice, req, f.handler.Participant)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(ReasonStorageUnavailable))
	assert.Equal(t, http.StatusConflict, statusFor(ReasonAlreadyRedeemed))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(ReasonOutOfRange))
	assert.Equal(t, http.StatusInternalServerError, statusFor(ReasonInternal))
}
