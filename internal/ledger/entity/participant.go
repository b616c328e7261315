package entity

import "sort"

// Participant is one registered hackathon attendee in the ledger.
// Points may be negative; no floor is enforced.
type Participant struct {
	UserID        int64
	Points        int64
	RedeemedCodes CodeSet
}

// NewParticipant returns a fresh record with zero points and no codes.
func NewParticipant(userID int64) *Participant {
	return &Participant{UserID: userID, RedeemedCodes: CodeSet{}}
}

// CodeSet is the set of codes a participant has claimed. It only grows.
type CodeSet map[string]struct{}

// NewCodeSet builds a set from a list, dropping duplicates.
func NewCodeSet(codes ...string) CodeSet {
	s := make(CodeSet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

func (s CodeSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

func (s CodeSet) Add(code string) { s[code] = struct{}{} }

// Slice returns the codes in sorted order.
func (s CodeSet) Slice() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s CodeSet) Clone() CodeSet {
	out := make(CodeSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// Seed is a row for bulk insertion.
type Seed struct {
	UserID int64 `db:"user_id"`
	Points int64 `db:"points"`
}

// Standing is a participant's derived position on the leaderboard.
type Standing struct {
	Rank   int64 `db:"rank" json:"rank"`
	UserID int64 `db:"user_id" json:"user_id"`
	Points int64 `db:"points" json:"points"`
}

// Ahead reports whether a ranks strictly before b: more points, or equal
// points and the larger user id.
func Ahead(aPoints, aID, bPoints, bID int64) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	return aID > bID
}
