// Package roster is the identity and role collaborator: who is a hacker,
// who is an operator, and what their display names are. It is loaded from a
// table exported from the chat platform (user_id, username, display_name,
// role).
package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ranking"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/tabular"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

const (
	RoleHacker   = "hacker"
	RoleOperator = "operator"
)

var ErrNoSource = errors.New("no roster source configured")

type Person struct {
	UserID int64
	ranking.Member
	Role string
}

// Roster holds the last loaded table. Operators listed in devs are always
// privileged, even before the first load.
type Roster struct {
	source tabular.Source
	devs   map[int64]struct{}

	mu     sync.RWMutex
	people map[int64]Person
}

func New(source tabular.Source, devs []int64) *Roster {
	r := &Roster{source: source, devs: make(map[int64]struct{}, len(devs)), people: map[int64]Person{}}
	for _, id := range devs {
		r.devs[id] = struct{}{}
	}
	return r
}

// Reload reads the source and swaps in the new table.
func (r *Roster) Reload(ctx context.Context) (int, error) {
	if r.source == nil {
		return 0, ErrNoSource
	}
	records, err := r.source.Records(ctx)
	if err != nil {
		return 0, err
	}
	people, err := parse(records)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", r.source, err)
	}
	r.Set(people)
	return len(people), nil
}

// Set replaces the table.
func (r *Roster) Set(people []Person) {
	m := make(map[int64]Person, len(people))
	for _, p := range people {
		m[p.UserID] = p
	}
	r.mu.Lock()
	r.people = m
	r.mu.Unlock()
}

// IsPrivileged reports whether userID may run operator commands.
func (r *Roster) IsPrivileged(_ context.Context, userID int64) bool {
	if _, ok := r.devs[userID]; ok {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.people[userID].Role == RoleOperator
}

// Hackers returns the ids holding the hacker role and not privileged, sorted.
func (r *Roster) Hackers(ctx context.Context) []int64 {
	r.mu.RLock()
	ids := make([]int64, 0, len(r.people))
	for id, p := range r.people {
		if p.Role == RoleHacker {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	ids = slices.DeleteFunc(ids, func(id int64) bool { return r.IsPrivileged(ctx, id) })
	slices.Sort(ids)
	return ids
}

// Members implements ranking.Directory.
func (r *Roster) Members(_ context.Context, userIDs []int64) (map[int64]ranking.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]ranking.Member, len(userIDs))
	for _, id := range userIDs {
		if p, ok := r.people[id]; ok {
			out[id] = p.Member
		}
	}
	return out, nil
}

func parse(records [][]string) ([]Person, error) {
	out := make([]Person, 0, len(records))
	for i, rec := range records {
		if len(rec) < 4 {
			return nil, fmt.Errorf("line %d: want user_id,username,display_name,role", i+1)
		}
		if i == 0 && strings.EqualFold(rec[0], "user_id") {
			continue // header
		}
		id, err := utilities.ParseUserID(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		display := rec[2]
		if display == "" {
			display = rec[1]
		}
		out = append(out, Person{
			UserID: id,
			Member: ranking.Member{Username: rec[1], DisplayName: display},
			Role:   strings.ToLower(rec[3]),
		})
	}
	return out, nil
}
