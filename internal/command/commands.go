package command

import (
	"context"
	"strconv"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/catalog"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/grant"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ranking"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/redemption"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/registration"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/roster"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

// Deps are the services the bot commands call.
type Deps struct {
	Ranking      *ranking.Service
	Redemption   *redemption.Service
	Grant        *grant.Service
	Registration *registration.Service
	Catalog      *catalog.Service
	Roster       *roster.Roster
}

type BoardReply struct {
	Page    int             `json:"page"`
	Entries []ranking.Entry `json:"entries"`
}

type RegisterReply struct {
	Mode       string `json:"mode"`
	Registered int    `json:"registered"`
}

type MembershipReply struct {
	UserID  int64 `json:"user_id"`
	Changed bool  `json:"changed"`
}

type ReloadReply struct {
	Codes int `json:"codes"`
}

type RosterReply struct {
	People  int `json:"people"`
	Hackers int `json:"hackers"`
}

// Commands returns the bot's command set.
func Commands(d Deps) []Command {
	return []Command{
		{
			Name: "top", Usage: "top [page]", Summary: "Show the activity leaderboard.",
			Capability: Public,
			Handler: func(ctx context.Context, req Request) (any, error) {
				page := 1
				if len(req.Args) > 0 {
					n, err := strconv.Atoi(req.Args[0])
					if err != nil || n < 1 {
						return nil, badArg("page must be a positive integer, got %q", req.Args[0])
					}
					page = n
				}
				entries, err := d.Ranking.Board(ctx, page)
				if err != nil {
					return nil, err
				}
				return BoardReply{Page: page, Entries: entries}, nil
			},
		},
		{
			Name: "profile", Usage: "profile [user]", Summary: "View your profile.",
			Capability: Public,
			Handler: func(ctx context.Context, req Request) (any, error) {
				target := req.Caller
				if len(req.Args) > 0 {
					id, err := utilities.ParseUserID(req.Args[0])
					if err != nil {
						return nil, badArg("%v", err)
					}
					target = id
				}
				return d.Ranking.Profile(ctx, target)
			},
		},
		{
			Name: "redeem", Usage: "redeem <code>", Summary: "Redeem a bonus code.",
			Capability: Public,
			Handler: func(ctx context.Context, req Request) (any, error) {
				if len(req.Args) != 1 {
					return nil, badArg("usage: redeem <code>")
				}
				return d.Redemption.Redeem(ctx, req.Caller, req.Args[0])
			},
		},
		{
			Name: "give", Usage: "give <points> <user...>", Summary: "Give points to participants.",
			Capability: Privileged,
			Handler: func(ctx context.Context, req Request) (any, error) {
				pts, ids, err := pointsAndUsers(req.Args)
				if err != nil {
					return nil, err
				}
				return d.Grant.ApplyDelta(ctx, pts, ids)
			},
		},
		{
			Name: "take", Usage: "take <points> <user...>", Summary: "Take points from participants.",
			Capability: Privileged,
			Handler: func(ctx context.Context, req Request) (any, error) {
				pts, ids, err := pointsAndUsers(req.Args)
				if err != nil {
					return nil, err
				}
				if pts < 0 {
					return nil, badArg("points to take must not be negative")
				}
				return d.Grant.Revoke(ctx, pts, ids)
			},
		},
		{
			Name: "register", Usage: "register", Summary: "Reset the ledger to the current hacker roster.",
			Capability: Privileged,
			Handler:    registerAll(d, registration.SeedZero),
		},
		{
			Name: "register-random", Usage: "register-random", Summary: "Reset the ledger with random demo points.",
			Capability: Privileged,
			Handler:    registerAll(d, registration.SeedRandom),
		},
		{
			Name: "join", Usage: "join <user>", Summary: "Register one participant.",
			Capability: Privileged,
			Handler: func(ctx context.Context, req Request) (any, error) {
				id, err := oneUser(req.Args)
				if err != nil {
					return nil, err
				}
				created, err := d.Registration.RegisterOne(ctx, id)
				if err != nil {
					return nil, err
				}
				return MembershipReply{UserID: id, Changed: created}, nil
			},
		},
		{
			Name: "leave", Usage: "leave <user>", Summary: "Unregister one participant and drop their history.",
			Capability: Privileged,
			Handler: func(ctx context.Context, req Request) (any, error) {
				id, err := oneUser(req.Args)
				if err != nil {
					return nil, err
				}
				deleted, err := d.Registration.UnregisterOne(ctx, id)
				if err != nil {
					return nil, err
				}
				return MembershipReply{UserID: id, Changed: deleted}, nil
			},
		},
		{
			Name: "reload-codes", Usage: "reload-codes", Summary: "Reload redemption codes from the code sheet.",
			Capability: Privileged,
			Handler: func(ctx context.Context, _ Request) (any, error) {
				n, err := d.Catalog.ReloadFromSource(ctx)
				if err != nil {
					return nil, err
				}
				return ReloadReply{Codes: n}, nil
			},
		},
		{
			Name: "reload-roster", Usage: "reload-roster", Summary: "Reload roles and names from the roster sheet.",
			Capability: Privileged,
			Handler: func(ctx context.Context, _ Request) (any, error) {
				n, err := d.Roster.Reload(ctx)
				if err != nil {
					return nil, err
				}
				return RosterReply{People: n, Hackers: len(d.Roster.Hackers(ctx))}, nil
			},
		},
		{
			Name: "codes", Usage: "codes", Summary: "List redemption codes.",
			Capability: Privileged,
			Handler: func(ctx context.Context, _ Request) (any, error) {
				return d.Catalog.Codes(ctx)
			},
		},
	}
}

func registerAll(d Deps, mode registration.SeedMode) HandlerFunc {
	return func(ctx context.Context, _ Request) (any, error) {
		if _, err := d.Roster.Reload(ctx); err != nil {
			return nil, err
		}
		n, err := d.Registration.RegisterAll(ctx, d.Roster.Hackers(ctx), mode)
		if err != nil {
			return nil, err
		}
		return RegisterReply{Mode: mode.String(), Registered: n}, nil
	}
}

func pointsAndUsers(args []string) (int64, []int64, error) {
	if len(args) < 2 {
		return 0, nil, badArg("usage: <points> <user...>")
	}
	pts, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, nil, badArg("points must be an integer, got %q", args[0])
	}
	ids := make([]int64, 0, len(args)-1)
	for _, a := range args[1:] {
		id, err := utilities.ParseUserID(a)
		if err != nil {
			return 0, nil, badArg("%v", err)
		}
		ids = append(ids, id)
	}
	return pts, ids, nil
}

func oneUser(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, badArg("usage: <user>")
	}
	id, err := utilities.ParseUserID(args[0])
	if err != nil {
		return 0, badArg("%v", err)
	}
	return id, nil
}
