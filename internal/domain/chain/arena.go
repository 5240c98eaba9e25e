package chain

import (
	"context"
	"fmt"

	"github.com/okian/raceseries/internal/adapters/graph"
	"github.com/okian/raceseries/internal/domain/model"
)

// arena is an in-memory view of one race's arrival chain.
//
// pred[x] is the participant that arrived immediately before x (x precedes it),
// succ[x] the one that arrived immediately after.
type arena struct {
	raceID  string
	members map[string]struct{}
	pred    map[string]string
	succ    map[string]string
	head    string // most recent arrival
	tail    string // first arrival
	order   []string
}

// loadArena reads every participant of the race and checks that their
// precedes edges form exactly one simple chain.
func loadArena(ctx context.Context, store graph.Store, raceID string) (*arena, error) {
	ids, err := store.StartNodes(ctx, raceID, model.RelParticipates)
	if err != nil {
		return nil, fmt.Errorf("load participants of race %s: %w", raceID, err)
	}
	a := &arena{
		raceID:  raceID,
		members: make(map[string]struct{}, len(ids)),
		pred:    make(map[string]string, len(ids)),
		succ:    make(map[string]string, len(ids)),
	}
	for _, id := range ids {
		a.members[id] = struct{}{}
	}
	for _, id := range ids {
		ends, err := store.EndNodes(ctx, id, model.RelPrecedes)
		if err != nil {
			return nil, fmt.Errorf("load chain edge of %s: %w", id, err)
		}
		switch len(ends) {
		case 0:
			continue
		case 1:
		default:
			return nil, fmt.Errorf("%w: participant %s precedes %d participants", ErrIntegrity, id, len(ends))
		}
		p := ends[0]
		if _, ok := a.members[p]; !ok {
			return nil, fmt.Errorf("%w: participant %s precedes %s outside the race", ErrIntegrity, id, p)
		}
		if other, ok := a.succ[p]; ok {
			return nil, fmt.Errorf("%w: participant %s is preceded by both %s and %s", ErrIntegrity, p, other, id)
		}
		a.pred[id] = p
		a.succ[p] = id
	}
	if err := a.walk(); err != nil {
		return nil, err
	}
	return a, nil
}

// walk locates head and tail and fills order, head to tail. The walk is
// bounded by the participant count.
func (a *arena) walk() error {
	n := len(a.members)
	if n == 0 {
		return nil
	}
	var heads, tails []string
	for id := range a.members {
		if _, ok := a.succ[id]; !ok {
			heads = append(heads, id)
		}
		if _, ok := a.pred[id]; !ok {
			tails = append(tails, id)
		}
	}
	if len(heads) != 1 || len(tails) != 1 {
		return fmt.Errorf("%w: race %s has %d heads and %d tails", ErrIntegrity, a.raceID, len(heads), len(tails))
	}
	a.head, a.tail = heads[0], tails[0]

	order := make([]string, 0, n)
	for cur, ok := a.head, true; ok; cur, ok = a.pred[cur] {
		if len(order) == n {
			return fmt.Errorf("%w: walk of race %s exceeds %d participants", ErrIntegrity, a.raceID, n)
		}
		order = append(order, cur)
	}
	if len(order) != n || order[n-1] != a.tail {
		return fmt.Errorf("%w: race %s chain covers %d of %d participants", ErrIntegrity, a.raceID, len(order), n)
	}
	a.order = order
	return nil
}

// arrivals returns the chain tail to head: first arrival first.
func (a *arena) arrivals() []string {
	out := make([]string, len(a.order))
	for i, id := range a.order {
		out[len(a.order)-1-i] = id
	}
	return out
}
