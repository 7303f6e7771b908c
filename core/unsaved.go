package core

import (
	"context"
	"fmt"

	"pkt.systems/idemy/internal/logx"
	"pkt.systems/idemy/schema"
)

// GuardAction is the operation a guard protects. discardUnsaved is true when the
// user chose to discard at least one dirty buffer.
type GuardAction func(ctx context.Context, discardUnsaved bool) error

// GuardState reports where a guard is in its decision sequence.
type GuardState int

const (
	// GuardPending waits for a decision on Next.
	GuardPending GuardState = iota
	// GuardDone ran its action.
	GuardDone
	// GuardCanceled aborted without running its action.
	GuardCanceled
)

// Guard walks the save/discard/cancel decision for each dirty buffer before an
// action that would lose them. It is driven by the registry owner.
type Guard struct {
	registry  *Registry
	pending   []schema.BufferID
	action    GuardAction
	discarded bool
	state     GuardState
	err       error
}

// Guard prepares a decision sequence over the dirty subset of ids, in tab order.
// Unknown ids are ignored. Run must be called to start it.
func (r *Registry) Guard(ids []schema.BufferID, action GuardAction) *Guard {
	want := make(map[schema.BufferID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	g := &Guard{registry: r, action: action}
	for _, id := range r.order {
		if _, ok := want[id]; !ok {
			continue
		}
		if doc := r.docs[id]; doc != nil && doc.Dirty() {
			g.pending = append(g.pending, id)
		}
	}
	return g
}

// GuardAll prepares a decision sequence over every open buffer.
func (r *Registry) GuardAll(action GuardAction) *Guard {
	ids := make([]schema.BufferID, len(r.order))
	copy(ids, r.order)
	return r.Guard(ids, action)
}

// Run starts the guard. Without dirty buffers the action runs immediately.
func (g *Guard) Run(ctx context.Context) error {
	if g.state != GuardPending {
		return g.err
	}
	return g.advance(ctx)
}

// State returns the guard state.
func (g *Guard) State() GuardState {
	return g.state
}

// Err returns the error that finished the guard, if any.
func (g *Guard) Err() error {
	return g.err
}

// Next returns the buffer awaiting a decision.
func (g *Guard) Next() (schema.BufferSnapshot, bool) {
	if g.state != GuardPending || len(g.pending) == 0 {
		return schema.BufferSnapshot{}, false
	}
	snap, err := g.registry.Get(g.pending[0])
	if err != nil {
		return schema.BufferSnapshot{}, false
	}
	return snap, true
}

// Prompt renders the question for the buffer awaiting a decision.
func (g *Guard) Prompt() string {
	snap, ok := g.Next()
	if !ok {
		return ""
	}
	return fmt.Sprintf("Save changes to %s? [s]ave/[d]iscard/[c]ancel", snap.Name)
}

// Decide applies the decision for the buffer returned by Next.
func (g *Guard) Decide(ctx context.Context, decision schema.Decision) error {
	if g.state != GuardPending {
		return schema.ErrGuardClosed
	}
	if len(g.pending) == 0 {
		return g.advance(ctx)
	}
	id := g.pending[0]
	log := logx.WithBuffer(ctx, id)
	switch decision {
	case schema.DecisionSave:
		if _, err := g.registry.Save(ctx, id); err != nil {
			log.Warn("guard save failed", "err", err)
			g.finish(GuardCanceled, err)
			return err
		}
	case schema.DecisionDiscard:
		g.discarded = true
	case schema.DecisionCancel:
		log.Debug("guard canceled")
		g.finish(GuardCanceled, nil)
		return nil
	default:
		return fmt.Errorf("unknown decision %q", decision)
	}
	g.pending = g.pending[1:]
	return g.advance(ctx)
}

// Cancel aborts the guard without running its action.
func (g *Guard) Cancel() {
	if g.state == GuardPending {
		g.finish(GuardCanceled, nil)
	}
}

func (g *Guard) advance(ctx context.Context) error {
	for len(g.pending) > 0 {
		dirty, err := g.registry.IsDirty(g.pending[0])
		if err == nil && dirty {
			return nil
		}
		// Closed or saved elsewhere since the guard was prepared.
		g.pending = g.pending[1:]
	}
	var err error
	if g.action != nil {
		err = g.action(ctx, g.discarded)
	}
	g.finish(GuardDone, err)
	return err
}

func (g *Guard) finish(state GuardState, err error) {
	g.state = state
	g.err = err
	g.pending = nil
}
