// Package track turns an (original, edited) text pair into a sequence of
// accept/reject-able change groups and reconstructs text from the partially
// resolved state.
package track

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dgallion1/redraft/internal/diff"
)

// State of a change group. Pending groups can move to accepted or rejected;
// both are terminal.
type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
	StateRejected State = "rejected"
)

var (
	// ErrNotFound is returned when a change group id is unknown.
	ErrNotFound = errors.New("change group not found")
	// ErrResolved is returned when flipping an already-resolved group.
	ErrResolved = errors.New("change group already resolved")
)

// ChangeGroup is a maximal run of consecutive word-level edits, resolvable as
// one unit. Empty OriginalFragment means a pure insertion, empty
// EditedFragment a pure deletion, both set a replacement. ResolvedText is set
// exactly when State is not pending.
type ChangeGroup struct {
	ID               string `json:"id"`
	OriginalFragment string `json:"original_fragment"`
	EditedFragment   string `json:"edited_fragment"`
	State            State  `json:"state"`
	ResolvedText     string `json:"resolved_text,omitempty"`
}

// node is one element of the alternating document sequence: either literal
// unchanged text or a change group.
type node struct {
	text  string
	group *ChangeGroup
}

// ChangeSet is the ordered document sequence plus group lookup. Mutations go
// through Accept/Reject; a new edit discards the set and rebuilds it.
type ChangeSet struct {
	mu    sync.Mutex
	nodes []node
	byID  map[string]*ChangeGroup
	order []*ChangeGroup
}

// Build diffs original against edited and assembles the change set.
// Consecutive added/removed diff parts coalesce into a single group;
// unchanged runs become literal text nodes between groups.
func Build(original, edited string) *ChangeSet {
	cs := &ChangeSet{byID: make(map[string]*ChangeGroup)}

	var removed, added []string
	flush := func() {
		if len(removed) == 0 && len(added) == 0 {
			return
		}
		g := &ChangeGroup{
			ID:               uuid.NewString(),
			OriginalFragment: strings.Join(removed, " "),
			EditedFragment:   strings.Join(added, " "),
			State:            StatePending,
		}
		cs.nodes = append(cs.nodes, node{group: g})
		cs.byID[g.ID] = g
		cs.order = append(cs.order, g)
		removed = nil
		added = nil
	}

	for _, p := range diff.Words(original, edited) {
		switch {
		case p.Removed:
			removed = append(removed, p.Value)
		case p.Added:
			added = append(added, p.Value)
		default:
			flush()
			cs.nodes = append(cs.nodes, node{text: p.Value})
		}
	}
	flush()
	return cs
}

// Accept resolves a group to its edited fragment. Accepting an accepted
// group is a no-op; accepting a rejected group is an error.
func (cs *ChangeSet) Accept(id string) error {
	return cs.resolve(id, StateAccepted)
}

// Reject resolves a group to its original fragment. Rejecting a rejected
// group is a no-op; rejecting an accepted group is an error.
func (cs *ChangeSet) Reject(id string) error {
	return cs.resolve(id, StateRejected)
}

func (cs *ChangeSet) resolve(id string, to State) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	g, ok := cs.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if g.State == to {
		return nil
	}
	if g.State != StatePending {
		return fmt.Errorf("%w: %s is %s", ErrResolved, id, g.State)
	}
	g.State = to
	if to == StateAccepted {
		g.ResolvedText = g.EditedFragment
	} else {
		g.ResolvedText = g.OriginalFragment
	}
	return nil
}

// AcceptAll resolves every pending group to its edited fragment.
func (cs *ChangeSet) AcceptAll() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, g := range cs.order {
		if g.State == StatePending {
			g.State = StateAccepted
			g.ResolvedText = g.EditedFragment
		}
	}
}

// RejectAll resolves every pending group to its original fragment.
func (cs *ChangeSet) RejectAll() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, g := range cs.order {
		if g.State == StatePending {
			g.State = StateRejected
			g.ResolvedText = g.OriginalFragment
		}
	}
}

// CleanText walks the sequence and emits unchanged text verbatim plus, per
// group, its resolved text — or the edited fragment while still pending, so
// pending edits read as applied until explicitly rejected.
func (cs *ChangeSet) CleanText() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var fragments []string
	for _, n := range cs.nodes {
		if n.group == nil {
			fragments = append(fragments, n.text)
			continue
		}
		g := n.group
		var text string
		if g.State == StatePending {
			text = g.EditedFragment
		} else {
			text = g.ResolvedText
		}
		if text != "" {
			fragments = append(fragments, text)
		}
	}
	return strings.Join(fragments, " ")
}

// Groups returns a snapshot copy of all groups in document order.
func (cs *ChangeSet) Groups() []ChangeGroup {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]ChangeGroup, len(cs.order))
	for i, g := range cs.order {
		out[i] = *g
	}
	return out
}

// Counts reports how many groups are in each state.
func (cs *ChangeSet) Counts() (pending, accepted, rejected int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, g := range cs.order {
		switch g.State {
		case StateAccepted:
			accepted++
		case StateRejected:
			rejected++
		default:
			pending++
		}
	}
	return
}

// Len returns the number of change groups.
func (cs *ChangeSet) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.order)
}
