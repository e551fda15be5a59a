package ismcts

import (
	"math"
	"math/rand"

	"github.com/buckeuchre/buckeuchre/internal/euchre"
)

// explorationParam is UCB1's C, fixed at √2 per §4.7.
const explorationParam = math.Sqrt2

// node is one position in the search tree. Every node belongs to a
// single information set from the root seat's point of view: its
// children are keyed by euchre.Action.Key() rather than by the sampled
// determinized state, so visits accumulate across determinizations the
// way information-set MCTS requires (grounded on the node/search split
// in signalnine-darwindeck/src/gosim/mcts). That teacher tracks a
// single Wins/Visits pair because its game is two-player zero-sum;
// Buck Euchre is four-player and every seat scores for itself, so each
// node here keeps one value accumulator per seat and UCB1 selection at
// a node reads the accumulator belonging to the seat on the move there.
// The sum-of-squares side of each accumulator is this package's own
// addition, for the spec's variance/standard-error requirement.
type node struct {
	parent   *node
	incoming euchre.Action // the action that produced this node from parent, nil at root

	untried  []euchre.Action // actions not yet expanded, re-filled per determinization
	children map[string]*node

	visits     int
	sumValue   [euchre.NumSeats]float64
	sumSqValue [euchre.NumSeats]float64

	actingSeat int // whose decision this node represents
}

func newNode(parent *node, incoming euchre.Action, actingSeat int) *node {
	return &node{
		parent:     parent,
		incoming:   incoming,
		children:   make(map[string]*node),
		actingSeat: actingSeat,
	}
}

// ensureUntried seeds n.untried from the legal actions of a freshly
// determinized state the first time this node is visited under a given
// determinization. Subsequent determinizations may offer a different
// legal-action set (e.g. different card-play legality under a different
// sampled hand); actions already present as children are not
// re-expanded, and actions no longer legal are simply skipped.
func (n *node) ensureUntried(legal []euchre.Action) {
	n.untried = n.untried[:0]
	for _, a := range legal {
		if _, ok := n.children[a.Key()]; !ok {
			n.untried = append(n.untried, a)
		}
	}
}

// averageValue is the node's mean backpropagated value for seat, in
// roughly [0, 1].
func (n *node) averageValue(seat int) float64 {
	if n.visits == 0 {
		return 0
	}
	return n.sumValue[seat] / float64(n.visits)
}

// variance is the sample variance of backpropagated values for seat,
// floored at 0.0025 (= 0.05²) per §4.7 so a node visited only once or
// twice never reports a spuriously tight confidence interval.
func (n *node) variance(seat int) float64 {
	const floor = 0.05 * 0.05
	if n.visits < 2 {
		return floor
	}
	mean := n.averageValue(seat)
	v := n.sumSqValue[seat]/float64(n.visits) - mean*mean
	if v < floor {
		return floor
	}
	return v
}

// standardError is the standard error of the mean for seat.
func (n *node) standardError(seat int) float64 {
	if n.visits == 0 {
		return 0
	}
	return math.Sqrt(n.variance(seat) / float64(n.visits))
}

// ucb1 scores child for selection by perspectiveSeat — the seat on the
// move at the parent, maximizing its own expected value (each seat in
// Buck Euchre plays purely for itself, so there is no shared payoff to
// negate the way two-player minimax would).
func (child *node) ucb1(parentVisits, perspectiveSeat int) float64 {
	if child.visits == 0 {
		return math.Inf(1)
	}
	exploit := child.averageValue(perspectiveSeat)
	explore := explorationParam * math.Sqrt(math.Log(float64(parentVisits))/float64(child.visits))
	return exploit + explore
}

// selectChild returns the untried action if any remain (in legal's
// order — callers shuffle legal beforehand for unbiased expansion
// order), else the existing child maximizing UCB1 from n.actingSeat's
// perspective among the actions legal in this determinization.
func (n *node) selectChild(legal []euchre.Action) (action euchre.Action, child *node, isNew bool) {
	n.ensureUntried(legal)
	if len(n.untried) > 0 {
		return n.untried[0], nil, true
	}
	bestScore := math.Inf(-1)
	for _, a := range legal {
		c, ok := n.children[a.Key()]
		if !ok {
			continue
		}
		score := c.ucb1(n.visits, n.actingSeat)
		if score > bestScore {
			bestScore = score
			child = c
			action = a
		}
	}
	return action, child, false
}

// expand creates (or returns the existing) child for action.
func (n *node) expand(action euchre.Action, actingSeat int) *node {
	if c, ok := n.children[action.Key()]; ok {
		return c
	}
	c := newNode(n, action, actingSeat)
	n.children[action.Key()] = c
	return c
}

// backpropagate pushes a per-seat value vector up from n to the root,
// accumulating visits and the moments needed for averageValue/variance.
func (n *node) backpropagate(values [euchre.NumSeats]float64) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.visits++
		for s := 0; s < euchre.NumSeats; s++ {
			cur.sumValue[s] += values[s]
			cur.sumSqValue[s] += values[s] * values[s]
		}
	}
}

// mostVisited implements robust-child selection (§4.7): the action whose
// child has the most visits wins, ties broken by highest average value
// from n.actingSeat's perspective, further ties broken by legal's order.
func (n *node) mostVisited(legal []euchre.Action) euchre.Action {
	var best euchre.Action
	bestVisits := -1
	bestAvg := math.Inf(-1)
	for _, a := range legal {
		c, ok := n.children[a.Key()]
		if !ok {
			continue
		}
		avg := c.averageValue(n.actingSeat)
		if c.visits > bestVisits || (c.visits == bestVisits && avg > bestAvg) {
			best = a
			bestVisits = c.visits
			bestAvg = avg
		}
	}
	return best
}

// shuffleActions randomizes expansion order so that, across many
// determinizations, untried actions aren't always expanded in the same
// fixed order (which would bias early exploration toward whichever
// action LegalActions happens to list first).
func shuffleActions(actions []euchre.Action, rng *rand.Rand) []euchre.Action {
	out := append([]euchre.Action(nil), actions...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
