package ismcts

import (
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/buckeuchre/buckeuchre/internal/euchre"
)

// defaultIterations is the rollout budget described in §4.7: 5000
// determinized simulations per decision, the documented default for a
// four-player, 24-card game, reached without a time-based cutoff
// (which would make two runs of the same seed non-reproducible).
const defaultIterations = 5000

// maxRolloutPlies bounds a single rollout past the tree: one round of
// Buck Euchre is at most 5 tricks of 4 plays plus bidding/fold overhead,
// so this is a generous backstop against a heuristic policy bug looping
// forever rather than a budget the rollout is expected to hit.
const maxRolloutPlies = 200

// SearchOptions configures one Search call. Zero value is a usable
// default: 5000 iterations, a balanced Character, one worker.
type SearchOptions struct {
	Iterations             int
	MaxDeterminizeAttempts int
	Character              Character
	Seed                   int64
	Workers                int // >1 runs independent trees in parallel and merges visit counts
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Iterations <= 0 {
		o.Iterations = defaultIterations
	}
	if o.MaxDeterminizeAttempts <= 0 {
		o.MaxDeterminizeAttempts = 3
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Character == (Character{}) {
		o.Character = Balanced()
	}
	return o
}

// ActionStat is the per-action summary the AI executor publishes in its
// AI_ANALYSIS_UPDATE event (§4.7, §6.4): visit share, mean normalized
// value, standard error, and a 95% confidence interval (±1.96·SE).
type ActionStat struct {
	Action        euchre.Action
	Visits        int
	AverageValue  float64
	StandardError float64
	CI95Low       float64
	CI95High      float64
}

// Result is what Search returns: the robust-child (most-visited) action
// at the root, plus the full per-action statistics table.
type Result struct {
	Best  euchre.Action
	Stats []ActionStat
}

// Search runs information-set MCTS with determinization from gs's point
// of view of the acting seat at gs.Phase, and returns the recommended
// action plus full statistics over every legal root action (§4.7).
//
// gs is never mutated: every iteration determinizes a fresh clone and
// plays forward on that clone only.
func Search(gs *euchre.GameState, seat int, opts SearchOptions) Result {
	opts = opts.withDefaults()
	rootLegal := euchre.LegalActions(gs)
	if len(rootLegal) == 0 {
		return Result{}
	}
	if len(rootLegal) == 1 {
		return Result{Best: rootLegal[0], Stats: []ActionStat{{Action: rootLegal[0], Visits: opts.Iterations, AverageValue: 0.5}}}
	}

	if opts.Workers == 1 {
		root := runTree(gs, seat, opts, opts.Seed)
		return finalize(root, rootLegal, seat)
	}

	roots := make([]*node, opts.Workers)
	perWorker := opts.Iterations / opts.Workers
	if perWorker < 1 {
		perWorker = 1
	}
	var g errgroup.Group
	for w := 0; w < opts.Workers; w++ {
		w := w
		g.Go(func() error {
			workerOpts := opts
			workerOpts.Iterations = perWorker
			// Each worker gets its own independently-seeded RNG (and
			// therefore its own determinizations and rollout draws) so
			// concurrent trees explore genuinely different samples
			// rather than replaying the same simulations in parallel.
			roots[w] = runTree(gs, seat, workerOpts, opts.Seed+int64(w)*7919)
			return nil
		})
	}
	_ = g.Wait() // worker goroutines never return an error
	merged := mergeRoots(roots, rootLegal)
	return finalize(merged, rootLegal, seat)
}

// runTree executes opts.Iterations determinized simulations against a
// single shared tree rooted at gs, returning that root node.
func runTree(gs *euchre.GameState, seat int, opts SearchOptions, seed int64) *node {
	rng := rand.New(rand.NewSource(seed))
	root := newNode(nil, nil, seat)
	voids := ObserveTricks(gs)

	for i := 0; i < opts.Iterations; i++ {
		det := Determinize(gs, seat, voids, rng, opts.MaxDeterminizeAttempts)
		det.SetDealSource(newSimDeal(rng, det.DealerPosition))
		simulate(root, det, opts.Character, rng)
	}
	return root
}

// simulate runs one ISMCTS iteration: select down the tree while nodes
// are fully expanded under this determinization, expand one new child
// if any untried action remains, then fall into heuristic rollout, and
// finally backpropagate the evaluated outcome along the path taken
// through the tree (the rollout portion itself adds no nodes).
func simulate(root *node, det *euchre.GameState, ch Character, rng *rand.Rand) {
	cur := root

	for {
		if isTerminalForSearch(det) {
			break
		}
		legal := shuffleActions(euchre.LegalActions(det), rng)
		if len(legal) == 0 {
			break
		}
		action, child, isNew := cur.selectChild(legal)
		if action == nil {
			break
		}
		if err := euchre.Apply(det, action, nextSimClock(det)); err != nil {
			break
		}
		// No reveal timer runs in a simulation: open the next trick at
		// once (a no-op unless a trick just completed).
		euchre.AdvanceTrick(det, nextSimClock(det))
		if isNew {
			cur = cur.expand(action, nextActor(det))
			break // expand exactly one node per iteration, then roll out
		}
		cur = child
	}

	rolloutToEnd(det, ch, rng)
	values := evaluate(det)
	cur.backpropagate(values) // walks cur.parent chain back to root
}

// isTerminalForSearch stops both selection/expansion and rollout: once
// a round resolves there is nothing left for this decision's tree to
// explore, since the next round deals an entirely different information
// set.
func isTerminalForSearch(gs *euchre.GameState) bool {
	return gs.Phase == euchre.PhaseRoundOver || gs.Phase == euchre.PhaseGameOver
}

// nextActor identifies which seat's decision the next tree node
// represents, read directly off the phase-appropriate GameState field.
func nextActor(gs *euchre.GameState) int {
	switch gs.Phase {
	case euchre.PhaseBidding:
		return gs.CurrentBidder
	case euchre.PhaseDeclaringTrump:
		return gs.WinningBidderPosition
	case euchre.PhaseFoldingDecision:
		if pos := firstUndecided(gs); pos >= 0 {
			return pos
		}
		return gs.CurrentPlayerPosition
	case euchre.PhasePlaying:
		return gs.CurrentPlayerPosition
	default:
		return 0
	}
}

func firstUndecided(gs *euchre.GameState) int {
	for _, a := range euchre.LegalActions(gs) {
		return a.ActorPosition()
	}
	return -1
}

// rolloutToEnd applies the heuristic policy until the round resolves or
// maxRolloutPlies is exhausted, whichever comes first.
func rolloutToEnd(gs *euchre.GameState, ch Character, rng *rand.Rand) {
	for ply := 0; ply < maxRolloutPlies; ply++ {
		if isTerminalForSearch(gs) {
			return
		}
		legal := euchre.LegalActions(gs)
		if len(legal) == 0 {
			return
		}
		action := rolloutAction(gs, legal, ch, rng)
		if action == nil {
			return
		}
		if err := euchre.Apply(gs, action, nextSimClock(gs)); err != nil {
			return
		}
		euchre.AdvanceTrick(gs, nextSimClock(gs))
	}
}

// nextSimClock hands the rule engine a monotonically increasing
// timestamp without reading the real wall clock, matching "the rule
// engine never reads wall-clock time" — simulations supply their own
// synthetic, deterministic clock instead.
func nextSimClock(gs *euchre.GameState) int64 {
	return gs.UpdatedAtMs + 1
}

// evaluate scores a (possibly non-terminal, if maxRolloutPlies was
// exhausted) GameState per seat, normalized into roughly [0, 1] via
// (−Δ+5)/10 per §4.7 so that a seat's best-case delta (winning the bid
// big, Δ=-5) maps near 1 and its worst case (getting set on a 5 bid,
// Δ=+5) maps near 0. A state that never reached ROUND_OVER (rollout cap
// hit) scores as neutral for everyone — it contributes no information
// either way rather than a misleading extreme.
func evaluate(gs *euchre.GameState) [euchre.NumSeats]float64 {
	var values [euchre.NumSeats]float64
	if gs.Phase != euchre.PhaseRoundOver && gs.Phase != euchre.PhaseGameOver {
		for s := range values {
			values[s] = 0.5
		}
		return values
	}
	deltas := euchre.RoundDeltas(gs)
	for s, d := range deltas {
		v := (float64(-d) + 5) / 10
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		values[s] = v
	}
	return values
}

// finalize reads the robust-child action and the full statistics table
// off root for the given root-level legal actions.
func finalize(root *node, rootLegal []euchre.Action, seat int) Result {
	stats := make([]ActionStat, 0, len(rootLegal))
	for _, a := range rootLegal {
		c, ok := root.children[a.Key()]
		if !ok {
			stats = append(stats, ActionStat{Action: a})
			continue
		}
		avg := c.averageValue(seat)
		se := c.standardError(seat)
		stats = append(stats, ActionStat{
			Action:        a,
			Visits:        c.visits,
			AverageValue:  avg,
			StandardError: se,
			CI95Low:       avg - 1.96*se,
			CI95High:      avg + 1.96*se,
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Visits > stats[j].Visits })

	best := root.mostVisited(rootLegal)
	if best == nil {
		best = rootLegal[0]
	}
	return Result{Best: best, Stats: stats}
}

// mergeRoots combines independently-searched worker trees into a single
// synthetic root whose immediate children hold the summed visit counts
// and value accumulators for each root-level action, so root-level
// selection and statistics behave exactly as if one big tree had run.
// Grounded on the teacher pack's errgroup fan-out idiom (n0remac's
// worker pools; golang.org/x/sync/errgroup is the library, not a
// specific file, since no example repo runs parallel MCTS workers).
func mergeRoots(roots []*node, rootLegal []euchre.Action) *node {
	merged := newNode(nil, nil, roots[0].actingSeat)
	for _, a := range rootLegal {
		mc := merged.expand(a, -1)
		for _, r := range roots {
			c, ok := r.children[a.Key()]
			if !ok {
				continue
			}
			mc.visits += c.visits
			for s := 0; s < euchre.NumSeats; s++ {
				mc.sumValue[s] += c.sumValue[s]
				mc.sumSqValue[s] += c.sumSqValue[s]
			}
			merged.visits += c.visits
		}
	}
	return merged
}
