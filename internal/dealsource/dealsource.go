// Package dealsource provides the pluggable (shuffledDeck, dealerPosition)
// source the rule engine draws from at the start of every round. The
// rule engine never touches math/rand or crypto/rand directly — all
// nondeterminism flows through this interface, so tests can pin it.
package dealsource

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/buckeuchre/buckeuchre/internal/cards"
)

// DealSource supplies a freshly shuffled deck and, for the very first
// round of a game, the dealer's seat position.
type DealSource interface {
	// Deal returns a shuffled 24-card deck for a new round.
	Deal() []cards.Card
	// InitialDealer returns the dealer position (0..3) for round 1.
	InitialDealer() int
}

// Crypto is the default, production DealSource: a Fisher-Yates shuffle
// seeded from crypto/rand, matching the teacher's own deck shuffling in
// spirit (a per-use, non-global RNG) but using a CSPRNG since the spec
// calls the default "a cryptographic shuffle".
type Crypto struct {
	initialDealer int
}

// NewCrypto builds a Crypto source whose round-1 dealer is chosen
// uniformly at random.
func NewCrypto() *Crypto {
	return &Crypto{initialDealer: cryptoIntn(4)}
}

func (c *Crypto) Deal() []cards.Card {
	deck := cards.FullDeck()
	for i := len(deck) - 1; i > 0; i-- {
		j := cryptoIntn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

func (c *Crypto) InitialDealer() int { return c.initialDealer }

func cryptoIntn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand failing is a hard environment fault; fall back to
		// position 0 rather than panicking the actor.
		return 0
	}
	return int(v.Int64())
}

// Pinned is the test-hook DealSource (§6.1 `/api/test/deck`,
// `/api/test/dealer`, §9 "the core MUST support injecting a DealSource").
// Each call to Deal consumes one queued deck if present, else falls back
// to a fresh crypto shuffle so tests that only pin the dealer still get
// usable decks.
type Pinned struct {
	mu       sync.Mutex
	decks    [][]cards.Card
	dealer   *int
	fallback *Crypto
}

// NewPinned builds a Pinned source. It is safe for concurrent use and is
// intended to be process-wide but constructed explicitly and injected,
// never a package-level singleton (per the "no global mutable state"
// design note).
func NewPinned() *Pinned {
	return &Pinned{fallback: NewCrypto()}
}

// SetNextDeck queues deck as the next round's deal. A nil deck clears any
// queued override, reverting to the fallback crypto shuffle.
func (p *Pinned) SetNextDeck(deck []cards.Card) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if deck == nil {
		p.decks = nil
		return nil
	}
	if len(deck) != 24 {
		return fmt.Errorf("dealsource: pinned deck must have 24 cards, got %d", len(deck))
	}
	p.decks = append(p.decks, append([]cards.Card(nil), deck...))
	return nil
}

// SetDealer pins the dealer position for round 1. A nil position clears
// the override.
func (p *Pinned) SetDealer(position *int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dealer = position
}

func (p *Pinned) Deal() []cards.Card {
	p.mu.Lock()
	if len(p.decks) > 0 {
		deck := p.decks[0]
		p.decks = p.decks[1:]
		p.mu.Unlock()
		return deck
	}
	p.mu.Unlock()
	return p.fallback.Deal()
}

func (p *Pinned) InitialDealer() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dealer != nil {
		return *p.dealer
	}
	return p.fallback.InitialDealer()
}
