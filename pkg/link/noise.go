package link

import (
	"math/rand"
	"sync"

	"github.com/robotalks/swuart/pkg/swuart"
)

// NoisyLine inverts the level read from Line with probability Rate.
type NoisyLine struct {
	Line swuart.LineGetter

	lock sync.Mutex
	rate float64
	rnd   *rand.Rand
	flips uint64
}

// NewNoisyLine wraps line with a seeded random source.
func NewNoisyLine(line swuart.LineGetter, rate float64, seed int64) *NoisyLine {
	n := &NoisyLine{Line: line, rnd: rand.New(rand.NewSource(seed))}
	n.SetRate(rate)
	return n
}

// SetRate changes the probability, clamped to [0, 1].
func (n *NoisyLine) SetRate(rate float64) {
	if rate < 0 {
		rate = 0
	} else if rate > 1 {
		rate = 1
	}
	n.lock.Lock()
	n.rate = rate
	n.lock.Unlock()
}

// Rate returns the probability of inverting a read.
func (n *NoisyLine) Rate() float64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.rate
}

// GetLine implements swuart.LineGetter.
func (n *NoisyLine) GetLine() swuart.Level {
	l := n.Line.GetLine()
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.rate > 0 && n.rnd.Float64() < n.rate {
		n.flips++
		return l ^ 1
	}
	return l
}

// Flips returns the number of inverted reads.
func (n *NoisyLine) Flips() uint64 {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.flips
}
