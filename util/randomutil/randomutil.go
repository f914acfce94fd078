package randomutil

import (
	"math/rand"
	"sync"
	"time"
)

type RandomGenerator interface {
	Intn(n int) int
}

// RandomNumberGenerator is a RandomGenerator seeded from the wall clock.
type RandomNumberGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewRandomNumberGenerator() *RandomNumberGenerator {
	return NewSeeded(time.Now().UnixNano())
}

func NewSeeded(seed int64) *RandomNumberGenerator {
	return &RandomNumberGenerator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *RandomNumberGenerator) Intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Intn(n)
}

// Pick returns a uniformly chosen element of items. ok is false when items is empty.
func Pick(g RandomGenerator, items []string) (item string, ok bool) {
	if len(items) == 0 {
		return "", false
	}
	i := g.Intn(len(items))
	if i < 0 || i >= len(items) {
		i = 0
	}
	return items[i], true
}
