package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultCodeAlphabet is the 36-symbol alphabet session codes draw from.
const DefaultCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultCodeLength gives 36^6 (~2.1B) possible codes.
const DefaultCodeLength = 6

// CodeGenerator mints random session codes. It keeps no persistent state;
// uniqueness comes from the store's insert constraint plus the service's
// bounded retry loop.
type CodeGenerator struct {
	alphabet string
	length   int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCodeGenerator returns a generator over the default alphabet and length.
func NewCodeGenerator() *CodeGenerator {
	return NewCodeGeneratorWithRand(DefaultCodeAlphabet, DefaultCodeLength, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewCodeGeneratorWithRand allows a custom alphabet, length and random source,
// mainly so the exhaustion path is reachable in tests.
func NewCodeGeneratorWithRand(alphabet string, length int, rnd *rand.Rand) *CodeGenerator {
	if alphabet == "" {
		alphabet = DefaultCodeAlphabet
	}
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{alphabet: alphabet, length: length, rnd: rnd}
}

// Generate draws one code uniformly at random.
func (g *CodeGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		b.WriteByte(g.alphabet[g.rnd.Intn(len(g.alphabet))])
	}
	return b.String()
}

// Length reports the configured code length.
func (g *CodeGenerator) Length() int {
	return g.length
}

// Alphabet reports the configured alphabet.
func (g *CodeGenerator) Alphabet() string {
	return g.alphabet
}
