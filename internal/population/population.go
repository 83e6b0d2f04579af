// Package population is a small hill-climbing stand-in for an external
// evolution process. Survivors keep their ids across generations so the
// assignment registry can recognise them.
package population

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/internal/engine"
	"github.com/circuitlab/racesim/internal/policy"
)

var ErrSize = errors.New("population size must be positive")

// Member is one agent of the roster.
type Member struct {
	ID      string
	Policy  *policy.Linear
	Fitness float64
	// Age counts the generations this member has survived.
	Age int
}

// Population owns the roster and the random source used to mutate it.
type Population struct {
	cfg     config.PopulationConfig
	inputs  int
	rng     *rand.Rand
	members []*Member
	nextID  int
}

// New seeds size random linear policies for inputs radar features.
func New(cfg config.PopulationConfig, size, inputs int) (*Population, error) {
	if size <= 0 {
		return nil, ErrSize
	}
	if cfg.Elite <= 0 || cfg.Elite > size {
		cfg.Elite = min(3, size)
	}
	if cfg.MutationScale <= 0 {
		cfg.MutationScale = 0.5
	}

	p := &Population{
		cfg:    cfg,
		inputs: inputs,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
	p.members = make([]*Member, size)
	for i := range p.members {
		p.members[i] = p.newMember(policy.RandomLinear(p.rng, inputs, 1, cfg.ComplexityWeight))
	}
	return p, nil
}

func (p *Population) newMember(l *policy.Linear) *Member {
	p.nextID++
	return &Member{ID: fmt.Sprintf("agent-%04d", p.nextID), Policy: l}
}

// Size is the roster length.
func (p *Population) Size() int { return len(p.members) }

// Members returns the roster in its current order.
func (p *Population) Members() []*Member {
	return append([]*Member(nil), p.members...)
}

// Agents binds every member's fitness slot to an engine agent.
func (p *Population) Agents() []engine.Agent {
	out := make([]engine.Agent, len(p.members))
	for i, m := range p.members {
		out[i] = engine.Agent{ID: m.ID, Policy: m.Policy, Fitness: &m.Fitness}
	}
	return out
}

// Best returns the member with the highest fitness from the last generation.
func (p *Population) Best() *Member {
	best := p.members[0]
	for _, m := range p.members[1:] {
		if m.Fitness > best.Fitness {
			best = m
		}
	}
	return best
}

// Evolve keeps the elite by fitness and refills the roster with mutated
// copies of them, assigned round-robin. Children get fresh ids.
func (p *Population) Evolve() {
	ranked := append([]*Member(nil), p.members...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})

	elite := ranked[:p.cfg.Elite]
	next := make([]*Member, 0, len(p.members))
	for _, m := range elite {
		m.Age++
		next = append(next, m)
	}
	for i := 0; len(next) < len(p.members); i++ {
		parent := elite[i%len(elite)]
		next = append(next, p.newMember(parent.Policy.Mutate(p.rng, p.cfg.MutationRate, p.cfg.MutationScale)))
	}
	p.members = next
}
