// Package registry keeps team and driver identities stable across generations.
package registry

import (
	"errors"
	"sync"

	"github.com/circuitlab/racesim/pkg/core"
)

const (
	// NoTeam marks an agent that did not fit into any team this generation.
	NoTeam = -1
	// TeamCapacity is the number of agents a team fields per generation.
	TeamCapacity = 2
)

var ErrNoTeams = errors.New("registry needs at least one team")

// Assignment is the placement of one agent for a generation.
type Assignment struct {
	AgentID    string
	TeamID     int
	DriverSlot int
}

// Registry maps agents to teams and teams to their preferred driver slot.
// It only changes through Commit, called once per generation.
type Registry struct {
	mu         sync.RWMutex
	teams      []string
	agentTeam  map[string]int
	driverSlot map[int]int
	// leadAgent is the agent that earned driverSlot for its team.
	leadAgent map[int]string
}

// New creates a registry for the given team names.
func New(teams []string) (*Registry, error) {
	if len(teams) == 0 {
		return nil, ErrNoTeams
	}
	return &Registry{
		teams:      append([]string(nil), teams...),
		agentTeam:  make(map[string]int),
		driverSlot: make(map[int]int),
		leadAgent:  make(map[int]string),
	}, nil
}

// Teams returns the team names in id order.
func (r *Registry) Teams() []string {
	return append([]string(nil), r.teams...)
}

// TeamName returns the name for id, or "" for NoTeam and unknown ids.
func (r *Registry) TeamName(id int) string {
	if id < 0 || id >= len(r.teams) {
		return ""
	}
	return r.teams[id]
}

// TeamOf returns the sticky team of an agent.
func (r *Registry) TeamOf(agentID string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.agentTeam[agentID]
	return t, ok
}

// Slot returns the driver slot a team's lead agent takes.
func (r *Registry) Slot(team int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.driverSlot[team]
}

// Assign places agents into teams for a new generation. The result is in
// the order of ids.
//
// Agents with a sticky team are placed first, each team's lead agent ahead
// of the rest. Everyone else fills the least occupied team, lowest id first.
// Agents that do not fit get NoTeam. The lead agent keeps the team's stored
// slot and its teammate takes the other one; without the lead, the first
// agent placed in the team takes the stored slot.
func (r *Registry) Assign(ids []string) []Assignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Assignment, len(ids))
	occupancy := make([]int, len(r.teams))
	leadSlot := make([]int, len(r.teams))
	placed := make([]bool, len(ids))

	place := func(i, team int) {
		slot := r.driverSlot[team]
		if occupancy[team] == 0 {
			leadSlot[team] = slot
		} else {
			slot = 1 - leadSlot[team]
		}
		occupancy[team]++
		out[i] = Assignment{AgentID: ids[i], TeamID: team, DriverSlot: slot}
		placed[i] = true
	}

	sticky := func(lead bool) {
		for i, id := range ids {
			if placed[i] {
				continue
			}
			team, ok := r.agentTeam[id]
			if !ok || team >= len(r.teams) || occupancy[team] >= TeamCapacity {
				continue
			}
			if lead == (r.leadAgent[team] == id) {
				place(i, team)
			}
		}
	}
	sticky(true)
	sticky(false)

	for i, id := range ids {
		if placed[i] {
			continue
		}
		team := NoTeam
		for t, n := range occupancy {
			if n >= TeamCapacity {
				continue
			}
			if team == NoTeam || n < occupancy[team] {
				team = t
			}
		}
		if team == NoTeam {
			out[i] = Assignment{AgentID: id, TeamID: NoTeam}
			continue
		}
		place(i, team)
	}
	return out
}

// Commit records the generation's top performers, best first. An agent's
// team is stored the first time it ranks. A team's slot follows its best
// ranked agent and is only written when it changes; that agent becomes the
// team's lead.
func (r *Registry) Commit(top []core.AgentResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]bool)
	for _, res := range top {
		if res.TeamID == NoTeam {
			continue
		}
		if _, ok := r.agentTeam[res.AgentID]; !ok {
			r.agentTeam[res.AgentID] = res.TeamID
		}
		if seen[res.TeamID] {
			continue
		}
		seen[res.TeamID] = true
		if r.driverSlot[res.TeamID] != res.DriverSlot {
			r.driverSlot[res.TeamID] = res.DriverSlot
		}
		r.leadAgent[res.TeamID] = res.AgentID
	}
}
