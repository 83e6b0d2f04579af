package gormstorage

import (
	"errors"
	"fmt"

	"github.com/circuitlab/racesim/internal/model"
)

// ErrNoDatabase is returned by queries in queue-only mode
var ErrNoDatabase = errors.New("no database configured")

// Leaderboard returns the best fitness of every agent across recorded generations.
func (b *Backend) Leaderboard(limit int) ([]model.AgentStanding, error) {
	if b.db == nil {
		return nil, ErrNoDatabase
	}

	var out []model.AgentStanding
	err := b.db.Model(&model.Result{}).
		Select("agent_id, MAX(fitness) AS best_fitness, COUNT(*) AS generations, COUNT(finish_tick) AS finishes").
		Group("agent_id").
		Order("best_fitness DESC, agent_id").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return out, nil
}

// GenerationResults returns the ranked results of one generation.
func (b *Backend) GenerationResults(number int) ([]model.Result, error) {
	if b.db == nil {
		return nil, ErrNoDatabase
	}

	var gen model.Generation
	if err := b.db.Where("number = ?", number).First(&gen).Error; err != nil {
		return nil, fmt.Errorf("generation %d: %w", number, err)
	}

	var results []model.Result
	if err := b.db.Where("generation_id = ?", gen.ID).Order("rank").Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return results, nil
}

// Generation returns the stored row of one generation.
func (b *Backend) Generation(number int) (model.Generation, error) {
	var gen model.Generation
	if b.db == nil {
		return gen, ErrNoDatabase
	}
	if err := b.db.Where("number = ?", number).First(&gen).Error; err != nil {
		return gen, fmt.Errorf("generation %d: %w", number, err)
	}
	return gen, nil
}

// CountStates returns how many vehicle state rows a generation holds.
func (b *Backend) CountStates(number int) (int64, error) {
	gen, err := b.Generation(number)
	if err != nil {
		return 0, err
	}
	var n int64
	err = b.db.Model(&model.VehicleState{}).Where("generation_id = ?", gen.ID).Count(&n).Error
	return n, err
}
