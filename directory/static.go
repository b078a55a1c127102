/*
Package directory provides the in-memory nation directory.

PURPOSE:
  A thread-safe roster of nation snapshots, loaded from a YAML file at
  startup and updatable at runtime through Upsert. It backs development,
  demos, and tests; a deployment against the live game API would implement
  engine.NationDirectory over that API instead.

ROSTER FILE:
  nations:
    - nation_id: 101
      name: "Ironhold"
      alliance_id: 7
      alliance_rank: member
      score: 4200.5
      offensive_wars: 1
      defensive_wars: 0
      projects:
        pirate_economy: true
      last_active_at: "2026-08-27T10:00:00Z"

SEE ALSO:
  - engine/directory.go: The contract this implements
  - cmd/server/main.go: Loads the roster at startup
*/
package directory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/strike-engine/engine"
)

// =============================================================================
// STATIC DIRECTORY
// =============================================================================

type Static struct {
	mu      sync.RWMutex
	nations map[engine.NationID]engine.NationSnapshot
}

var _ engine.NationDirectory = (*Static)(nil)

func NewStatic() *Static {
	return &Static{nations: make(map[engine.NationID]engine.NationSnapshot)}
}

// Nation returns a copy of the snapshot, or nil when unknown.
func (d *Static) Nation(_ context.Context, id engine.NationID) (*engine.NationSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	snap, ok := d.nations[id]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// AllianceMembers returns member snapshots in nation-id order.
func (d *Static) AllianceMembers(_ context.Context, id engine.AllianceID) ([]engine.NationSnapshot, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var members []engine.NationSnapshot
	for _, snap := range d.nations {
		if snap.AllianceID == id {
			members = append(members, snap)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].NationID < members[j].NationID
	})
	return members, nil
}

// Upsert inserts or replaces a snapshot.
func (d *Static) Upsert(snap engine.NationSnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nations[snap.NationID] = snap
}

// Size returns the roster count.
func (d *Static) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nations)
}

// =============================================================================
// YAML ROSTER LOADING
// =============================================================================

type rosterFile struct {
	Nations []rosterNation `yaml:"nations"`
}

type rosterNation struct {
	NationID      int64           `yaml:"nation_id"`
	Name          string          `yaml:"name"`
	AllianceID    int64           `yaml:"alliance_id"`
	AllianceRank  string          `yaml:"alliance_rank"`
	Score         float64         `yaml:"score"`
	OffensiveWars int             `yaml:"offensive_wars"`
	DefensiveWars int             `yaml:"defensive_wars"`
	Projects      map[string]bool `yaml:"projects"`
	LastActiveAt  string          `yaml:"last_active_at"`
}

// LoadRoster parses a YAML roster and returns a populated directory.
func LoadRoster(data []byte) (*Static, error) {
	var file rosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster YAML: %w", err)
	}

	d := NewStatic()
	for i, n := range file.Nations {
		if n.NationID == 0 {
			return nil, fmt.Errorf("roster entry %d: nation_id required", i)
		}
		snap := engine.NationSnapshot{
			NationID:      engine.NationID(n.NationID),
			Name:          n.Name,
			AllianceID:    engine.AllianceID(n.AllianceID),
			AllianceRank:  n.AllianceRank,
			Score:         engine.NewScore(n.Score),
			OffensiveWars: n.OffensiveWars,
			DefensiveWars: n.DefensiveWars,
			Projects:      n.Projects,
		}
		if n.LastActiveAt != "" {
			ts, err := time.Parse(time.RFC3339, n.LastActiveAt)
			if err != nil {
				return nil, fmt.Errorf("roster entry %d: bad last_active_at: %w", i, err)
			}
			snap.LastActiveAt = ts
		}
		d.Upsert(snap)
	}
	return d, nil
}

// LoadRosterFile reads and parses a roster from disk.
func LoadRosterFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}
	return LoadRoster(data)
}
