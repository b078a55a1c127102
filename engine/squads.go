/*
squads.go - Squad builder: destroy-and-recreate grouping of assignments

PURPOSE:
  Whenever a plan's assignment set changes materially, all squads are cleared
  and rebuilt: group assignments by target, order each group by descending
  match score, partition into consecutive chunks no larger than max squad
  size, and materialize one squad per chunk with a sequential label and a
  cohesion score equal to the mean member match score.

  This is a greedy contiguous chunking, not a score-balanced bin-pack: it
  deliberately keeps each squad's members adjacent in score, treating the
  plan's cohesion tolerance as a soft signal rather than a constraint the
  builder enforces.

DETERMINISM:
  Targets are processed in TargetID order and members in (score desc,
  assignment id) order, so rebuilding an unchanged assignment set produces
  an identical partition.

CONCURRENCY:
  Callers run the rebuild inside a single transaction per plan so a reader
  never observes a plan with zero squads mid-rebuild.

SEE ALSO:
  - plan/service.go: Triggers rebuilds on import, auto-pick, and publish
*/
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SQUAD BUILDER
// =============================================================================

// SquadBuild is the result of one rebuild: the squads to create and the
// squad membership per assignment.
type SquadBuild struct {
	Squads     []Squad
	Membership map[AssignmentID]SquadID
}

// BuildSquads partitions the plan's assignments into squads. maxSize <= 0
// degrades to a single squad per target. round tags the squads with the
// rebuild generation.
func BuildSquads(planID PlanID, assignments []Assignment, maxSize, round int, now time.Time) SquadBuild {
	build := SquadBuild{Membership: make(map[AssignmentID]SquadID)}

	byTarget := make(map[TargetID][]Assignment)
	for _, a := range assignments {
		if a.TargetID == "" {
			continue
		}
		byTarget[a.TargetID] = append(byTarget[a.TargetID], a)
	}

	targetIDs := make([]TargetID, 0, len(byTarget))
	for id := range byTarget {
		targetIDs = append(targetIDs, id)
	}
	sort.Slice(targetIDs, func(i, j int) bool { return targetIDs[i] < targetIDs[j] })

	label := 0
	for _, targetID := range targetIDs {
		group := byTarget[targetID]
		sort.Slice(group, func(i, j int) bool {
			if cmp := group[i].MatchScore.Cmp(group[j].MatchScore); cmp != 0 {
				return cmp > 0
			}
			return group[i].ID < group[j].ID
		})

		for start := 0; start < len(group); start += chunkSize(maxSize, len(group)) {
			end := start + chunkSize(maxSize, len(group))
			if end > len(group) {
				end = len(group)
			}
			chunk := group[start:end]

			label++
			squad := Squad{
				ID:            SquadID(uuid.NewString()),
				PlanID:        planID,
				TargetID:      targetID,
				Label:         fmt.Sprintf("squad-%d", label),
				Round:         round,
				CohesionScore: squadCohesion(chunk),
				CreatedAt:     now,
			}
			build.Squads = append(build.Squads, squad)
			for _, member := range chunk {
				build.Membership[member.ID] = squad.ID
			}
		}
	}

	return build
}

func chunkSize(maxSize, groupLen int) int {
	if maxSize <= 0 {
		return groupLen
	}
	return maxSize
}

// squadCohesion is the mean match score of the members.
func squadCohesion(members []Assignment) Score {
	scores := make([]Score, len(members))
	for i, m := range members {
		scores[i] = m.MatchScore
	}
	return MeanScore(scores)
}
