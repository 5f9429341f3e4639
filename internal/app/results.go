package app

import (
	"sort"

	"github.com/powmonk/qubpiz-sub000/internal/domain"
)

// AggregateResults rolls recorded scores up per markee. Possible is the number
// of questions across the rounds that markee was assigned in; missing marks
// simply do not contribute, they are not treated as zero. Rows come back
// sorted by total descending, then name, for leaderboard display.
func AggregateResults(tmpl domain.Template, assignments []domain.Assignment, scores []domain.Score) []domain.ResultRow {
	byAssignment := make(map[string][]domain.Score)
	for _, score := range scores {
		byAssignment[score.AssignmentID] = append(byAssignment[score.AssignmentID], score)
	}

	rows := make(map[string]*domain.ResultRow)
	for _, a := range assignments {
		row, ok := rows[a.MarkeeName]
		if !ok {
			row = &domain.ResultRow{Markee: a.MarkeeName}
			rows[a.MarkeeName] = row
		}
		if round, ok := tmpl.Round(a.RoundID); ok {
			row.Possible += len(round.Questions)
		}
		for _, score := range byAssignment[a.ID] {
			row.TotalScore += score.Value
		}
		// Surface one marker name for display; with cycle assignments a markee
		// can have a different marker per round.
		if row.MarkedBy == "" {
			row.MarkedBy = a.MarkerName
		}
	}

	out := make([]domain.ResultRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].Markee < out[j].Markee
	})
	return out
}
