package ranking

import (
	"fmt"
	"strings"

	"github.com/spigell/cv-ranker/internal/matching"
)

// ReportHeader lists the columns of Report rows.
var ReportHeader = []string{"rank", "filename", "score", "skills", "responsibilities", "job title", "experience", "source", "matched skills"}

// Report renders the view as table rows in ReportHeader order.
func (v *View) Report() [][]string {
	rows := make([][]string, 0, len(v.Items))
	for _, item := range v.Items {
		source := ""
		matched := ""
		if item.MatchDetails != nil {
			source = string(item.MatchDetails.Source)
			matched = strings.Join(item.MatchDetails.MatchedSkills, ", ")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Rank),
			item.CVFilename,
			percent(item.ComputedOverall),
			percent(item.SkillsScore),
			percent(item.ResponsibilityScore),
			percent(item.TitleScore),
			percent(item.ExperienceScore),
			source,
			matched,
		})
	}
	return rows
}

// Fallbacks counts items produced by the heuristic scorer.
func (v *View) Fallbacks() int {
	n := 0
	for _, item := range v.Items {
		if item.MatchDetails != nil && item.MatchDetails.Source == matching.SourceFallback {
			n++
		}
	}
	return n
}

func percent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}
