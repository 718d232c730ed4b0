package ranking

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/matching"
)

// SortBy names the score a view is ordered by.
type SortBy string

const (
	SortOverall          SortBy = "overall"
	SortSkills           SortBy = "skills"
	SortResponsibilities SortBy = "responsibilities"
	SortJobTitle         SortBy = "job_title"
	SortExperience       SortBy = "experience"
)

var sortKeys = []SortBy{SortOverall, SortSkills, SortResponsibilities, SortJobTitle, SortExperience}

// ParseSortBy accepts any of the sort keys, case-insensitively. Empty means SortOverall.
func ParseSortBy(s string) (SortBy, error) {
	if strings.TrimSpace(s) == "" {
		return SortOverall, nil
	}
	key := SortBy(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range sortKeys {
		if k == key {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q (expected one of %s)", s, joinKeys())
}

func joinKeys() string {
	keys := make([]string, len(sortKeys))
	for i, k := range sortKeys {
		keys[i] = string(k)
	}
	return strings.Join(keys, ", ")
}

// Options shape the view built by Aggregate.
type Options struct {
	SortBy SortBy
	// MinScore drops candidates whose computed overall score is below it.
	MinScore float64
	// Limit keeps the top candidates only. Non-positive keeps everyone.
	Limit int
}

// Ranked is a scored candidate with its weighted score and position.
type Ranked struct {
	matching.MatchResult
	ComputedOverall float64 `json:"computed_overall"`
	Rank            int     `json:"rank"`
}

// Step describes what one stage did to the candidate list.
type Step struct {
	Name    string `json:"name"`
	Initial int    `json:"initial"`
	Dropped int    `json:"dropped"`
	Left    int    `json:"left"`
}

// View is the ranked outcome of one aggregation.
type View struct {
	Items   []Ranked     `json:"items"`
	Weights WeightVector `json:"weights"`
	SortBy  SortBy       `json:"sort_by"`
	Steps   []Step       `json:"steps"`
}

// stage is one pass over the candidate list.
type stage interface {
	Name() string
	Apply(items []Ranked) []Ranked
}

// Aggregate weights, filters, orders and trims results.
// The weights are normalized on every call.
func Aggregate(results []matching.MatchResult, weights WeightVector, opts Options) (*View, error) {
	by := opts.SortBy
	if by == "" {
		by = SortOverall
	}
	if _, err := ParseSortBy(string(by)); err != nil {
		return nil, err
	}

	w := Normalize(weights)

	items := make([]Ranked, len(results))
	for i, r := range results {
		items[i] = Ranked{MatchResult: r, ComputedOverall: ComputedOverall(r, w)}
	}

	stages := []stage{
		minScoreStage{min: opts.MinScore},
		sortStage{by: by},
		limitStage{limit: opts.Limit},
	}

	steps := make([]Step, 0, len(stages))
	for _, s := range stages {
		initial := len(items)
		items = s.Apply(items)
		steps = append(steps, Step{
			Name:    s.Name(),
			Initial: initial,
			Dropped: initial - len(items),
			Left:    len(items),
		})
	}

	for i := range items {
		items[i].Rank = i + 1
	}

	return &View{Items: items, Weights: w, SortBy: by, Steps: steps}, nil
}

// ComputedOverall is the weighted sum of the four ranked dimensions. w must be normalized.
func ComputedOverall(r matching.MatchResult, w WeightVector) float64 {
	return r.SkillsScore*w.Skills +
		r.ResponsibilityScore*w.Responsibilities +
		r.TitleScore*w.JobTitle +
		r.ExperienceScore*w.Experience
}

// Score returns the value r is ordered by under key.
func (r Ranked) Score(key SortBy) float64 {
	switch key {
	case SortSkills:
		return r.SkillsScore
	case SortResponsibilities:
		return r.ResponsibilityScore
	case SortJobTitle:
		return r.TitleScore
	case SortExperience:
		return r.ExperienceScore
	default:
		return r.ComputedOverall
	}
}

// LogSteps writes one entry per stage.
func (v *View) LogSteps(logger *zap.Logger) {
	if logger == nil {
		return
	}
	for _, s := range v.Steps {
		logger.Info("ranking step",
			zap.String("name", s.Name),
			zap.Int("initial", s.Initial),
			zap.Int("dropped", s.Dropped),
			zap.Int("left", s.Left),
		)
	}
}

type minScoreStage struct {
	min float64
}

func (minScoreStage) Name() string { return "min_score" }

func (s minScoreStage) Apply(items []Ranked) []Ranked {
	kept := items[:0]
	for _, item := range items {
		if item.ComputedOverall >= s.min {
			kept = append(kept, item)
		}
	}
	return kept
}

type sortStage struct {
	by SortBy
}

func (sortStage) Name() string { return "sort" }

func (s sortStage) Apply(items []Ranked) []Ranked {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score(s.by) > items[j].Score(s.by)
	})
	return items
}

type limitStage struct {
	limit int
}

func (limitStage) Name() string { return "limit" }

func (s limitStage) Apply(items []Ranked) []Ranked {
	if s.limit <= 0 || s.limit >= len(items) {
		return items
	}
	return items[:s.limit]
}
