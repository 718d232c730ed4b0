package matching

import (
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// skillVocabulary is the closed keyword list the heuristic recognises. A skill is found
// when the lowercased text contains it, so "java" is also found inside "javascript".
// Go is listed as "golang" since "go" is a substring of "django" and "google".
var skillVocabulary = []string{
	"python", "java", "javascript", "typescript", "golang", "react", "node", "django",
	"flask", "sql", "aws", "docker", "kubernetes", "git", "linux", "html",
}

var experienceIndicators = []string{"year", "experience", "senior", "junior", "lead", "manager"}

var titlePattern = regexp.MustCompile(`(?i)\b(developer|engineer|analyst|manager|architect)\b`)

// Percentage-scale constants of the heuristic.
const (
	neutralSkills      = 50.0
	experienceFound    = 75.0
	experienceMissing  = 50.0
	titleFound         = 80.0
	titleMissing       = 40.0
	educationUnknown   = 60.0
	overallFloor       = 20.0
	overallCeiling     = 100.0
	skillsWeight       = 0.4
	experienceWeight   = 0.3
	titleWeight        = 0.3
	percentToUnitScale = 100.0
)

// fallbackNamespace seeds the name based candidate ids so they are stable across runs.
var fallbackNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/spigell/cv-ranker/fallback"))

// FallbackScorer is a keyword heuristic. It is pure and never fails.
// Education and responsibilities carry no signal here and get a fixed placeholder.
type FallbackScorer struct{}

// Score rates cvText against jdText.
func (FallbackScorer) Score(jdText, cvText, filename string) MatchResult {
	jd := strings.ToLower(jdText)
	cv := strings.ToLower(cvText)

	jdSkills := findSkills(jd)
	cvSkills := findSkills(cv)
	matched := intersect(jdSkills, cvSkills)

	skills := neutralSkills
	if len(jdSkills) > 0 {
		skills = 100 * float64(len(matched)) / float64(len(jdSkills))
	}

	experience := experienceMissing
	if containsAny(cv, experienceIndicators) {
		experience = experienceFound
	}

	titles := titleTokens(jdText)
	title := titleMissing
	for _, token := range titles {
		if strings.Contains(cv, token) {
			title = titleFound
			break
		}
	}

	overall := skills*skillsWeight + experience*experienceWeight + title*titleWeight
	overall = math.Max(overallFloor, math.Min(overallCeiling, overall))

	return MatchResult{
		CVID:                fallbackID(filename, cvText),
		CVFilename:          filename,
		OverallScore:        overall / percentToUnitScale,
		SkillsScore:         skills / percentToUnitScale,
		ExperienceScore:     experience / percentToUnitScale,
		EducationScore:      educationUnknown / percentToUnitScale,
		TitleScore:          title / percentToUnitScale,
		ResponsibilityScore: educationUnknown / percentToUnitScale,
		MatchDetails: &MatchDetails{
			Source:        SourceFallback,
			JDSkills:      jdSkills,
			CVSkills:      cvSkills,
			MatchedSkills: matched,
			TitleTokens:   titles,
		},
	}
}

func findSkills(lowered string) []string {
	found := make([]string, 0)
	for _, skill := range skillVocabulary {
		if strings.Contains(lowered, skill) {
			found = append(found, skill)
		}
	}
	return found
}

// intersect keeps the order of a.
func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	out := make([]string, 0)
	for _, v := range a {
		if _, ok := set[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func titleTokens(jdText string) []string {
	seen := make(map[string]struct{})
	tokens := make([]string, 0)
	for _, m := range titlePattern.FindAllString(jdText, -1) {
		token := strings.ToLower(m)
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

func fallbackID(filename, cvText string) string {
	return uuid.NewSHA1(fallbackNamespace, []byte(filename+"\x00"+cvText)).String()
}
