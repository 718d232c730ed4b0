// Package ranking turns scored candidates into an ordered, filtered view.
package ranking

import (
	"fmt"
	"math"
)

// sumTolerance is how far from 1 a vector may be and still count as normalized.
const sumTolerance = 1e-9

// WeightVector holds the importance of each scoring dimension.
// Raw vectors may use any non-negative scale, normalized ones sum to 1.
type WeightVector struct {
	Skills           float64 `mapstructure:"skills" json:"skills"`
	Responsibilities float64 `mapstructure:"responsibilities" json:"responsibilities"`
	JobTitle         float64 `mapstructure:"job-title" json:"job_title"`
	Experience       float64 `mapstructure:"experience" json:"experience"`
}

// DefaultWeights is used whenever a vector carries no usable signal.
var DefaultWeights = WeightVector{Skills: 80, Responsibilities: 15, JobTitle: 2.5, Experience: 2.5}

// Sum adds the components as they are.
func (w WeightVector) Sum() float64 {
	return w.Skills + w.Responsibilities + w.JobTitle + w.Experience
}

func (w WeightVector) String() string {
	return fmt.Sprintf("skills=%.4g responsibilities=%.4g job_title=%.4g experience=%.4g",
		w.Skills, w.Responsibilities, w.JobTitle, w.Experience)
}

// FromPercent reads slider values on the 0-100 scale.
func FromPercent(skills, responsibilities, jobTitle, experience float64) WeightVector {
	return WeightVector{
		Skills:           skills / 100,
		Responsibilities: responsibilities / 100,
		JobTitle:         jobTitle / 100,
		Experience:       experience / 100,
	}
}

// Normalize scales w so that its components sum to 1.
// Negative components count as 0. A vector with no positive component, or with a NaN or
// infinite one, is replaced by DefaultWeights.
// A vector that already sums to 1 is returned unchanged, so Normalize(Normalize(w)) == Normalize(w).
func Normalize(w WeightVector) WeightVector {
	clamped := WeightVector{
		Skills:           math.Max(w.Skills, 0),
		Responsibilities: math.Max(w.Responsibilities, 0),
		JobTitle:         math.Max(w.JobTitle, 0),
		Experience:       math.Max(w.Experience, 0),
	}

	// Scaling by the largest component keeps huge finite weights from overflowing the sum.
	largest := math.Max(math.Max(clamped.Skills, clamped.Responsibilities), math.Max(clamped.JobTitle, clamped.Experience))
	if largest <= 0 || math.IsNaN(largest) || math.IsInf(largest, 0) {
		clamped = DefaultWeights
		largest = DefaultWeights.Skills
	}

	if math.Abs(clamped.Sum()-1) <= sumTolerance {
		return clamped
	}

	scaled := WeightVector{
		Skills:           clamped.Skills / largest,
		Responsibilities: clamped.Responsibilities / largest,
		JobTitle:         clamped.JobTitle / largest,
		Experience:       clamped.Experience / largest,
	}
	total := scaled.Sum()

	return WeightVector{
		Skills:           scaled.Skills / total,
		Responsibilities: scaled.Responsibilities / total,
		JobTitle:         scaled.JobTitle / total,
		Experience:       scaled.Experience / total,
	}
}
