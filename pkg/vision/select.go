package vision

import (
	"math"
	"slices"

	"github.com/teslashibe/frc-vision/internal/errors"
)

// SelectionPolicy decides which two contours make up the target.
type SelectionPolicy string

const (
	// SelectFirst takes the first two contours in extractor order.
	SelectFirst SelectionPolicy = "first"
	// SelectLargest takes the two largest contours by area.
	SelectLargest SelectionPolicy = "largest"
	// SelectCentral takes the two contours closest to the frame's vertical center line.
	SelectCentral SelectionPolicy = "central"
)

// BoxMode decides which rectangle is reported for the pair.
type BoxMode string

const (
	// BoxLast reports the rectangle of the second selected contour.
	BoxLast BoxMode = "last"
	// BoxUnion reports the rectangle enclosing both contours.
	BoxUnion BoxMode = "union"
)

// Pair is the aggregate of two selected contours.
type Pair struct {
	XAvg float64 // mean of x + w/2
	YAvg float64 // mean of h, used as the target's pixel height
	Box  Contour // reported rectangle, see BoxMode
}

// Selector picks and aggregates the target pair.
type Selector struct {
	Policy     SelectionPolicy
	Box        BoxMode
	FrameWidth int // used by SelectCentral
}

// NewSelector validates the policy and box mode.
func NewSelector(policy SelectionPolicy, box BoxMode, frameWidth int) (*Selector, error) {
	switch policy {
	case SelectFirst, SelectLargest, SelectCentral:
	case "":
		policy = SelectFirst
	default:
		return nil, errors.InvalidConfigf("unknown selection policy %q", policy)
	}
	switch box {
	case BoxLast, BoxUnion:
	case "":
		box = BoxLast
	default:
		return nil, errors.InvalidConfigf("unknown box mode %q", box)
	}
	return &Selector{Policy: policy, Box: box, FrameWidth: frameWidth}, nil
}

// Pick returns at most two contours according to the policy. It never
// modifies the input slice.
func (s *Selector) Pick(contours []Contour) []Contour {
	if len(contours) <= 2 && s.Policy == SelectFirst {
		return contours
	}

	switch s.Policy {
	case SelectLargest:
		sorted := slices.Clone(contours)
		slices.SortStableFunc(sorted, func(a, b Contour) int {
			switch {
			case a.Area > b.Area:
				return -1
			case a.Area < b.Area:
				return 1
			}
			return 0
		})
		return sorted[:min(2, len(sorted))]

	case SelectCentral:
		mid := float64(s.FrameWidth) / 2
		sorted := slices.Clone(contours)
		slices.SortStableFunc(sorted, func(a, b Contour) int {
			da, db := math.Abs(a.CenterX()-mid), math.Abs(b.CenterX()-mid)
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return 0
		})
		return sorted[:min(2, len(sorted))]
	}

	return contours[:2]
}

// Aggregate combines exactly the first two picked contours. It reports false
// when fewer than two are available.
func (s *Selector) Aggregate(picked []Contour) (Pair, bool) {
	if len(picked) < 2 {
		return Pair{}, false
	}
	a, b := picked[0], picked[1]

	box := b
	if s.Box == BoxUnion {
		box = Contour{Rect: a.Rect.Union(b.Rect), Area: a.Area + b.Area}
	}

	return Pair{
		XAvg: (a.CenterX() + b.CenterX()) / 2,
		YAvg: float64(a.Height()+b.Height()) / 2,
		Box:  box,
	}, true
}

// Select is Pick followed by Aggregate.
func (s *Selector) Select(contours []Contour) (Pair, bool) {
	return s.Aggregate(s.Pick(contours))
}
