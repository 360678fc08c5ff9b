package vision

import (
	"image"

	"github.com/teslashibe/frc-vision/pkg/table"
)

// Keys written to the vision sub-table.
const (
	KeyVisionOn     = "isVisionOn"
	KeyTargetFound  = "isTargetFound"
	KeyTargetCount  = "targetCount"
	KeyBoundingRect = "boundingRectxywh"
	KeyTargetOffset = "targetOffset"
	KeyDistance     = "distanceToTarget"
)

// Result is one cycle's detection output. The zero value means no target.
type Result struct {
	Found    bool            `json:"found"`
	Count    int             `json:"count"`
	Box      image.Rectangle `json:"-"`
	Offset   float64         `json:"offset"`
	Distance float64         `json:"distance"`
}

// XYWH returns the box as x, y, width, height.
func (r Result) XYWH() [4]float64 {
	return [4]float64{
		float64(r.Box.Min.X),
		float64(r.Box.Min.Y),
		float64(r.Box.Dx()),
		float64(r.Box.Dy()),
	}
}

// Entries renders the result as the five table entries.
func (r Result) Entries() []table.Entry {
	box := r.XYWH()
	return []table.Entry{
		{Key: KeyTargetFound, Value: table.Boolean(r.Found)},
		{Key: KeyTargetCount, Value: table.Number(float64(r.Count))},
		{Key: KeyBoundingRect, Value: table.NumberArray(box[:])},
		{Key: KeyTargetOffset, Value: table.Number(r.Offset)},
		{Key: KeyDistance, Value: table.Number(r.Distance)},
	}
}

// Publisher writes results to a table. It writes all five keys every call,
// including the defaults when no target was found.
type Publisher struct {
	t table.Table
}

// NewPublisher creates a Publisher on t.
func NewPublisher(t table.Table) *Publisher {
	return &Publisher{t: t}
}

// Publish writes r as one atomic update.
func (p *Publisher) Publish(r Result) {
	p.t.Put(r.Entries()...)
}

// VisionOn reads the gating flag.
func (p *Publisher) VisionOn(def bool) bool {
	return p.t.GetBoolean(KeyVisionOn, def)
}
