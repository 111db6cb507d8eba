package axstate

import "github.com/Ninot1Quyi/jarvis-sub000/internal/model"

// NormToScreen converts a normalized [0,1000] coordinate to a screen pixel
// offset, rounding to the nearest pixel: round(norm/1000 * extent).
func NormToScreen(norm, extent int) int {
	return int((float64(norm)/1000.0)*float64(extent) + 0.5)
}

// RepeatDetected implements the repetition-detector rule: fires as soon as
// any coordinate from the previous round and any coordinate from the
// current round land within 50 normalized units of each other on both axes.
func RepeatDetected(prev, cur []model.Coordinate) bool {
	if len(prev) == 0 || len(cur) == 0 {
		return false
	}
	for _, p := range prev {
		for _, c := range cur {
			dx := p.X - c.X
			if dx < 0 {
				dx = -dx
			}
			dy := p.Y - c.Y
			if dy < 0 {
				dy = -dy
			}
			if dx <= 50 && dy <= 50 {
				return true
			}
		}
	}
	return false
}
