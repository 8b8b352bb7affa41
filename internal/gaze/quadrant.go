package gaze

import (
	"fmt"
	"strconv"
	"strings"
)

// Quadrant is the screen quadrant the subject is looking at.
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

const QuadrantCount = 4

var quadrantNames = [QuadrantCount]string{"top_left", "top_right", "bottom_left", "bottom_right"}

func (q Quadrant) String() string {
	if q < 0 || int(q) >= QuadrantCount {
		return "Quadrant(" + strconv.Itoa(int(q)) + ")"
	}
	return quadrantNames[q]
}

// ParseQuadrant accepts a class index ("0".."3") or a quadrant name.
// Names are case-insensitive and may use '-' instead of '_'.
func ParseQuadrant(s string) (Quadrant, error) {
	var name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	if n, err := strconv.Atoi(name); err == nil {
		if n < 0 || n >= QuadrantCount {
			return 0, fmt.Errorf("quadrant index %d out of range", n)
		}
		return Quadrant(n), nil
	}
	for i, qn := range quadrantNames {
		if qn == name {
			return Quadrant(i), nil
		}
	}
	return 0, fmt.Errorf("unknown quadrant %q", s)
}
