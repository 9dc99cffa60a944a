package world

// Direction deltas for the 8 compass moves. Y grows southward.
var directions = map[string][2]int{
	"north":     {0, -1},
	"south":     {0, 1},
	"east":      {1, 0},
	"west":      {-1, 0},
	"northeast": {1, -1},
	"northwest": {-1, -1},
	"southeast": {1, 1},
	"southwest": {-1, 1},
}

// DirectionDelta resolves a compass name to a unit (dx, dy).
func DirectionDelta(name string) (dx, dy int, ok bool) {
	d, ok := directions[name]
	return d[0], d[1], ok
}

// ChebyshevDist is the box distance between two tiles: max(|dx|, |dy|).
// Vision, broadcast delivery and scout all use this metric.
func ChebyshevDist(x1, y1, x2, y2 int) int {
	dx := x1 - x2
	if dx < 0 {
		dx = -dx
	}
	dy := y1 - y2
	if dy < 0 {
		dy = -dy
	}
	if dy > dx {
		return dy
	}
	return dx
}
