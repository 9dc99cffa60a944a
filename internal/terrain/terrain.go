// Package terrain owns the world grid. The grid is generated once at startup
// and never mutated afterwards, so reads need no synchronization.
package terrain

import (
	"fmt"
	"math/rand"
)

// Kind is the terrain type of one cell.
type Kind byte

const (
	Open Kind = iota
	Wall
	Water
	Mountain
)

// Symbol returns the single-character map glyph for a terrain kind.
func (k Kind) Symbol() string {
	switch k {
	case Wall:
		return "#"
	case Water:
		return "~"
	case Mountain:
		return "^"
	}
	return "."
}

func (k Kind) String() string {
	switch k {
	case Wall:
		return "wall"
	case Water:
		return "water"
	case Mountain:
		return "mountain"
	}
	return "open"
}

// Rect is an inclusive rectangle in grid coordinates.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// Interior roll thresholds, out of 100. Open must dominate to keep the map
// traversable; these are tunables, not a contract.
const (
	wallPct     = 5
	waterPct    = 3
	mountainPct = 1
)

// spawnAttempts bounds the random search for a free spawn cell.
const spawnAttempts = 500

// Grid is the fixed W×H terrain matrix plus the safe-haven bounds.
type Grid struct {
	width  int
	height int
	cells  []Kind
	haven  Rect
}

// Generate rolls a fresh grid: border cells are walls, safe-haven cells are
// open, every other interior cell is rolled independently.
func Generate(width, height int, haven Rect, rng *rand.Rand) (*Grid, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("grid %dx%d too small", width, height)
	}
	if haven.X1 < 1 || haven.Y1 < 1 || haven.X2 >= width-1 || haven.Y2 >= height-1 {
		return nil, fmt.Errorf("safe haven %+v outside grid interior", haven)
	}
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Kind, width*height),
		haven:  haven,
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.cells[y*width+x] = rollCell(x, y, width, height, haven, rng)
		}
	}
	return g, nil
}

func rollCell(x, y, width, height int, haven Rect, rng *rand.Rand) Kind {
	if x == 0 || y == 0 || x == width-1 || y == height-1 {
		return Wall
	}
	if haven.Contains(x, y) {
		return Open
	}
	roll := rng.Intn(100)
	switch {
	case roll < wallPct:
		return Wall
	case roll < wallPct+waterPct:
		return Water
	case roll < wallPct+waterPct+mountainPct:
		return Mountain
	}
	return Open
}

// Parse builds a grid from glyph rows ('.', '#', '~', '^'), one string per
// row. Fixed maps loaded from disk and test fixtures come through here.
func Parse(rows []string, haven Rect) (*Grid, error) {
	height := len(rows)
	if height < 3 || len(rows[0]) < 3 {
		return nil, fmt.Errorf("map %dx%d too small", len(rows[0]), height)
	}
	width := len(rows[0])
	if haven.X1 < 1 || haven.Y1 < 1 || haven.X2 >= width-1 || haven.Y2 >= height-1 {
		return nil, fmt.Errorf("safe haven %+v outside grid interior", haven)
	}
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Kind, width*height),
		haven:  haven,
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("map row %d has width %d, want %d", y, len(row), width)
		}
		for x := 0; x < width; x++ {
			k, err := kindFromGlyph(row[x])
			if err != nil {
				return nil, fmt.Errorf("map cell (%d,%d): %w", x, y, err)
			}
			g.cells[y*width+x] = k
		}
	}
	return g, nil
}

func kindFromGlyph(b byte) (Kind, error) {
	switch b {
	case '.':
		return Open, nil
	case '#':
		return Wall, nil
	case '~':
		return Water, nil
	case '^':
		return Mountain, nil
	}
	return Open, fmt.Errorf("unknown glyph %q", string(b))
}

// NewOpen builds a grid with wall borders and a fully open interior.
func NewOpen(width, height int, haven Rect) (*Grid, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("grid %dx%d too small", width, height)
	}
	if haven.X1 < 1 || haven.Y1 < 1 || haven.X2 >= width-1 || haven.Y2 >= height-1 {
		return nil, fmt.Errorf("safe haven %+v outside grid interior", haven)
	}
	g := &Grid{
		width:  width,
		height: height,
		cells:  make([]Kind, width*height),
		haven:  haven,
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				g.cells[y*width+x] = Wall
			}
		}
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// Haven returns the safe-haven bounds.
func (g *Grid) Haven() Rect { return g.haven }

// InBounds reports whether (x, y) is on the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.width && y >= 0 && y < g.height
}

// KindAt returns the terrain of a cell. Out-of-bounds cells read as walls.
func (g *Grid) KindAt(x, y int) Kind {
	if !g.InBounds(x, y) {
		return Wall
	}
	return g.cells[y*g.width+x]
}

// IsPassable reports whether an agent may stand on the cell: in bounds and
// open or water.
func (g *Grid) IsPassable(x, y int) bool {
	k := g.KindAt(x, y)
	return g.InBounds(x, y) && (k == Open || k == Water)
}

// InHaven reports whether the cell lies inside the safe haven.
func (g *Grid) InHaven(x, y int) bool {
	return g.haven.Contains(x, y)
}

// RandomOpenCell draws interior cells at random until it finds one that is
// open terrain and not vetoed by occupied. Gives up after a bounded number of
// attempts — callers treat a miss as "no cell found", not an error.
func (g *Grid) RandomOpenCell(rng *rand.Rand, attempts int, occupied func(x, y int) bool) (int, int, bool) {
	if attempts <= 0 {
		attempts = spawnAttempts
	}
	for i := 0; i < attempts; i++ {
		x := 1 + rng.Intn(g.width-2)
		y := 1 + rng.Intn(g.height-2)
		if g.KindAt(x, y) != Open {
			continue
		}
		if occupied != nil && occupied(x, y) {
			continue
		}
		return x, y, true
	}
	return 0, 0, false
}
