package terrain

import (
	"math/rand"
	"testing"
)

func testGrid(t *testing.T, seed int64) *Grid {
	t.Helper()
	g, err := Generate(50, 50, Rect{21, 21, 29, 29}, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return g
}

func TestGenerateBorderWalls(t *testing.T) {
	g := testGrid(t, 1)
	for x := 0; x < 50; x++ {
		if g.KindAt(x, 0) != Wall || g.KindAt(x, 49) != Wall {
			t.Fatalf("border cell (%d, edge) not wall", x)
		}
	}
	for y := 0; y < 50; y++ {
		if g.KindAt(0, y) != Wall || g.KindAt(49, y) != Wall {
			t.Fatalf("border cell (edge, %d) not wall", y)
		}
	}
}

func TestGenerateHavenOpen(t *testing.T) {
	g := testGrid(t, 2)
	for y := 21; y <= 29; y++ {
		for x := 21; x <= 29; x++ {
			if g.KindAt(x, y) != Open {
				t.Fatalf("haven cell (%d,%d) = %v, want open", x, y, g.KindAt(x, y))
			}
			if !g.InHaven(x, y) {
				t.Fatalf("haven cell (%d,%d) not reported in haven", x, y)
			}
		}
	}
	if g.InHaven(20, 25) || g.InHaven(25, 30) {
		t.Fatal("cells adjacent to haven reported inside it")
	}
}

func TestGenerateOpenDominates(t *testing.T) {
	g := testGrid(t, 3)
	open := 0
	total := 0
	for y := 1; y < 49; y++ {
		for x := 1; x < 49; x++ {
			total++
			if g.KindAt(x, y) == Open {
				open++
			}
		}
	}
	if float64(open)/float64(total) < 0.80 {
		t.Fatalf("open fraction %d/%d too low", open, total)
	}
}

func TestIsPassable(t *testing.T) {
	g := testGrid(t, 4)
	if g.IsPassable(-1, 5) || g.IsPassable(5, 50) {
		t.Fatal("out of bounds passable")
	}
	if g.IsPassable(0, 0) {
		t.Fatal("border wall passable")
	}
	if !g.IsPassable(25, 25) {
		t.Fatal("haven cell not passable")
	}
	found := false
	for y := 1; y < 49 && !found; y++ {
		for x := 1; x < 49 && !found; x++ {
			switch g.KindAt(x, y) {
			case Water:
				if !g.IsPassable(x, y) {
					t.Fatal("water not passable")
				}
				found = true
			case Mountain:
				if g.IsPassable(x, y) {
					t.Fatal("mountain passable")
				}
			}
		}
	}
}

func TestRandomOpenCell(t *testing.T) {
	g := testGrid(t, 5)
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 100; i++ {
		x, y, ok := g.RandomOpenCell(rng, 0, nil)
		if !ok {
			t.Fatal("no spawn cell found on a mostly-open grid")
		}
		if g.KindAt(x, y) != Open {
			t.Fatalf("spawn cell (%d,%d) is %v", x, y, g.KindAt(x, y))
		}
	}

	// A veto that rejects everything must exhaust the attempt budget.
	if _, _, ok := g.RandomOpenCell(rng, 10, func(int, int) bool { return true }); ok {
		t.Fatal("expected miss when every cell is vetoed")
	}
}

func TestParse(t *testing.T) {
	g, err := Parse([]string{
		"#####",
		"#..^#",
		"#.~.#",
		"#...#",
		"#####",
	}, Rect{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if g.Width() != 5 || g.Height() != 5 {
		t.Fatalf("got %dx%d, want 5x5", g.Width(), g.Height())
	}
	if g.KindAt(2, 2) != Water || g.KindAt(3, 1) != Mountain || g.KindAt(0, 0) != Wall {
		t.Fatal("glyphs not mapped to kinds")
	}

	if _, err := Parse([]string{"###", "#.#", "##"}, Rect{1, 1, 1, 1}); err == nil {
		t.Fatal("ragged rows accepted")
	}
	if _, err := Parse([]string{"###", "#x#", "###"}, Rect{1, 1, 1, 1}); err == nil {
		t.Fatal("unknown glyph accepted")
	}
}

func TestNewOpen(t *testing.T) {
	g, err := NewOpen(10, 8, Rect{3, 3, 5, 5})
	if err != nil {
		t.Fatalf("new open: %v", err)
	}
	for y := 1; y < 7; y++ {
		for x := 1; x < 9; x++ {
			if g.KindAt(x, y) != Open {
				t.Fatalf("interior cell (%d,%d) not open", x, y)
			}
		}
	}
	if g.KindAt(0, 4) != Wall || g.KindAt(9, 4) != Wall {
		t.Fatal("border not walled")
	}
}

func TestGenerateRejectsBadHaven(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := Generate(50, 50, Rect{0, 0, 9, 9}, rng); err == nil {
		t.Fatal("haven touching border accepted")
	}
	if _, err := Generate(2, 2, Rect{1, 1, 1, 1}, rng); err == nil {
		t.Fatal("tiny grid accepted")
	}
}
