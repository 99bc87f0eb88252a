package tuner

import (
	"fmt"

	"github.com/anantzoid/kernel-tuner/internal/expr"
)

// Reserved parameter names the launch geometry is derived from, and the
// define names the grid dimensions are injected under.
const (
	ParamBlockX = "block_size_x"
	ParamBlockY = "block_size_y"
	ParamBlockZ = "block_size_z"

	DefineGridX = "grid_size_x"
	DefineGridY = "grid_size_y"
)

// Default thread block dimensions for axes the configuration does not tune.
const (
	defaultBlockX = 256
	defaultBlockY = 1
	defaultBlockZ = 1
)

// defaultGridDivX divides the x axis when no divisor list is given and the
// configuration tunes block_size_x.
var defaultGridDivX = []string{ParamBlockX}

// ProblemSize is the extent of the data domain the kernel spans. A zero Y is
// treated as 1.
type ProblemSize struct {
	X int64
	Y int64
}

func (p ProblemSize) normalized() ProblemSize {
	if p.Y == 0 {
		p.Y = 1
	}
	return p
}

func (p ProblemSize) validate() error {
	if p.X < 1 {
		return fmt.Errorf("problem size x must be at least 1, got %d", p.X)
	}
	if p.Y < 0 {
		return fmt.Errorf("problem size y must not be negative, got %d", p.Y)
	}
	return nil
}

// Dim3 is a thread block shape.
type Dim3 struct {
	X, Y, Z int64
}

// Count returns the total number of threads in the block.
func (d Dim3) Count() int64 { return d.X * d.Y * d.Z }

func (d Dim3) String() string { return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z) }

// Grid is the number of thread blocks launched along each axis.
type Grid struct {
	X, Y int64
}

func (g Grid) String() string { return fmt.Sprintf("(%d, %d)", g.X, g.Y) }

// Threads derives the thread block dimensions for c. Axes the configuration
// does not tune fall back to the defaults (256, 1, 1).
func Threads(c Config) Dim3 {
	d := Dim3{X: defaultBlockX, Y: defaultBlockY, Z: defaultBlockZ}
	if v, ok := c.Value(ParamBlockX); ok {
		d.X = v
	}
	if v, ok := c.Value(ParamBlockY); ok {
		d.Y = v
	}
	if v, ok := c.Value(ParamBlockZ); ok {
		d.Z = v
	}
	return d
}

// GridFor computes the launch grid for problem p under configuration c. Each
// divisor expression is evaluated against the configuration's parameters and
// the product of a list divides its axis, rounding up. A nil divX selects the
// default ["block_size_x"] when the configuration tunes that parameter; an
// explicit empty list leaves the axis undivided. The y axis has no implicit
// default.
func GridFor(p ProblemSize, c Config, divX, divY []string) (Grid, error) {
	p = p.normalized()
	if divX == nil {
		if _, ok := c.Value(ParamBlockX); ok {
			divX = defaultGridDivX
		}
	}
	gx, err := gridAxis(p.X, c, divX)
	if err != nil {
		return Grid{}, fmt.Errorf("grid x: %w", err)
	}
	gy, err := gridAxis(p.Y, c, divY)
	if err != nil {
		return Grid{}, fmt.Errorf("grid y: %w", err)
	}
	return Grid{X: gx, Y: gy}, nil
}

func gridAxis(size int64, c Config, divs []string) (int64, error) {
	div := int64(1)
	for _, src := range divs {
		v, err := expr.Eval(src, c.vars())
		if err != nil {
			return 0, fmt.Errorf("divisor %q: %w", src, err)
		}
		div *= v
	}
	if div <= 0 {
		return 0, fmt.Errorf("divisor product must be positive, got %d", div)
	}
	return (size + div - 1) / div, nil
}
