// Package track holds the read-only boundary map and checkpoint path.
package track

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"
	"strings"

	// registers the PNG decoder for image.Decode
	_ "image/png"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
)

var (
	ErrEmptyMap      = errors.New("track map has no pixels")
	ErrOutOfRange    = errors.New("coordinate outside track map")
	ErrNoCheckpoints = errors.New("track has no checkpoints")
	ErrBadColor      = errors.New("invalid color")
)

// Map is the boundary lookup the simulation reads from.
// Queries outside the extents report inBounds=false and never fail.
type Map interface {
	Width() int
	Height() int
	IsBorder(x, y int) (border, inBounds bool)
}

// Boundary is a precomputed border mask.
type Boundary struct {
	width  int
	height int
	border []bool
}

// New returns an empty map of the given size.
func New(width, height int) (*Boundary, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrEmptyMap, width, height)
	}
	return &Boundary{
		width:  width,
		height: height,
		border: make([]bool, width*height),
	}, nil
}

// FromImage marks every pixel equal to borderColor as border.
func FromImage(img image.Image, borderColor color.NRGBA) (*Boundary, error) {
	bounds := img.Bounds()
	b, err := New(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			if c == borderColor {
				b.border[y*b.width+x] = true
			}
		}
	}
	return b, nil
}

// LoadPNG decodes the image at path into a Boundary.
func LoadPNG(path string, borderColor color.NRGBA) (*Boundary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track map: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode track map %s: %w", path, err)
	}
	return FromImage(img, borderColor)
}

func (b *Boundary) Width() int  { return b.width }
func (b *Boundary) Height() int { return b.height }

func (b *Boundary) IsBorder(x, y int) (bool, bool) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return false, false
	}
	return b.border[y*b.width+x], true
}

// SetBorder marks one pixel as border.
func (b *Boundary) SetBorder(x, y int) error {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfRange, x, y)
	}
	b.border[y*b.width+x] = true
	return nil
}

// Outline draws the border of the rectangle [x0,x1]x[y0,y1], clipped to the map.
func (b *Boundary) Outline(x0, y0, x1, y1 int) {
	for x := x0; x <= x1; x++ {
		_ = b.SetBorder(x, y0)
		_ = b.SetBorder(x, y1)
	}
	for y := y0; y <= y1; y++ {
		_ = b.SetBorder(x0, y)
		_ = b.SetBorder(x1, y)
	}
}

// ParseColor reads "r,g,b[,a]" with components in 0..255. Alpha defaults to 255.
func ParseColor(s string) (color.NRGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrBadColor, s)
	}
	vals := [4]uint8{0, 0, 0, 255}
	for i, p := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("%w: %q: %v", ErrBadColor, s, err)
		}
		vals[i] = uint8(n)
	}
	return color.NRGBA{R: vals[0], G: vals[1], B: vals[2], A: vals[3]}, nil
}

// Checkpoints converts the configured path into ordered checkpoints.
func Checkpoints(specs []config.CheckpointConfig) ([]core.Checkpoint, error) {
	if len(specs) == 0 {
		return nil, ErrNoCheckpoints
	}
	out := make([]core.Checkpoint, len(specs))
	for i, s := range specs {
		if s.Radius <= 0 {
			return nil, fmt.Errorf("checkpoint %d: radius must be positive, got %v", i, s.Radius)
		}
		out[i] = core.Checkpoint{Index: i, X: s.X, Y: s.Y, Radius: s.Radius}
	}
	return out, nil
}

// Load builds the boundary and checkpoints from the track config section.
func Load(cfg config.TrackConfig) (*Boundary, []core.Checkpoint, error) {
	if cfg.MapPath == "" {
		return nil, nil, errors.New("track.mapPath is not set")
	}
	borderColor, err := ParseColor(cfg.BorderColor)
	if err != nil {
		return nil, nil, err
	}
	m, err := LoadPNG(cfg.MapPath, borderColor)
	if err != nil {
		return nil, nil, err
	}
	cps, err := Checkpoints(cfg.Checkpoints)
	if err != nil {
		return nil, nil, err
	}
	return m, cps, nil
}
