package track

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/circuitlab/racesim/internal/config"
	"github.com/circuitlab/racesim/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

func TestNew_RejectsEmpty(t *testing.T) {
	_, err := New(0, 10)
	assert.ErrorIs(t, err, ErrEmptyMap)
}

func TestIsBorder_OutOfRange(t *testing.T) {
	b, err := New(10, 5)
	require.NoError(t, err)

	for _, p := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 5}} {
		border, in := b.IsBorder(p[0], p[1])
		assert.False(t, border)
		assert.False(t, in, "point %v", p)
	}

	border, in := b.IsBorder(9, 4)
	assert.False(t, border)
	assert.True(t, in)
}

func TestSetBorder(t *testing.T) {
	b, err := New(4, 4)
	require.NoError(t, err)

	require.NoError(t, b.SetBorder(2, 3))
	border, in := b.IsBorder(2, 3)
	assert.True(t, border)
	assert.True(t, in)

	assert.ErrorIs(t, b.SetBorder(4, 0), ErrOutOfRange)
}

func TestOutline(t *testing.T) {
	b, err := New(10, 10)
	require.NoError(t, err)
	b.Outline(2, 2, 7, 6)

	border, _ := b.IsBorder(2, 4)
	assert.True(t, border)
	border, _ = b.IsBorder(5, 6)
	assert.True(t, border)
	border, _ = b.IsBorder(4, 4)
	assert.False(t, border)
}

func TestFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(1, 0, white)
	img.SetNRGBA(2, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 128})

	b, err := FromImage(img, white)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Width())
	assert.Equal(t, 2, b.Height())

	border, _ := b.IsBorder(1, 0)
	assert.True(t, border)
	border, _ = b.IsBorder(2, 1)
	assert.False(t, border, "translucent white is not the border color")
}

func TestLoadPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	img.SetNRGBA(3, 3, white)

	path := filepath.Join(t.TempDir(), "map.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	b, err := LoadPNG(path, white)
	require.NoError(t, err)
	border, in := b.IsBorder(3, 3)
	assert.True(t, border)
	assert.True(t, in)
}

func TestLoadPNG_Missing(t *testing.T) {
	_, err := LoadPNG(filepath.Join(t.TempDir(), "nope.png"), white)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open track map")
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{in: "255,255,255,255", want: white},
		{in: "10, 20, 30", want: color.NRGBA{R: 10, G: 20, B: 30, A: 255}},
		{in: "1,2", wantErr: true},
		{in: "1,2,300", wantErr: true},
		{in: "a,b,c", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadColor)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckpoints(t *testing.T) {
	cps, err := Checkpoints([]config.CheckpointConfig{
		{X: 1500, Y: 336, Radius: 30},
		{X: 360, Y: 380, Radius: 32},
	})
	require.NoError(t, err)
	assert.Equal(t, []core.Checkpoint{
		{Index: 0, X: 1500, Y: 336, Radius: 30},
		{Index: 1, X: 360, Y: 380, Radius: 32},
	}, cps)

	_, err = Checkpoints(nil)
	assert.ErrorIs(t, err, ErrNoCheckpoints)

	_, err = Checkpoints([]config.CheckpointConfig{{X: 1, Y: 1}})
	assert.Error(t, err)
}

func TestLoad_RequiresMapPath(t *testing.T) {
	_, _, err := Load(config.TrackConfig{BorderColor: "255,255,255"})
	assert.Error(t, err)
}
