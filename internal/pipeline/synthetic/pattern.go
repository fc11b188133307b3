package synthetic

import (
	"math"

	"github.com/smazurov/mediadevice/internal/delivery"
	"github.com/smazurov/mediadevice/internal/devices"
)

// SMPTE-style colour bars.
var bars = [8][3]float64{
	{235, 235, 235},
	{235, 235, 16},
	{16, 235, 235},
	{16, 235, 16},
	{235, 16, 235},
	{235, 16, 16},
	{16, 16, 235},
	{16, 16, 16},
}

// frameSize returns the delivered frame size for a resolution after
// applying the orientation: portrait orientations yield tall frames and
// landscape orientations yield wide frames.
func frameSize(res devices.Resolution, o devices.Orientation) (int, int) {
	w, h := res.Width, res.Height
	portrait := o == devices.OrientationPortrait || o == devices.OrientationPortraitUpsideDown
	if portrait == (w > h) {
		w, h = h, w
	}
	return w, h
}

// renderParams are the inputs of one rendered frame.
type renderParams struct {
	width, height int
	frame         int64
	settings      devices.CameraSettings
	flash         bool
}

// render draws a zoomed colour bar pattern with a moving sweep line into
// dst, growing it if needed, and returns the pixel slice.
func render(dst []byte, p renderParams) []byte {
	size := p.width * p.height * delivery.BytesPerPixel
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	s := p.settings
	gain := math.Exp2(float64(s.ExposureBias))
	if p.flash {
		gain *= 1.5
	}
	lift := 0.0
	if s.TorchEnabled {
		lift = 40
	}
	zoom := float64(s.ZoomRatio)
	if zoom < 1 {
		zoom = 1
	}

	upsideDown := s.Orientation == devices.OrientationPortraitUpsideDown ||
		s.Orientation == devices.OrientationLandscapeRight
	sweep := int(p.frame*8) % p.width
	cx := float64(p.width) / 2

	row := make([][3]byte, p.width)
	for x := 0; x < p.width; x++ {
		sx := cx + (float64(x)-cx)/zoom
		bar := int(sx * 8 / float64(p.width))
		bar = min(max(bar, 0), 7)
		c := bars[bar]
		if x == sweep {
			c = [3]float64{255, 255, 255}
		}
		for i := range 3 {
			row[x][i] = clampByte(c[i]*gain + lift)
		}
	}

	for y := 0; y < p.height; y++ {
		// Bottom quarter fades to black so orientation is visible.
		fade := 1.0
		if q := p.height * 3 / 4; y >= q {
			fade = 1 - float64(y-q)/float64(p.height-q)
		}
		for x := 0; x < p.width; x++ {
			ox, oy := x, y
			if upsideDown {
				ox, oy = p.width-1-x, p.height-1-y
			}
			i := (oy*p.width + ox) * delivery.BytesPerPixel
			c := row[x]
			dst[i] = byte(float64(c[0]) * fade)
			dst[i+1] = byte(float64(c[1]) * fade)
			dst[i+2] = byte(float64(c[2]) * fade)
			dst[i+3] = 255
		}
	}
	return dst
}

func clampByte(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}
