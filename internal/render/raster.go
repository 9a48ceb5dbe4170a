package render

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/vector"
)

// Raster is a Surface backed by an RGBA image, rasterised with
// golang.org/x/image/vector.
type Raster struct {
	img        *image.RGBA
	z          *vector.Rasterizer
	background color.NRGBA
	ops        []pathOp
}

// pathOp is one clipped path command, replayed relative to the shape's
// bounding box when it is filled.
type pathOp struct {
	kind opKind
	pts  [2][2]float32
}

type opKind int

const (
	opMove opKind = iota
	opLine
	opQuad
	opClose
)

// NewRaster allocates a width x height raster cleared to background.
func NewRaster(width, height int, background color.NRGBA) *Raster {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	r := &Raster{
		img:        image.NewRGBA(image.Rect(0, 0, width, height)),
		z:          vector.NewRasterizer(width, height),
		background: background,
	}
	r.ClearRect(0, 0, float64(width), float64(height))
	return r
}

// Resize reallocates the pixel buffer when the size changes.
func (r *Raster) Resize(width, height int) {
	b := r.img.Bounds()
	if width < 1 || height < 1 || (b.Dx() == width && b.Dy() == height) {
		return
	}
	r.img = image.NewRGBA(image.Rect(0, 0, width, height))
	r.z.Reset(width, height)
	r.ClearRect(0, 0, float64(width), float64(height))
}

// Image exposes the pixel buffer.
func (r *Raster) Image() *image.RGBA { return r.img }

// EncodePNG writes the current image as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.img)
}

func (r *Raster) Size() (float64, float64) {
	b := r.img.Bounds()
	return float64(b.Dx()), float64(b.Dy())
}

func (r *Raster) ClearRect(x, y, w, h float64) {
	rect := image.Rect(int(math.Floor(x)), int(math.Floor(y)), int(math.Ceil(x+w)), int(math.Ceil(y+h)))
	draw.Draw(r.img, rect.Intersect(r.img.Bounds()), image.NewUniform(r.background), image.Point{}, draw.Src)
}

func (r *Raster) FillRect(x, y, w, h float64, c color.NRGBA) {
	if w <= 0 || h <= 0 {
		return
	}
	r.begin()
	r.moveTo(x, y)
	r.lineTo(x+w, y)
	r.lineTo(x+w, y+h)
	r.lineTo(x, y+h)
	r.closePath()
	r.fill(c)
}

func (r *Raster) StrokeLine(x0, y0, x1, y1, lineWidth float64, c color.NRGBA) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	if lineWidth <= 0 {
		lineWidth = 1
	}
	nx := -dy / length * lineWidth / 2
	ny := dx / length * lineWidth / 2
	r.begin()
	r.moveTo(x0+nx, y0+ny)
	r.lineTo(x1+nx, y1+ny)
	r.lineTo(x1-nx, y1-ny)
	r.lineTo(x0-nx, y0-ny)
	r.closePath()
	r.fill(c)
}

func (r *Raster) FillArc(cx, cy, radius float64, c color.NRGBA) {
	if radius <= 0 {
		return
	}
	const steps = 24
	r.begin()
	r.moveTo(cx+radius, cy)
	for i := 1; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / steps
		r.lineTo(cx+radius*math.Cos(a), cy+radius*math.Sin(a))
	}
	r.closePath()
	r.fill(c)
}

func (r *Raster) FillPath(p *Path, c color.NRGBA) {
	segs := p.Segments()
	if len(segs) == 0 {
		return
	}
	r.begin()
	open := false
	for _, s := range segs {
		switch s.Kind {
		case MoveTo:
			if open {
				r.closePath()
			}
			r.moveTo(s.Points[0].X, s.Points[0].Y)
			open = true
		case QuadTo:
			if !open {
				r.moveTo(s.Points[0].X, s.Points[0].Y)
				open = true
			}
			r.quadTo(s.Points[0].X, s.Points[0].Y, s.Points[1].X, s.Points[1].Y)
		case Close:
			if open {
				r.closePath()
				open = false
			}
		}
	}
	if open {
		r.closePath()
	}
	r.fill(c)
}

// At returns the colour of one pixel.
func (r *Raster) At(x, y int) color.RGBA {
	return r.img.RGBAAt(x, y)
}

func (r *Raster) begin() {
	r.ops = r.ops[:0]
}

// fill rasterises the recorded path over its bounding box only.
func (r *Raster) fill(c color.NRGBA) {
	rect := r.bounds().Intersect(r.img.Bounds())
	if rect.Empty() {
		return
	}
	ox, oy := float32(rect.Min.X), float32(rect.Min.Y)
	r.z.Reset(rect.Dx(), rect.Dy())
	r.z.DrawOp = draw.Over
	for _, op := range r.ops {
		p0, p1 := op.pts[0], op.pts[1]
		switch op.kind {
		case opMove:
			r.z.MoveTo(p0[0]-ox, p0[1]-oy)
		case opLine:
			r.z.LineTo(p0[0]-ox, p0[1]-oy)
		case opQuad:
			r.z.QuadTo(p0[0]-ox, p0[1]-oy, p1[0]-ox, p1[1]-oy)
		case opClose:
			r.z.ClosePath()
		}
	}
	r.z.Draw(r.img, rect, image.NewUniform(c), image.Point{})
}

func (r *Raster) bounds() image.Rectangle {
	if len(r.ops) == 0 {
		return image.Rectangle{}
	}
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for _, op := range r.ops {
		n := 1
		switch op.kind {
		case opClose:
			continue
		case opQuad:
			n = 2
		}
		for _, p := range op.pts[:n] {
			minX, maxX = min(minX, p[0]), max(maxX, p[0])
			minY, maxY = min(minY, p[1]), max(maxY, p[1])
		}
	}
	if minX > maxX {
		return image.Rectangle{}
	}
	return image.Rect(
		int(math.Floor(float64(minX))), int(math.Floor(float64(minY))),
		int(math.Ceil(float64(maxX))), int(math.Ceil(float64(maxY))),
	)
}

func (r *Raster) moveTo(x, y float64) {
	fx, fy := r.clip(x, y)
	r.ops = append(r.ops, pathOp{kind: opMove, pts: [2][2]float32{{fx, fy}}})
}

func (r *Raster) lineTo(x, y float64) {
	fx, fy := r.clip(x, y)
	r.ops = append(r.ops, pathOp{kind: opLine, pts: [2][2]float32{{fx, fy}}})
}

func (r *Raster) quadTo(cx, cy, x, y float64) {
	fcx, fcy := r.clip(cx, cy)
	fx, fy := r.clip(x, y)
	r.ops = append(r.ops, pathOp{kind: opQuad, pts: [2][2]float32{{fcx, fcy}, {fx, fy}}})
}

func (r *Raster) closePath() {
	r.ops = append(r.ops, pathOp{kind: opClose})
}

// clip keeps vertices inside the rasterizer bounds.
func (r *Raster) clip(x, y float64) (float32, float32) {
	w, h := r.Size()
	return float32(clampFloat(x, 0, w)), float32(clampFloat(y, 0, h))
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
