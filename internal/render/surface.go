package render

import "image/color"

// Surface is a 2D immediate-mode drawing target.
type Surface interface {
	Size() (width, height float64)
	ClearRect(x, y, w, h float64)
	FillRect(x, y, w, h float64, c color.NRGBA)
	StrokeLine(x0, y0, x1, y1, lineWidth float64, c color.NRGBA)
	FillArc(cx, cy, radius float64, c color.NRGBA)
	FillPath(p *Path, c color.NRGBA)
}

// SegmentKind tags a path segment.
type SegmentKind int

const (
	MoveTo SegmentKind = iota
	QuadTo
	Close
)

// Point is a surface coordinate.
type Point struct {
	X, Y float64
}

// Segment is one path instruction. QuadTo uses Points[0] as the control
// point and Points[1] as the end point; MoveTo uses Points[0].
type Segment struct {
	Kind   SegmentKind
	Points [2]Point
}

// Path collects move/quad/close instructions.
type Path struct {
	segs []Segment
}

func (p *Path) MoveTo(x, y float64) {
	p.segs = append(p.segs, Segment{Kind: MoveTo, Points: [2]Point{{x, y}}})
}

func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.segs = append(p.segs, Segment{Kind: QuadTo, Points: [2]Point{{cx, cy}, {x, y}}})
}

func (p *Path) Close() {
	p.segs = append(p.segs, Segment{Kind: Close})
}

// Segments returns the recorded instructions.
func (p *Path) Segments() []Segment { return p.segs }

// Call is one recorded draw operation.
type Call struct {
	Op    string
	Args  []float64
	Color color.NRGBA
}

// Recorder is a Surface that logs every call instead of drawing.
type Recorder struct {
	Width, Height float64
	Calls         []Call
}

// NewRecorder returns a recorder reporting the given size.
func NewRecorder(width, height float64) *Recorder {
	return &Recorder{Width: width, Height: height}
}

func (r *Recorder) Size() (float64, float64) { return r.Width, r.Height }

func (r *Recorder) ClearRect(x, y, w, h float64) {
	r.Calls = append(r.Calls, Call{Op: "clearRect", Args: []float64{x, y, w, h}})
}

func (r *Recorder) FillRect(x, y, w, h float64, c color.NRGBA) {
	r.Calls = append(r.Calls, Call{Op: "fillRect", Args: []float64{x, y, w, h}, Color: c})
}

func (r *Recorder) StrokeLine(x0, y0, x1, y1, lineWidth float64, c color.NRGBA) {
	r.Calls = append(r.Calls, Call{Op: "strokeLine", Args: []float64{x0, y0, x1, y1, lineWidth}, Color: c})
}

func (r *Recorder) FillArc(cx, cy, radius float64, c color.NRGBA) {
	r.Calls = append(r.Calls, Call{Op: "arc", Args: []float64{cx, cy, radius}, Color: c})
}

func (r *Recorder) FillPath(p *Path, c color.NRGBA) {
	var args []float64
	for _, s := range p.Segments() {
		switch s.Kind {
		case MoveTo:
			args = append(args, s.Points[0].X, s.Points[0].Y)
		case QuadTo:
			args = append(args, s.Points[0].X, s.Points[0].Y, s.Points[1].X, s.Points[1].Y)
		}
	}
	r.Calls = append(r.Calls, Call{Op: "fillPath", Args: args, Color: c})
}

// Count returns how many calls used op.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset drops recorded calls.
func (r *Recorder) Reset() { r.Calls = r.Calls[:0] }
