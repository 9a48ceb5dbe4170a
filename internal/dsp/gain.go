package dsp

// Gain scales its summed input.
type Gain struct {
	node
	gain float64
}

// NewGain creates a unity gain node.
func (c *Context) NewGain() *Gain {
	g := &Gain{gain: 1}
	c.register(g, &g.node, "gain")
	return g
}

func (g *Gain) Connect(dst Node) { g.connect(g, dst) }
func (g *Gain) Disconnect() { g.disconnect(g) }

// SetGain sets the linear gain; negative values are treated as zero.
func (g *Gain) SetGain(v float64) {
	if v < 0 {
		v = 0
	}
	g.gain = v
}

// Value returns the linear gain.
func (g *Gain) Value() float64 { return g.gain }

func (g *Gain) render(frames int) [][2]float64 {
	in := g.input(frames)
	out := resize(g.out, frames)
	for i := range in {
		out[i][0] = in[i][0] * g.gain
		out[i][1] = in[i][1] * g.gain
	}
	return out
}
