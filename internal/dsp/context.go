package dsp

// DefaultSampleRate is used when no rate is given.
const DefaultSampleRate = 44_100.0

// Context owns every node and drives rendering.
type Context struct {
	sampleRate float64
	quantum    uint64
	nextID     int
	nodes      []Node
	dest       *Destination
	active     []Node
}

// NewContext creates a graph rendering at sampleRate frames per second.
func NewContext(sampleRate float64) *Context {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	c := &Context{sampleRate: sampleRate}
	c.dest = &Destination{}
	c.register(c.dest, &c.dest.node, "destination")
	return c
}

// SampleRate returns the render rate.
func (c *Context) SampleRate() float64 { return c.sampleRate }

// Destination is the final sink pulled by the output device.
func (c *Context) Destination() *Destination { return c.dest }

// Render pulls len(out) frames through the graph into out.
func (c *Context) Render(out [][2]float64) {
	frames := len(out)
	if frames == 0 {
		return
	}
	c.quantum++
	copy(out, pull(c.dest, frames))
	// side branches (analysers) are processed even when nothing downstream pulls them
	for _, nd := range c.active {
		pull(nd, frames)
	}
}

// Release disconnects nd in both directions and forgets it.
func (c *Context) Release(nd Node) {
	if nd == nil {
		return
	}
	n := nd.core()
	if n.ctx != c || n.released || nd == Node(c.dest) {
		return
	}
	nd.Disconnect()
	for _, in := range append([]Node(nil), n.inputs...) {
		src := in.core()
		for i, o := range src.outputs {
			if o == nd {
				src.outputs = append(src.outputs[:i], src.outputs[i+1:]...)
				break
			}
		}
	}
	n.inputs = nil
	n.released = true
	c.nodes = removeNode(c.nodes, nd)
	c.active = removeNode(c.active, nd)
}

// Connections lists every live edge, sorted by label.
func (c *Context) Connections() []Edge {
	var edges []Edge
	for _, nd := range c.nodes {
		for _, o := range nd.core().outputs {
			edges = append(edges, Edge{From: nd.Label(), To: o.Label()})
		}
	}
	sortEdges(edges)
	return edges
}

// Nodes returns the number of live nodes, destination included.
func (c *Context) Nodes() int { return len(c.nodes) }

func (c *Context) register(nd Node, n *node, label string) {
	c.nextID++
	n.ctx = c
	n.id = c.nextID
	n.label = label
	c.nodes = append(c.nodes, nd)
}

func (c *Context) markActive(nd Node) {
	c.active = append(c.active, nd)
}

func removeNode(list []Node, nd Node) []Node {
	for i, x := range list {
		if x == nd {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Destination sums its inputs.
type Destination struct {
	node
}

func (d *Destination) Connect(dst Node) {}
func (d *Destination) Disconnect() { d.disconnect(d) }

func (d *Destination) render(frames int) [][2]float64 {
	return d.input(frames)
}
