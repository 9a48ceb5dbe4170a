// Package dsp is a small pull-model audio graph: nodes are connected into a
// directed graph and the output device pulls one quantum at a time from the
// destination. Nodes render at most once per quantum, so a node feeding both
// the destination and an analyser is processed once.
//
// Nothing in this package locks. Callers serialise graph mutation and
// rendering themselves.
package dsp

import "sort"

// Node is a processing node owned by a Context.
type Node interface {
	// Label names the node in connection listings.
	Label() string
	SetLabel(label string)
	// Connect adds an edge to dst. Connecting the same pair twice is a no-op.
	Connect(dst Node)
	// Disconnect removes every outgoing edge.
	Disconnect()

	core() *node
	render(frames int) [][2]float64
}

// Edge is one connection in the graph.
type Edge struct {
	From string
	To   string
}

type node struct {
	ctx     *Context
	id      int
	label   string
	inputs  []Node
	outputs []Node

	quantum  uint64
	busy     bool
	out      [][2]float64
	mix      [][2]float64
	released bool
}

func (n *node) core() *node { return n }

func (n *node) Label() string { return n.label }

func (n *node) SetLabel(label string) { n.label = label }

func (n *node) connect(self, dst Node) {
	if dst == nil || n.released {
		return
	}
	d := dst.core()
	if d.ctx != n.ctx || d.released {
		return
	}
	for _, o := range n.outputs {
		if o == dst {
			return
		}
	}
	n.outputs = append(n.outputs, dst)
	d.inputs = append(d.inputs, self)
}

func (n *node) disconnect(self Node) {
	for _, o := range n.outputs {
		o.core().removeInput(self)
	}
	n.outputs = nil
}

func (n *node) removeInput(src Node) {
	for i, in := range n.inputs {
		if in == src {
			n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
			return
		}
	}
}

// input sums every upstream node for the current quantum.
func (n *node) input(frames int) [][2]float64 {
	n.mix = resize(n.mix, frames)
	clear(n.mix)
	for _, in := range n.inputs {
		src := pull(in, frames)
		for i := range n.mix {
			n.mix[i][0] += src[i][0]
			n.mix[i][1] += src[i][1]
		}
	}
	return n.mix
}

func pull(nd Node, frames int) [][2]float64 {
	n := nd.core()
	q := n.ctx.quantum
	if n.quantum == q && len(n.out) == frames {
		return n.out
	}
	if n.busy {
		// cycle: feed silence back into the loop
		n.out = resize(n.out, frames)
		clear(n.out)
		return n.out
	}
	n.busy = true
	out := nd.render(frames)
	n.busy = false
	n.quantum = q
	n.out = out
	return out
}

func resize(buf [][2]float64, frames int) [][2]float64 {
	if cap(buf) < frames {
		return make([][2]float64, frames)
	}
	return buf[:frames]
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From == edges[j].From {
			return edges[i].To < edges[j].To
		}
		return edges[i].From < edges[j].From
	})
}
