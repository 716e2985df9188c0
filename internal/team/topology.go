package team

import (
	"encoding/binary"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/geom"
	"elfin/internal/kabsch"
	"elfin/internal/workarea"
)

// topology holds the rules that differ between free chains and chains
// anchored at one or both ends.
type topology interface {
	kind() workarea.Kind
	// minLen is the shortest chain the topology can express.
	minLen() int
	// origin is where synthesis places the head.
	origin(c *Context) geom.Transform
	// accepts checks the fixed ends of a synthesized chain.
	accepts(c *Context, nodes []Node) bool
	// editRange bounds point edits: swaps and deletes touch nodes [lo, hi),
	// inserts go before positions lo through hi.
	editRange(n int) (lo, hi int)
	// seed starts a fresh chain.
	seed(c *Context, rng *rand.Rand) ([]Node, bool)
	// complete grows a kept prefix into a full chain of about target nodes.
	complete(c *Context, rng *rand.Rand, prefix []Node, target int) ([]Node, bool)
	// sides reports which ends of node idx may be cut off and regrown.
	sides(n, idx int) (left, right bool)
	checksum(c *Context, nodes []Node) uint64
	score(c *Context, nodes []Node) (float64, error)
}

type freeTopology struct{}

func (freeTopology) kind() workarea.Kind { return workarea.KindFree }

func (freeTopology) minLen() int { return 1 }

func (freeTopology) origin(*Context) geom.Transform { return geom.Identity() }

func (freeTopology) accepts(_ *Context, nodes []Node) bool { return len(nodes) > 0 }

func (freeTopology) editRange(n int) (int, int) { return 0, n }

func (freeTopology) seed(c *Context, rng *rand.Rand) ([]Node, bool) {
	head, ok := c.pickHead(rng)
	if !ok {
		return nil, false
	}
	return []Node{head}, true
}

func (freeTopology) complete(c *Context, rng *rand.Rand, prefix []Node, target int) ([]Node, bool) {
	nodes := c.growTail(rng, prefix, target)
	return nodes, len(nodes) >= c.Lengths.Min
}

func (freeTopology) sides(n, idx int) (bool, bool) {
	return true, true
}

func (freeTopology) checksum(c *Context, nodes []Node) uint64 {
	d := xxhash.New()
	hashNodes(d, nodes)
	return d.Sum64()
}

func (freeTopology) score(c *Context, nodes []Node) (float64, error) {
	return kabsch.ScorePath(centers(nodes), c.reference)
}

// hingeTopology fixes node 0 to the work area's anchor. Only the tail
// grows or changes.
type hingeTopology struct{}

func (hingeTopology) kind() workarea.Kind { return workarea.KindHinge }

func (hingeTopology) minLen() int { return 2 }

func (hingeTopology) origin(c *Context) geom.Transform { return c.first.node.Tx }

func (hingeTopology) accepts(c *Context, nodes []Node) bool {
	return len(nodes) > 0 && c.first.matches(nodes[0])
}

func (hingeTopology) editRange(n int) (int, int) { return 1, n }

func (hingeTopology) seed(c *Context, _ *rand.Rand) ([]Node, bool) {
	return []Node{c.first.node}, true
}

func (hingeTopology) complete(c *Context, rng *rand.Rand, prefix []Node, target int) ([]Node, bool) {
	nodes := c.growTail(rng, prefix, target)
	return nodes, len(nodes) >= c.Lengths.Min
}

func (hingeTopology) sides(n, idx int) (bool, bool) {
	return false, true
}

// checksum starts from the anchor so two chains leaving different anchors
// never collide, then walks away from it.
func (hingeTopology) checksum(c *Context, nodes []Node) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(c.first.name)
	hashNodes(d, nodes[1:])
	return d.Sum64()
}

// score leaves out the anchor and the reference point it sits on.
func (hingeTopology) score(c *Context, nodes []Node) (float64, error) {
	if len(nodes) < 2 || len(c.reference) < 2 {
		return kabsch.ScorePath(centers(nodes), c.reference)
	}
	return kabsch.ScorePath(centers(nodes[1:]), c.reference[1:])
}

// doubleHingeTopology fixes node 0 to the primary anchor and requires the
// last node to be the secondary anchor's module. Only the interior changes.
type doubleHingeTopology struct{}

func (doubleHingeTopology) kind() workarea.Kind { return workarea.KindDoubleHinge }

func (doubleHingeTopology) minLen() int { return 2 }

func (doubleHingeTopology) origin(c *Context) geom.Transform { return c.first.node.Tx }

func (doubleHingeTopology) accepts(c *Context, nodes []Node) bool {
	return len(nodes) >= 2 && c.first.matches(nodes[0]) && c.last.matches(nodes[len(nodes)-1])
}

func (doubleHingeTopology) editRange(n int) (int, int) { return 1, n - 1 }

func (doubleHingeTopology) seed(c *Context, _ *rand.Rand) ([]Node, bool) {
	return []Node{c.first.node}, true
}

// complete grows the interior one node short of target and then docks the
// far anchor onto it.
func (doubleHingeTopology) complete(c *Context, rng *rand.Rand, prefix []Node, target int) ([]Node, bool) {
	nodes := c.growTail(rng, prefix, target-1)
	return c.closeOnto(rng, nodes, c.last, c.Lengths.Min)
}

func (doubleHingeTopology) sides(n, idx int) (bool, bool) {
	return false, idx < n-1
}

func (doubleHingeTopology) checksum(c *Context, nodes []Node) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(c.first.name)
	hashNodes(d, nodes[1:])
	_, _ = d.WriteString(c.last.name)
	return d.Sum64()
}

// score compares the interior to the interior of the reference and adds
// how far the docked far anchor lands from where the work area wants it.
func (doubleHingeTopology) score(c *Context, nodes []Node) (float64, error) {
	end := nodes[len(nodes)-1].Tx.Center()
	closure := r3.Norm(r3.Sub(end, c.last.node.Tx.Center()))
	inner := nodes[1 : len(nodes)-1]
	if len(inner) == 0 || len(c.reference) < 3 {
		return closure, nil
	}
	s, err := kabsch.ScorePath(centers(inner), c.reference[1:len(c.reference)-1])
	if err != nil {
		return 0, err
	}
	return s + closure, nil
}

func hashNodes(d *xxhash.Digest, nodes []Node) {
	var buf [16]byte
	for _, n := range nodes {
		binary.LittleEndian.PutUint32(buf[0:], uint32(n.Module))
		binary.LittleEndian.PutUint32(buf[4:], uint32(n.Chain))
		binary.LittleEndian.PutUint64(buf[8:], uint64(int64(n.InLink)))
		_, _ = d.Write(buf[:])
	}
}
