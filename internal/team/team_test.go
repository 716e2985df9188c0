package team

import (
	"errors"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/geom"
	"elfin/internal/workarea"
	"elfin/internal/xdb"
	"elfin/internal/xdb/xdbtest"
)

func line(n int) []r3.Vec {
	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = r3.Vec{X: float64(i) * xdbtest.Spacing}
	}
	return pts
}

func newContext(t *testing.T, db *xdb.Database, area workarea.WorkArea, dev int) *Context {
	t.Helper()
	if area.Name == "" {
		area.Name = "target"
	}
	c, err := NewContext(db, &area, dev, xdbtest.Spacing)
	require.NoError(t, err)
	return c
}

func freeContext(t *testing.T, db *xdb.Database, points []r3.Vec, dev int) *Context {
	return newContext(t, db, workarea.WorkArea{Kind: workarea.KindFree, Points: points}, dev)
}

func requireSound(t *testing.T, tm *Team) {
	t.Helper()
	require.NoError(t, tm.Validate())
	require.True(t, tm.Context().Lengths.Contains(tm.Len()), "length %d outside %+v", tm.Len(), tm.Context().Lengths)
	nodes := tm.Nodes()
	for i := range nodes {
		for j := i + 2; j < len(nodes); j++ {
			d := geom.SqDist(nodes[i].Tx.Center(), nodes[j].Tx.Center())
			r := 2 * xdbtest.Radius
			require.GreaterOrEqual(t, d, r*r, "nodes %d and %d overlap", i, j)
		}
	}
}

func TestDeriveLengths(t *testing.T) {
	l, err := DeriveLengths(50, 10, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, Lengths{Min: 3, Expected: 6, Max: 9}, l)

	l, err = DeriveLengths(50, 10, 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Min)
	assert.Equal(t, 16, l.Max)

	_, err = DeriveLengths(50, 0, 3, 1)
	require.ErrorIs(t, err, ErrBadLengths)
}

func TestSynthesizeStraightChain(t *testing.T) {
	c := freeContext(t, xdbtest.Rods(), line(5), 2)
	tm, err := FromModules(c, "rod", "rod", "rod", "rod", "rod")
	require.NoError(t, err)
	for i, p := range tm.Centers() {
		assert.InDelta(t, float64(i)*xdbtest.Spacing, p.X, 1e-9)
	}
	requireSound(t, tm)

	score, err := c.topo.score(c, tm.Nodes())
	require.NoError(t, err)
	assert.InDelta(t, 0, score, 1e-4)
}

func TestSynthesizeDetectsCollision(t *testing.T) {
	c := freeContext(t, xdbtest.Turns(), line(5), 2)
	square, err := FromModules(c, "turn", "turn", "turn", "turn")
	require.NoError(t, err)
	assert.InDelta(t, xdbtest.Spacing, square.Centers()[3].Y, 1e-9)

	_, err = FromModules(c, "turn", "turn", "turn", "turn", "turn")
	require.Error(t, err)
	var ge *GraphError
	assert.False(t, errors.As(err, &ge), "collision is not a graph error")
}

func TestSynthesizeGraphError(t *testing.T) {
	db := xdbtest.Lattice()
	c := freeContext(t, db, line(4), 2)
	rod, _ := db.ModuleID("rod")
	capID, _ := db.ModuleID("cap")

	_, err := FromNodes(c, []Node{
		{Module: capID, InLink: -1},
		{Module: rod, InLink: db.OutLinks(rod)[0]},
	})
	var ge *GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "cap", ge.From)
	assert.Equal(t, "rod", ge.To)

	_, err = FromNodes(c, []Node{{Module: rod, InLink: -1}, {Module: rod, InLink: 999}})
	require.ErrorAs(t, err, &ge)
}

func TestRandomizeFree(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(6), 3)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		tm := New(c)
		require.True(t, tm.Randomize(rng))
		requireSound(t, tm)
		assert.Equal(t, geom.Identity(), tm.Nodes()[0].Tx)
	}
}

func TestPointMutateKeepsChainSound(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(6), 3)
	rng := rand.New(rand.NewSource(2))
	tm := New(c)
	require.True(t, tm.Randomize(rng))

	changed := 0
	for i := 0; i < 100; i++ {
		before := tm.Checksum()
		ok, err := tm.PointMutate(rng)
		require.NoError(t, err)
		if !ok {
			continue
		}
		requireSound(t, tm)
		if tm.Checksum() != before {
			changed++
		}
	}
	assert.Greater(t, changed, 50)
}

func TestPointMutateReportsFailure(t *testing.T) {
	// rods only link straight on, and min == max leaves no room to insert or delete
	c := freeContext(t, xdbtest.Rods(), line(3), 0)
	tm, err := FromModules(c, "rod", "rod", "rod")
	require.NoError(t, err)
	before := tm.Checksum()

	ok, err := tm.PointMutate(rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, before, tm.Checksum())
}

func TestLimbMutate(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(6), 3)
	rng := rand.New(rand.NewSource(4))
	tm := New(c)
	require.True(t, tm.Randomize(rng))

	succeeded := 0
	for i := 0; i < 100; i++ {
		ok, err := tm.LimbMutate(rng)
		require.NoError(t, err)
		if ok {
			succeeded++
			requireSound(t, tm)
		}
	}
	assert.Greater(t, succeeded, 0)
}

func TestLimbMutateRegrowsFreshHead(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(6), 3)
	rng := rand.New(rand.NewSource(9))
	tm := New(c)
	require.True(t, tm.Randomize(rng))

	for i := 0; i < 100; i++ {
		ok, err := tm.LimbMutate(rng)
		require.NoError(t, err)
		if !ok {
			continue
		}
		assert.Equal(t, -1, tm.Nodes()[0].InLink)
		// lattice modules link each pair once, so names fix the links
		fresh, err := FromModules(c, tm.ModuleNames()...)
		require.NoError(t, err)
		assert.Equal(t, fresh.Checksum(), tm.Checksum())
	}
}

func TestLimbMutateDeadEndsKeepChain(t *testing.T) {
	c := freeContext(t, xdbtest.Fork(), line(3), 1)
	tm, err := FromModules(c, "s1", "mid", "e1")
	require.NoError(t, err)
	sum := tm.Checksum()

	for seed := int64(0); seed < 20; seed++ {
		ok, err := tm.LimbMutate(rand.New(rand.NewSource(seed)))
		require.NoError(t, err)
		assert.False(t, ok, "seed %d", seed)
		assert.Equal(t, []string{"s1", "mid", "e1"}, tm.ModuleNames())
		assert.Equal(t, sum, tm.Checksum())
		requireSound(t, tm)
	}
}

func TestValidateRejectsLinkedHead(t *testing.T) {
	c := freeContext(t, xdbtest.Fork(), line(3), 1)
	tm, err := FromModules(c, "s1", "mid", "e1")
	require.NoError(t, err)

	nodes := slices.Clone(tm.Nodes()[1:])
	require.NotEqual(t, -1, nodes[0].InLink)
	stale := New(c)
	stale.commit(nodes)
	require.Error(t, stale.Validate())

	nodes[0].InLink = -1
	normalize(nodes)
	stale.commit(nodes)
	require.NoError(t, stale.Validate())
}

func TestLimbMutateNeedsSeverableNode(t *testing.T) {
	c := freeContext(t, xdbtest.Rods(), line(4), 2)
	tm, err := FromModules(c, "rod", "rod", "rod", "rod")
	require.NoError(t, err)
	ok, err := tm.LimbMutate(rand.New(rand.NewSource(5)))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 4, tm.Len())
}

func TestCross(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(6), 3)
	rng := rand.New(rand.NewSource(6))

	crossed := 0
	for i := 0; i < 50; i++ {
		mother, father := New(c), New(c)
		require.True(t, mother.Randomize(rng))
		require.True(t, father.Randomize(rng))

		child := mother.Clone()
		ok, err := child.Cross(rng, mother, father)
		require.NoError(t, err)
		if !ok {
			continue
		}
		crossed++
		requireSound(t, child)
		assert.Equal(t, mother.Nodes()[0].Module, child.Nodes()[0].Module)
		assert.Equal(t, father.Nodes()[father.Len()-1].Module, child.Nodes()[child.Len()-1].Module)
	}
	assert.Greater(t, crossed, 0)
}

func TestCrossWithoutSharedModule(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(4), 2)
	mother, err := FromModules(c, "rod", "rod", "rod")
	require.NoError(t, err)
	father, err := FromModules(c, "turn", "turn", "turn")
	require.NoError(t, err)

	child := mother.Clone()
	ok, err := child.Cross(rand.New(rand.NewSource(7)), mother, father)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, mother.Checksum(), child.Checksum())
}

func TestAutoMutateFallsBack(t *testing.T) {
	c := freeContext(t, xdbtest.Rods(), line(3), 0)
	tm, err := FromModules(c, "rod", "rod", "rod")
	require.NoError(t, err)

	// neither point nor limb can change a min == max rod chain
	m, err := tm.AutoMutate(rand.New(rand.NewSource(8)))
	require.NoError(t, err)
	assert.Equal(t, MutationRandomize, m)
	requireSound(t, tm)
}

func TestChecksum(t *testing.T) {
	c := freeContext(t, xdbtest.Lattice(), line(4), 2)
	a, err := FromModules(c, "rod", "turn", "rod")
	require.NoError(t, err)
	b, err := FromModules(c, "rod", "turn", "rod")
	require.NoError(t, err)
	d, err := FromModules(c, "rod", "twist", "rod")
	require.NoError(t, err)

	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.Equal(t, a.Checksum(), a.Clone().Checksum())
	assert.NotEqual(t, a.Checksum(), d.Checksum())
}

func TestEvaluate(t *testing.T) {
	square := []r3.Vec{{}, {X: 10}, {X: 10, Y: 10}, {Y: 10}}
	c := freeContext(t, xdbtest.Lattice(), square, 1)

	tm := New(c)
	assert.True(t, tm.Score() > 1e300)
	require.ErrorIs(t, tm.Evaluate(), ErrEmptyTeam)

	tm, err := FromModules(c, "turn", "turn", "turn", "turn")
	require.NoError(t, err)
	require.NoError(t, tm.Evaluate())
	assert.InDelta(t, 0, tm.Score(), 1e-4)

	straight, err := FromModules(c, "rod", "rod", "rod", "rod")
	require.NoError(t, err)
	require.NoError(t, straight.Evaluate())
	assert.Greater(t, straight.Score(), tm.Score())
}
