package xdb_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"elfin/internal/geom"
	"elfin/internal/xdb"
	"elfin/internal/xdb/xdbtest"
)

func TestBuilderPairsReverseLinks(t *testing.T) {
	db := xdbtest.Lattice()
	require.Equal(t, 4, db.Len())
	require.Equal(t, 24, db.NumLinks())

	for id := 0; id < db.NumLinks(); id++ {
		l, ok := db.Link(id)
		require.True(t, ok)
		rev, ok := db.Link(l.Reverse)
		require.True(t, ok)
		assert.Equal(t, id, rev.Reverse)
		assert.Equal(t, l.Src, rev.Dst)
		assert.Equal(t, l.Dst, rev.Src)
		assert.NotEqual(t, l.Forward(), rev.Forward())
		assert.True(t, l.Tx.Mul(rev.Tx).ApproxEqual(geom.Identity(), geom.Tolerance))
	}
}

func TestCounts(t *testing.T) {
	db := xdbtest.Lattice()

	rod, _ := db.ModuleID("rod")
	capID, _ := db.ModuleID("cap")
	assert.Equal(t, xdb.Counts{NLinks: 3, CLinks: 4}, db.Module(rod).Counts)
	assert.Equal(t, xdb.Counts{NLinks: 3}, db.Module(capID).Counts)

	assert.Len(t, db.OutLinks(rod), 4)
	assert.Len(t, db.InLinks(rod), 3)
	assert.Empty(t, db.OutLinks(capID))
	assert.True(t, db.Linked(rod, capID))
	assert.False(t, db.Linked(capID, rod))

	// cap never heads a chain
	assert.Len(t, db.HeadPool(), 12)
	assert.NotContains(t, db.HeadPool(), capID)
}

func TestLookupOutOfRange(t *testing.T) {
	db := xdbtest.Rods()
	_, ok := db.Lookup(5)
	assert.False(t, ok)
	_, ok = db.Link(-1)
	assert.False(t, ok)
	assert.Equal(t, "<module#5>", db.ModuleName(5))
}

func TestBuilderErrors(t *testing.T) {
	_, err := xdb.NewBuilder().Build()
	require.ErrorIs(t, err, xdb.ErrEmptyDatabase)

	_, err = xdb.NewBuilder().
		AddModule("a", "", 1, "A").
		AddModule("a", "", 1, "A").
		Build()
	require.ErrorIs(t, err, xdb.ErrDuplicateModule)

	_, err = xdb.NewBuilder().
		AddModule("a", "", 1, "A").
		Link("a", "A", "b", "A", geom.Identity()).
		Build()
	require.ErrorIs(t, err, xdb.ErrUnknownModule)

	_, err = xdb.NewBuilder().
		AddModule("a", "", 1, "A").
		Link("a", "B", "a", "A", geom.Identity()).
		Build()
	require.ErrorIs(t, err, xdb.ErrUnknownChain)
}

const sample = `
modules:
  - name: rod
    radius: 4
    chains: [A]
  - name: hub
    type: hub
    radius: 8
    chains: [A, B]
links:
  - src: {module: rod, chain: A}
    dst: {module: rod, chain: A}
    tran: [10, 0, 0]
  - src: {module: rod, chain: A}
    dst: {module: hub, chain: B}
    rot: [[0, -1, 0], [1, 0, 0], [0, 0, 1]]
    tran: [12, 0, 0]
`

func TestDecode(t *testing.T) {
	db, err := xdb.Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Equal(t, 2, db.Len())

	hub, ok := db.ModuleID("hub")
	require.True(t, ok)
	assert.Equal(t, xdb.ModuleHub, db.Module(hub).Type)
	assert.Equal(t, 1, db.Module(hub).Counts.NLinks)

	rod, _ := db.ModuleID("rod")
	ids := db.LinksBetween(rod, hub)
	require.Len(t, ids, 1)
	l, _ := db.Link(ids[0])
	assert.Equal(t, 1, l.Dst.Chain)
	assert.InDelta(t, 12.0, l.Tx.Tran.X, 1e-9)
	assert.InDelta(t, 1.0, l.Tx.Rot[1][0], 1e-9)
}

func TestDecodeRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"no modules":   "modules: []\n",
		"zero radius":  "modules: [{name: a, radius: 0, chains: [A]}]\n",
		"bad type":     "modules: [{name: a, type: ring, radius: 1, chains: [A]}]\n",
		"short tran":   "modules: [{name: a, radius: 1, chains: [A]}]\nlinks: [{src: {module: a, chain: A}, dst: {module: a, chain: A}, tran: [1, 2]}]\n",
		"skewed rot":   "modules: [{name: a, radius: 1, chains: [A]}]\nlinks: [{src: {module: a, chain: A}, dst: {module: a, chain: A}, rot: [[2, 0, 0], [0, 1, 0], [0, 0, 1]]}]\n",
		"mirrored rot": "modules: [{name: a, radius: 1, chains: [A]}]\nlinks: [{src: {module: a, chain: A}, dst: {module: a, chain: A}, rot: [[1, 0, 0], [0, 1, 0], [0, 0, -1]]}]\n",
		"missing link": "modules: [{name: a, radius: 1, chains: [A]}]\nlinks: [{src: {module: a, chain: A}, dst: {module: b, chain: A}}]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := xdb.Decode(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	want := xdbtest.Lattice()
	var buf bytes.Buffer
	require.NoError(t, xdb.Encode(&buf, want))

	path := filepath.Join(t.TempDir(), "lattice.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	got, err := xdb.Load(path)
	require.NoError(t, err)

	require.Equal(t, want.Len(), got.Len())
	require.Equal(t, want.NumLinks(), got.NumLinks())
	for _, m := range want.Modules() {
		id, ok := got.ModuleID(m.Name)
		require.True(t, ok)
		assert.Equal(t, m.Counts, got.Module(id).Counts)
	}
	for id := 0; id < want.NumLinks(); id++ {
		a, _ := want.Link(id)
		b, _ := got.Link(id)
		assert.True(t, a.Tx.ApproxEqual(b.Tx, 1e-9))
	}
}
