package workarea

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"elfin/internal/geom"
)

const doc = `
work_areas:
  - name: beta
    type: hinge
    points: [[0, 0, 0], [10, 0, 0], [20, 0, 0]]
    anchors:
      - name: left
        module: rod
        end: end
        tran: [20, 0, 0]
  - name: alpha
    points: [[0, 0, 0], [10, 0, 0], [10, 10, 0]]
`

func TestDecode(t *testing.T) {
	s, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, s.Names())

	alpha, err := s.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, KindFree, alpha.Kind)
	assert.InDelta(t, 20.0, alpha.PathLength(), 1e-9)

	beta, err := s.Get("beta")
	require.NoError(t, err)
	anchor, ok := beta.Primary()
	require.True(t, ok)
	assert.Equal(t, "rod", anchor.Module)
	assert.Equal(t, r3.Vec{X: 20}, anchor.Tx.Center())

	reading := beta.Reading(anchor)
	assert.Equal(t, r3.Vec{X: 20}, reading[0])
	assert.Equal(t, r3.Vec{}, beta.Points[0], "reading must not reorder the area")

	_, err = s.Get("gamma")
	require.ErrorIs(t, err, ErrUnknownArea)
}

func TestDecodeRejects(t *testing.T) {
	cases := map[string]string{
		"empty":        "work_areas: []\n",
		"one point":    "work_areas: [{name: a, points: [[0, 0, 0]]}]\n",
		"short point":  "work_areas: [{name: a, points: [[0, 0], [1, 1]]}]\n",
		"bad type":     "work_areas: [{name: a, type: loop, points: [[0, 0, 0], [1, 0, 0]]}]\n",
		"free anchor":  "work_areas: [{name: a, points: [[0, 0, 0], [1, 0, 0]], anchors: [{name: x, module: rod}]}]\n",
		"hinge bare":   "work_areas: [{name: a, type: hinge, points: [[0, 0, 0], [1, 0, 0]]}]\n",
		"duplicate":    "work_areas: [{name: a, points: [[0, 0, 0], [1, 0, 0]]}, {name: a, points: [[0, 0, 0], [1, 0, 0]]}]\n",
		"same end":     "work_areas: [{name: a, type: double_hinge, points: [[0, 0, 0], [1, 0, 0]], anchors: [{name: x, module: rod}, {name: y, module: rod}]}]\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			require.Error(t, err)
		})
	}
}

func TestDoubleHingeAnchors(t *testing.T) {
	w := WorkArea{
		Name:   "bridge",
		Kind:   KindDoubleHinge,
		Points: []r3.Vec{{}, {X: 10}, {X: 20}},
		Anchors: []Anchor{
			{Name: "far", Module: "rod", End: EndEnd, Tx: geom.Translation(r3.Vec{X: 20})},
			{Name: "near", Module: "rod", End: EndStart, Tx: geom.Identity()},
		},
	}
	s, err := NewSpec(w)
	require.NoError(t, err)
	got, _ := s.Get("bridge")

	p, ok := got.Primary()
	require.True(t, ok)
	assert.Equal(t, "near", p.Name)
	q, ok := got.Secondary()
	require.True(t, ok)
	assert.Equal(t, "far", q.Name)
}

func TestEncodeRoundTrip(t *testing.T) {
	s, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, s))
	again, err := Decode(&buf)
	require.NoError(t, err)

	for _, name := range s.Names() {
		a, _ := s.Get(name)
		b, err := again.Get(name)
		require.NoError(t, err)
		assert.Equal(t, a.Kind, b.Kind)
		assert.Equal(t, a.Points, b.Points)
		require.Len(t, b.Anchors, len(a.Anchors))
		for i := range a.Anchors {
			assert.True(t, a.Anchors[i].Tx.ApproxEqual(b.Anchors[i].Tx, 1e-9))
		}
	}
}
