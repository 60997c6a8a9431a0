package earthengine

import (
	"sort"

	"github.com/paulmach/orb"
	ee "google.golang.org/api/earthengine/v1"
)

// node is one value in an expression graph; nested invocations are kept inline
type node = ee.ValueNode

// graph is an immutable expression under construction: a root plus named
// values that function bodies refer to
type graph struct {
	root node
	defs map[string]node
}

func constant(v any) node { return node{ConstantValue: v} }

func argRef(name string) node { return node{ArgumentReference: name} }

func invoke(fn string, args map[string]node) node {
	return node{FunctionInvocationValue: &ee.FunctionInvocation{FunctionName: fn, Arguments: args}}
}

func array(vals ...node) node {
	ptrs := make([]*ee.ValueNode, len(vals))
	for i := range vals {
		v := vals[i]
		ptrs[i] = &v
	}
	return node{ArrayValue: &ee.ArrayValue{Values: ptrs}}
}

func strList(ss ...string) node {
	vals := make([]node, len(ss))
	for i, s := range ss {
		vals[i] = constant(s)
	}
	return array(vals...)
}

// with returns a graph sharing defs with g and a new root
func (g graph) with(root node) graph { return graph{root: root, defs: g.defs} }

// expression serializes the graph; the root is stored under "0"
func (g graph) expression() *ee.Expression {
	values := make(map[string]node, len(g.defs)+1)
	keys := make([]string, 0, len(g.defs))
	for k := range g.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values[k] = g.defs[k]
	}
	values[rootKey] = g.root
	return &ee.Expression{Result: rootKey, Values: values}
}

const rootKey = "0"

// geometry encodes the polygon rings as lon/lat coordinate arrays
func geometry(p orb.Polygon) node {
	rings := make([][][]float64, len(p))
	for i, ring := range p {
		pts := make([][]float64, len(ring))
		for j, pt := range ring {
			pts[j] = []float64{pt.Lon(), pt.Lat()}
		}
		rings[i] = pts
	}
	return invoke("GeometryConstructors.Polygon", map[string]node{
		"coordinates": constant(rings),
		"evenOdd":     constant(true),
	})
}

// date wraps an RFC 3339 string as an ee Date
func date(s string) node {
	return invoke("Date", map[string]node{"value": constant(s)})
}
