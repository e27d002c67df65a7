package extract

import (
	"reflect"
	"testing"
)

func unitsForGraph() []*fileUnit {
	return []*fileUnit{
		{Path: "store/store.go", Module: "store", Imports: []string{"fmt", "github.com/org/proj/internal/codec"}},
		{Path: "codec/codec.go", Module: "codec", Imports: []string{"encoding/json"}},
		{Path: "server/server.go", Module: "server", Imports: []string{"github.com/org/proj/internal/store", "github.com/org/proj/internal/codec"}},
	}
}

func TestBuildGraph(t *testing.T) {
	g := BuildGraph(unitsForGraph())

	if !reflect.DeepEqual(g.Nodes, []string{"codec", "server", "store"}) {
		t.Errorf("Nodes = %v", g.Nodes)
	}
	wantEdges := []Edge{
		{From: "server", To: "codec"},
		{From: "server", To: "store"},
		{From: "store", To: "codec"},
	}
	if !reflect.DeepEqual(g.Edges, wantEdges) {
		t.Errorf("Edges = %v, want %v", g.Edges, wantEdges)
	}
	if len(g.Cycles) != 0 {
		t.Errorf("Cycles = %v, want none in a DAG", g.Cycles)
	}
}

func TestBuildGraph_DropsExternalImports(t *testing.T) {
	g := BuildGraph([]*fileUnit{
		{Path: "a/a.go", Module: "a", Imports: []string{"fmt", "github.com/elsewhere/lib"}},
	})
	if len(g.Edges) != 0 {
		t.Errorf("external imports produced edges: %v", g.Edges)
	}
}

func TestBuildGraph_PythonPrefixResolution(t *testing.T) {
	g := BuildGraph([]*fileUnit{
		{Path: "app/views.py", Module: "app.views", Imports: []string{"app.models.user"}},
		{Path: "app/models.py", Module: "app.models", Imports: nil},
	})
	want := []Edge{{From: "app.views", To: "app.models"}}
	if !reflect.DeepEqual(g.Edges, want) {
		t.Errorf("Edges = %v, want %v", g.Edges, want)
	}
}

func TestBuildGraph_RecordsCycles(t *testing.T) {
	g := BuildGraph([]*fileUnit{
		{Path: "a/a.go", Module: "a", Imports: []string{"github.com/org/proj/b"}},
		{Path: "b/b.go", Module: "b", Imports: []string{"github.com/org/proj/a"}},
		{Path: "c/c.go", Module: "c", Imports: nil},
	})

	if len(g.Cycles) != 1 {
		t.Fatalf("Cycles = %v, want one", g.Cycles)
	}
	if !reflect.DeepEqual(g.Cycles[0], []string{"a", "b"}) {
		t.Errorf("cycle = %v, want [a b]", g.Cycles[0])
	}
}

func TestBuildGraph_SelfLoopIsACycle(t *testing.T) {
	g := BuildGraph([]*fileUnit{
		// Two files of the same Python module importing it by name.
		{Path: "pkg/a.py", Module: "pkg", Imports: nil},
		{Path: "other/b.py", Module: "other", Imports: []string{"other.sub"}},
	})
	// "other.sub" resolves to "other" via prefix matching, but self edges
	// are dropped before they reach the graph.
	if len(g.Edges) != 0 {
		t.Errorf("Edges = %v, want self edge dropped", g.Edges)
	}
	if len(g.Cycles) != 0 {
		t.Errorf("Cycles = %v", g.Cycles)
	}
}

func TestFanIn(t *testing.T) {
	g := BuildGraph(unitsForGraph())
	counts := g.FanIn()
	if counts["codec"] != 2 {
		t.Errorf("FanIn[codec] = %d, want 2", counts["codec"])
	}
	if counts["store"] != 1 {
		t.Errorf("FanIn[store] = %d, want 1", counts["store"])
	}
	if counts["server"] != 0 {
		t.Errorf("FanIn[server] = %d, want 0", counts["server"])
	}
}
