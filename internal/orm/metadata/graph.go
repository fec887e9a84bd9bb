package metadata

import (
	"sort"
	"strings"
)

// DependencyGraph orders entities by the tables their join columns reference
type DependencyGraph struct {
	nodes map[string]*EntityMetadata
	edges map[string][]string // entity -> entities it references
}

// NewDependencyGraph builds the graph from owning single-valued relations.
// Self references are ignored: a table may point at itself.
func NewDependencyGraph(entities map[string]*EntityMetadata) *DependencyGraph {
	graph := &DependencyGraph{
		nodes: entities,
		edges: make(map[string][]string),
	}

	for _, name := range sortedKeys(entities) {
		meta := entities[name]
		for _, rel := range meta.AllRelations() {
			if rel.Kind != ManyToOne && rel.Kind != OneToOne {
				continue
			}
			if !rel.IsOwningSide() || rel.Target == name {
				continue
			}
			target := rel.Target
			if t, ok := resolveName(entities, target); ok {
				target = t
			}
			graph.edges[name] = append(graph.edges[name], target)
		}
	}

	return graph
}

// DetectCycles returns every dependency cycle found
func (g *DependencyGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range sortedKeys(g.nodes) {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns entities with their dependencies first. Ties are
// broken by name so the order is deterministic.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int)
	for node := range g.nodes {
		outDegree[node] = len(g.edges[node])
	}

	reverseEdges := make(map[string][]string)
	for source, targets := range g.edges {
		for _, target := range targets {
			reverseEdges[target] = append(reverseEdges[target], source)
		}
	}

	var queue []string
	for node, degree := range outDegree {
		if degree == 0 {
			queue = append(queue, node)
		}
	}
	sort.Strings(queue)

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		var ready []string
		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(result) != len(g.nodes) {
		// mutually owning foreign keys have no creation order
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, newMetadataError("", "circular dependency detected: "+formatCycles(cycles))
		}
		return nil, newMetadataError("", "circular dependency detected")
	}

	return result, nil
}

// Dependencies returns the direct dependencies of an entity
func (g *DependencyGraph) Dependencies(name string) []string {
	return g.edges[name]
}

func resolveName(entities map[string]*EntityMetadata, name string) (string, bool) {
	if _, ok := entities[name]; ok {
		return name, true
	}
	for key, meta := range entities {
		if meta.QualifiedType == name {
			return key, true
		}
	}
	return "", false
}

func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(strings.Join(cycle, " -> "))
		b.WriteString(" -> ")
		b.WriteString(cycle[0])
	}
	return b.String()
}
