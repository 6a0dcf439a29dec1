package engine

import "github.com/flowmesh/flowmesh/internal/models"

// TopoSort orders node ids with Kahn's algorithm. Zero in-degree
// nodes are seeded in Nodes list order and the queue is FIFO, so the
// order is stable and reproducible. When the graph has a cycle the
// returned order is shorter than the node list.
func TopoSort(nodes models.NodeList, edges models.EdgeList) []string {
	inDegree := make(map[string]int, len(nodes))
	adjacency := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		inDegree[node.ID] = 0
	}

	seen := make(map[string]struct{}, len(edges))
	for _, edge := range edges {
		if _, known := inDegree[edge.Source]; !known {
			continue
		}
		if _, known := inDegree[edge.Target]; !known {
			continue
		}
		key := edge.Source + "\x00" + edge.Target
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		inDegree[edge.Target]++
	}

	queue := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, next := range adjacency[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return order
}
