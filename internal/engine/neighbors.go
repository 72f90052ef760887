package engine

// updateNeighbors recomputes the symmetric adjacency relation from scratch:
// two distinct nodes are neighbors iff their distance is at most the
// communication range. O(n²) per call; there is no incremental patching.
func (e *SimulationEngine) updateNeighbors() {
	lists := make(map[int][]int, len(e.nodes))
	for _, n := range e.nodes {
		lists[n.ID()] = nil
	}
	// nodes are ordered by id, so appending i<j keeps both lists sorted
	for i, a := range e.nodes {
		for _, b := range e.nodes[i+1:] {
			if a.Position().DistanceTo(b.Position()) <= e.cfg.CommRange {
				lists[a.ID()] = append(lists[a.ID()], b.ID())
				lists[b.ID()] = append(lists[b.ID()], a.ID())
			}
		}
	}
	for _, n := range e.nodes {
		n.SetNeighbors(lists[n.ID()])
	}
}
