package hnsw

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level          int
	Nodes          int
	Connections    int
	AvgConnections int
}

// Stats summarizes the shape of the graph.
type Stats struct {
	Size       int
	MaxLevel   int
	EntryPoint int // key of the entry node, 0 when empty
	Levels     []LevelStats
}

// Stats returns statistics about the HNSW graph.
func (h *Index) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Stats{Size: len(h.nodes)}
	if len(h.nodes) == 0 {
		return st
	}

	st.MaxLevel = h.maxLevel
	st.EntryPoint = h.nodes[h.entry].key
	st.Levels = make([]LevelStats, h.maxLevel+1)

	for l := range st.Levels {
		st.Levels[l].Level = l
	}
	for _, n := range h.nodes {
		for l, friends := range n.friends {
			st.Levels[l].Nodes++
			st.Levels[l].Connections += len(friends)
		}
	}
	for l := range st.Levels {
		if st.Levels[l].Nodes > 0 {
			st.Levels[l].AvgConnections = st.Levels[l].Connections / st.Levels[l].Nodes
		}
	}

	return st
}
