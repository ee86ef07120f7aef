package services

import (
	"fmt"
	"sort"

	"lattice-backend/internal/domain/graph"
)

// louvainResolution is the modularity resolution parameter. Fixed at 1.0:
// the engine exposes no tuning knob for it.
const louvainResolution = 1.0

// CommunityDetector partitions a graph into communities with Louvain
// modularity optimization.
type CommunityDetector struct{}

// NewCommunityDetector creates a CommunityDetector.
func NewCommunityDetector() *CommunityDetector {
	return &CommunityDetector{}
}

// Detect runs the standard two-phase Louvain algorithm: local moves until
// no modularity gain, then contraction of communities into super-nodes,
// repeated until a level produces no moves. Nodes are scanned in ascending
// id order so results are deterministic for identical input. The returned
// communities partition the graph's node set exactly; fully disconnected
// nodes become singleton communities.
func (d *CommunityDetector) Detect(g *graph.Graph) []graph.Community {
	if g == nil || g.NodeCount() == 0 {
		return []graph.Community{}
	}

	lg := newLouvainGraph(g)
	for {
		moved := lg.localMoves()
		if !moved {
			break
		}
		lg = lg.contract()
	}

	return d.toCommunities(g, lg.membersByCommunity())
}

// toCommunities converts raw member sets into domain Community values with
// cohesion and dominant type computed from the original graph.
func (d *CommunityDetector) toCommunities(g *graph.Graph, groups [][]string) []graph.Community {
	// Order: size descending, then first member ascending, so ids are stable.
	for _, members := range groups {
		sort.Strings(members)
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i]) != len(groups[j]) {
			return len(groups[i]) > len(groups[j])
		}
		return groups[i][0] < groups[j][0]
	})

	communities := make([]graph.Community, 0, len(groups))
	for i, members := range groups {
		communities = append(communities, graph.Community{
			ID:           fmt.Sprintf("community-%d", i),
			NodeIDs:      members,
			Size:         len(members),
			Cohesion:     intraCohesion(g, members),
			DominantType: dominantType(g, members),
		})
	}
	return communities
}

// intraCohesion is the mean weight of edges whose both endpoints are in the
// community; 0 for communities with fewer than 2 members or no intra edges.
func intraCohesion(g *graph.Graph, members []string) float64 {
	if len(members) < 2 {
		return 0
	}
	inside := make(map[string]bool, len(members))
	for _, id := range members {
		inside[id] = true
	}
	var total float64
	var count int
	for _, e := range g.Edges {
		if inside[e.SourceID] && inside[e.TargetID] {
			total += e.Weight
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// dominantType is the most frequent node type among members, empty on ties.
func dominantType(g *graph.Graph, members []string) graph.NodeType {
	counts := make(map[graph.NodeType]int)
	for _, id := range members {
		if n, ok := g.Nodes[id]; ok {
			counts[n.Type]++
		}
	}
	var best graph.NodeType
	bestCount := 0
	tied := false
	types := []graph.NodeType{
		graph.NodeTypeInsight, graph.NodeTypeEntity,
		graph.NodeTypeChallenge, graph.NodeTypeSynthesis,
	}
	for _, t := range types {
		switch {
		case counts[t] > bestCount:
			best, bestCount, tied = t, counts[t], false
		case counts[t] == bestCount && counts[t] > 0:
			tied = true
		}
	}
	if tied {
		return ""
	}
	return best
}

// louvainGraph is the working representation for one Louvain level. Nodes
// are indices; members maps each super-node back to original node ids.
type louvainGraph struct {
	nodeIDs   []string             // index -> stable sort key (smallest member id)
	neighbors []map[int]float64    // index -> neighbor index -> edge weight
	selfLoop  []float64            // intra-weight accumulated by contraction
	members   [][]string           // index -> original node ids
	community []int                // index -> current community
	totalW    float64              // sum of all edge weights (m)
}

func newLouvainGraph(g *graph.Graph) *louvainGraph {
	ids := g.NodeIDs()
	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	lg := &louvainGraph{
		nodeIDs:   ids,
		neighbors: make([]map[int]float64, len(ids)),
		selfLoop:  make([]float64, len(ids)),
		members:   make([][]string, len(ids)),
		community: make([]int, len(ids)),
	}
	for i, id := range ids {
		lg.neighbors[i] = make(map[int]float64)
		lg.members[i] = []string{id}
		lg.community[i] = i
	}
	for _, e := range g.Edges {
		si, ti := index[e.SourceID], index[e.TargetID]
		if si == ti {
			lg.selfLoop[si] += e.Weight
			lg.totalW += e.Weight
			continue
		}
		lg.neighbors[si][ti] += e.Weight
		lg.neighbors[ti][si] += e.Weight
		lg.totalW += e.Weight
	}
	return lg
}

// weightedDegree is the sum of incident edge weights; self loops count twice.
func (lg *louvainGraph) weightedDegree(i int) float64 {
	d := 2 * lg.selfLoop[i]
	for _, w := range lg.neighbors[i] {
		d += w
	}
	return d
}

// localMoves runs move passes until no node improves modularity. Returns
// whether any move happened at this level.
func (lg *louvainGraph) localMoves() bool {
	if lg.totalW == 0 {
		return false
	}
	m2 := 2 * lg.totalW

	// sumTot per community: total weighted degree of its nodes.
	sumTot := make([]float64, len(lg.nodeIDs))
	for i := range lg.nodeIDs {
		sumTot[lg.community[i]] += lg.weightedDegree(i)
	}

	anyMoved := false
	for {
		movedInPass := false
		for i := range lg.nodeIDs {
			ki := lg.weightedDegree(i)
			current := lg.community[i]

			// Weight from node i to each neighboring community.
			toCommunity := make(map[int]float64)
			for nb, w := range lg.neighbors[i] {
				toCommunity[lg.community[nb]] += w
			}

			// Remove i from its community while evaluating moves.
			sumTot[current] -= ki

			bestCommunity := current
			bestGain := toCommunity[current] - louvainResolution*sumTot[current]*ki/m2

			// Deterministic candidate order: ascending community index.
			candidates := make([]int, 0, len(toCommunity))
			for c := range toCommunity {
				if c != current {
					candidates = append(candidates, c)
				}
			}
			sort.Ints(candidates)
			for _, c := range candidates {
				gain := toCommunity[c] - louvainResolution*sumTot[c]*ki/m2
				if gain > bestGain {
					bestGain = gain
					bestCommunity = c
				}
			}

			sumTot[bestCommunity] += ki
			if bestCommunity != current {
				lg.community[i] = bestCommunity
				movedInPass = true
				anyMoved = true
			}
		}
		if !movedInPass {
			break
		}
	}
	return anyMoved
}

// contract collapses each community into a super-node, aggregating edge
// weights and recording intra-community weight as self loops.
func (lg *louvainGraph) contract() *louvainGraph {
	// Renumber communities densely in ascending old-index order.
	renumber := make(map[int]int)
	for i := range lg.nodeIDs {
		c := lg.community[i]
		if _, ok := renumber[c]; !ok {
			renumber[c] = len(renumber)
		}
	}

	next := &louvainGraph{
		nodeIDs:   make([]string, len(renumber)),
		neighbors: make([]map[int]float64, len(renumber)),
		selfLoop:  make([]float64, len(renumber)),
		members:   make([][]string, len(renumber)),
		community: make([]int, len(renumber)),
		totalW:    lg.totalW,
	}
	for i := range next.neighbors {
		next.neighbors[i] = make(map[int]float64)
		next.community[i] = i
	}

	for i := range lg.nodeIDs {
		c := renumber[lg.community[i]]
		next.members[c] = append(next.members[c], lg.members[i]...)
		next.selfLoop[c] += lg.selfLoop[i]
		if next.nodeIDs[c] == "" || lg.nodeIDs[i] < next.nodeIDs[c] {
			next.nodeIDs[c] = lg.nodeIDs[i]
		}
		for nb, w := range lg.neighbors[i] {
			cn := renumber[lg.community[nb]]
			if cn == c {
				// Each undirected edge appears in both adjacency maps.
				next.selfLoop[c] += w / 2
				continue
			}
			next.neighbors[c][cn] += w
		}
	}
	return next
}

// membersByCommunity groups original node ids by current community.
func (lg *louvainGraph) membersByCommunity() [][]string {
	byCommunity := make(map[int][]string)
	for i := range lg.nodeIDs {
		c := lg.community[i]
		byCommunity[c] = append(byCommunity[c], lg.members[i]...)
	}
	groups := make([][]string, 0, len(byCommunity))
	keys := make([]int, 0, len(byCommunity))
	for c := range byCommunity {
		keys = append(keys, c)
	}
	sort.Ints(keys)
	for _, c := range keys {
		groups = append(groups, byCommunity[c])
	}
	return groups
}
