package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lattice-backend/internal/domain/graph"
)

func TestAnalyzeDegenerateGraphs(t *testing.T) {
	analyzer := NewCentralityAnalyzer()

	for _, g := range []*graph.Graph{nil, graph.New("p"), buildGraph(t, []string{"only"}, nil)} {
		result := analyzer.Analyze(g)
		require.NotNil(t, result)
		assert.Empty(t, result.Degree)
		assert.Empty(t, result.Betweenness)
		assert.Empty(t, result.PageRank)
	}
}

func TestAnalyzeLinearChain(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
		{SourceID: "B", TargetID: "C", Weight: 1.0},
	})

	result := NewCentralityAnalyzer().Analyze(g)

	// Degree normalized by n-1.
	assert.InDelta(t, 0.5, result.Degree["A"], 1e-9)
	assert.InDelta(t, 1.0, result.Degree["B"], 1e-9)
	assert.InDelta(t, 0.5, result.Degree["C"], 1e-9)

	// B sits on the single A-C shortest path.
	assert.InDelta(t, 1.0, result.Betweenness["B"], 1e-9)
	assert.Zero(t, result.Betweenness["A"])
	assert.Zero(t, result.Betweenness["C"])

	// The middle node must carry the highest rank.
	assert.Greater(t, result.PageRank["B"], result.PageRank["A"])
	assert.Greater(t, result.PageRank["B"], result.PageRank["C"])

	assert.Equal(t, "B", result.TopByMetric[MetricDegree][0])
	assert.Equal(t, "B", result.TopByMetric[MetricBetweenness][0])
	assert.Equal(t, "B", result.TopByMetric[MetricPageRank][0])
}

func TestPageRankMassConserved(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C", "D"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
		{SourceID: "B", TargetID: "C", Weight: 1.0},
		// D is disconnected; dangling redistribution keeps its mass in play.
	})

	result := NewCentralityAnalyzer().Analyze(g)

	var sum float64
	for _, v := range result.PageRank {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 0.01)
}

func TestTopNodesTieBreaksAscendingID(t *testing.T) {
	scores := map[string]float64{"c": 0.5, "a": 0.5, "b": 0.7, "d": 0.5}
	assert.Equal(t, []string{"b", "a", "c", "d"}, topNodes(scores, 10))
	assert.Equal(t, []string{"b", "a"}, topNodes(scores, 2))
}

func TestAnalyzeTwoNodeGraph(t *testing.T) {
	g := buildGraph(t, []string{"A", "B"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 1.0},
	})

	result := NewCentralityAnalyzer().Analyze(g)
	assert.InDelta(t, 1.0, result.Degree["A"], 1e-9)
	// Betweenness is defined as zero for graphs too small to have middlemen.
	assert.Zero(t, result.Betweenness["A"])
	assert.Zero(t, result.Betweenness["B"])
}

func TestAnalyzeDeterministic(t *testing.T) {
	g := buildGraph(t, []string{"A", "B", "C", "D", "E"}, []graph.Edge{
		{SourceID: "A", TargetID: "B", Weight: 0.9},
		{SourceID: "B", TargetID: "C", Weight: 0.8},
		{SourceID: "C", TargetID: "D", Weight: 0.7},
		{SourceID: "D", TargetID: "E", Weight: 0.6},
		{SourceID: "A", TargetID: "E", Weight: 0.5},
	})

	analyzer := NewCentralityAnalyzer()
	first := analyzer.Analyze(g)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, analyzer.Analyze(g))
	}
}
