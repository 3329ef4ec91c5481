package retrieval

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smallnest/medrouter/tool"
)

func testCorpus() []Passage {
	return []Passage{
		{
			ID:      "p1",
			Title:   "Understanding blood pressure readings",
			Content: "A blood pressure reading has two numbers: systolic over diastolic, measured in mmHg.",
			Tags:    []string{"blood", "pressure"},
		},
		{
			ID:      "p2",
			Title:   "Preparing for an appointment",
			Content: "Bring a list of current medications and recent measurements to your appointment.",
			Tags:    []string{"appointment"},
		},
		{
			ID:      "p3",
			Title:   "Healthy sleep habits",
			Content: "Adults generally need seven to nine hours of sleep per night.",
			Tags:    []string{"sleep"},
		},
	}
}

func TestStaticRetriever_Retrieve(t *testing.T) {
	t.Parallel()

	retriever := NewStaticRetriever(testCorpus())

	results, err := retriever.Retrieve(context.Background(), "what does a blood pressure reading mean", 0)
	assert.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, "p1", results[0].Passage.ID)
	assert.Greater(t, results[0].Score, 0.0)
	assert.LessOrEqual(t, results[0].Score, 1.0)

	// Unrelated queries return nothing.
	results, err = retriever.Retrieve(context.Background(), "quantum chromodynamics", 0)
	assert.NoError(t, err)
	assert.Empty(t, results)

	// Stop-word-only queries return nothing.
	results, err = retriever.Retrieve(context.Background(), "what is the", 0)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestStaticRetriever_TopK(t *testing.T) {
	t.Parallel()

	retriever := NewStaticRetriever(testCorpus())

	results, err := retriever.Retrieve(context.Background(), "sleep appointment blood pressure", 2)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	// Highest score first.
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestKnowledgeTool(t *testing.T) {
	t.Parallel()

	registry := tool.NewRegistry([]tool.Tool{KnowledgeTool(NewStaticRetriever(testCorpus()))})

	res := registry.Execute(context.Background(), "lookup_knowledge", `{"query":"blood pressure numbers"}`)
	assert.Nil(t, res.Err)

	var payload struct {
		Results []SearchResult `json:"results"`
	}
	assert.NoError(t, json.Unmarshal([]byte(res.Observation()), &payload))
	assert.NotEmpty(t, payload.Results)
	assert.Equal(t, "p1", payload.Results[0].Passage.ID)

	res = registry.Execute(context.Background(), "lookup_knowledge", `{"query":"  "}`)
	assert.NotNil(t, res.Err)
	assert.Equal(t, tool.KindValidation, res.Err.Kind)
}
