package envelope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMode(t *testing.T) {
	tests := []struct {
		in   string
		want ResponseMode
	}{
		{"EXPLAIN", ModeExplain},
		{"explain", ModeExplain},
		{"  Design ", ModeDesign},
		{"COMPARE", ModeCompare},
		{"checklist", ModeChecklist},
		{"", ModeExplain},
		{"summarize", ModeExplain},
		{"DESIGNS", ModeExplain},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeMode(tt.in), "input %q", tt.in)
	}
}

func TestSectionsFor(t *testing.T) {
	assert.Equal(t, []string{"answer"}, SectionsFor(ModeExplain))
	assert.Equal(t, []string{"comparison", "recommendation"}, SectionsFor(ModeCompare))
	assert.Equal(t, []string{"steps"}, SectionsFor(ModeChecklist))
	assert.Equal(t, []string{
		"facts_given",
		"assumptions",
		"recommendations",
		"risks_tradeoffs",
		"tests",
		"next_steps",
	}, SectionsFor(ModeDesign))
}

func TestBuildProducesValidEnvelope(t *testing.T) {
	e := Build(BuildParams{
		SanitizedText:     "how do I rotate [SANITIZED:ACCESS_KEY] safely",
		ContextSummary:    []string{"ops question", "aws credentials"},
		ResponseMode:      "checklist",
		RemovedCategories: []string{"ACCESS_KEY"},
	})

	require.NoError(t, Validate(e))
	assert.Equal(t, Version, e.Version)
	assert.Equal(t, SensitivityMax, e.Sensitivity)
	assert.Equal(t, ModeChecklist, e.ResponseMode)
	assert.Equal(t, "checklist", e.Task.Deliverable)
	assert.Equal(t, []string{"steps"}, e.OutputSections)
	assert.Equal(t, []string{"ACCESS_KEY"}, e.Redaction.RemovedCategories)

	_, err := uuid.Parse(e.Metadata.RequestID)
	assert.NoError(t, err)
	assert.NotEmpty(t, e.Metadata.Timestamp)
}

func TestBuildMetadataIsFresh(t *testing.T) {
	p := BuildParams{SanitizedText: "x"}
	a := Build(p)
	b := Build(p)
	assert.NotEqual(t, a.Metadata.RequestID, b.Metadata.RequestID)
}

func TestValidateRejections(t *testing.T) {
	valid := func() Envelope {
		return Build(BuildParams{SanitizedText: "some question", ResponseMode: "design"})
	}

	tests := []struct {
		name      string
		mutate    func(*Envelope)
		wantField string
	}{
		{"wrong version", func(e *Envelope) { e.Version = "v2" }, "version"},
		{"downgraded sensitivity", func(e *Envelope) { e.Sensitivity = "low" }, "sensitivity"},
		{"missing redaction mode", func(e *Envelope) { e.Redaction.Mode = "" }, "redaction.mode"},
		{"malformed mode", func(e *Envelope) { e.ResponseMode = "FREEFORM" }, "response_mode"},
		{"empty text", func(e *Envelope) { e.SanitizedText = "  " }, "sanitized_text"},
		{"no sections", func(e *Envelope) { e.OutputSections = nil }, "output_sections"},
		{"missing request id", func(e *Envelope) { e.Metadata.RequestID = "" }, "metadata.request_id"},
		{"missing timestamp", func(e *Envelope) { e.Metadata.Timestamp = "" }, "metadata.timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(&e)
			err := Validate(e)
			require.Error(t, err)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.wantField, schemaErr.Field)
		})
	}
}
