// Package envelope builds the structured request descriptor sent to the
// remote backend. The envelope is the sole payload that crosses the
// boundary: raw client text never leaves the process, only the sanitized
// form wrapped here. Envelopes are built once per remote call, validated
// immediately, then serialized; they are never mutated or reused.
package envelope

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Version tags the envelope schema.
const Version = "offload.v1"

// SensitivityMax is the only sensitivity label a valid envelope may carry.
// Every offloaded request is treated at maximum sensitivity regardless of
// what the classifier found.
const SensitivityMax = "extremely high"

// ResponseMode selects the shape of the remote backend's answer.
type ResponseMode string

const (
	ModeExplain   ResponseMode = "EXPLAIN"
	ModeCompare   ResponseMode = "COMPARE"
	ModeDesign    ResponseMode = "DESIGN"
	ModeChecklist ResponseMode = "CHECKLIST"
)

// NormalizeMode maps an arbitrary mode string onto the closed enum,
// defaulting to EXPLAIN for anything unrecognized.
func NormalizeMode(s string) ResponseMode {
	switch ResponseMode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeCompare:
		return ModeCompare
	case ModeDesign:
		return ModeDesign
	case ModeChecklist:
		return ModeChecklist
	default:
		return ModeExplain
	}
}

// SectionsFor returns the required output sections for a mode, in order.
func SectionsFor(mode ResponseMode) []string {
	switch mode {
	case ModeCompare:
		return []string{"comparison", "recommendation"}
	case ModeChecklist:
		return []string{"steps"}
	case ModeDesign:
		return []string{
			"facts_given",
			"assumptions",
			"recommendations",
			"risks_tradeoffs",
			"tests",
			"next_steps",
		}
	default:
		return []string{"answer"}
	}
}

func deliverableFor(mode ResponseMode) string {
	switch mode {
	case ModeCompare:
		return "compare"
	case ModeChecklist:
		return "checklist"
	case ModeDesign:
		return "design"
	default:
		return "explain"
	}
}

// RedactionPolicy describes how the sanitized text was produced.
type RedactionPolicy struct {
	Mode              string   `json:"mode"`
	RemovedCategories []string `json:"removed_categories"`
	MaskingStyle      string   `json:"masking_style"`
}

// Task describes what is being asked of the remote backend.
type Task struct {
	Objective   string   `json:"objective"`
	Deliverable string   `json:"deliverable"`
	Constraints []string `json:"constraints,omitempty"`
}

// Metadata is fresh per envelope.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// Envelope is the complete remote request descriptor.
type Envelope struct {
	Version        string          `json:"version"`
	Sensitivity    string          `json:"sensitivity"`
	Redaction      RedactionPolicy `json:"redaction"`
	ResponseMode   ResponseMode    `json:"response_mode"`
	Task           Task            `json:"task"`
	SanitizedText  string          `json:"sanitized_text"`
	ContextSummary []string        `json:"context_summary"`
	OutputSections []string        `json:"output_sections"`
	Metadata       Metadata        `json:"metadata"`
}

// SchemaError reports a validation failure. Envelope validation failures
// are fatal for the request; they indicate a programming or configuration
// error and are never retried.
type SchemaError struct {
	Field  string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("envelope schema violation at %s: %s", e.Field, e.Detail)
}

// BuildParams are the inputs to Build. SanitizedText must already have
// passed through the redactor; Build does not redact.
type BuildParams struct {
	SanitizedText     string
	ContextSummary    []string
	ResponseMode      string
	Objective         string
	Constraints       []string
	RemovedCategories []string
}

// Build constructs a fully-populated envelope. Metadata is always fresh:
// a new request id and a current UTC timestamp per call.
func Build(p BuildParams) Envelope {
	mode := NormalizeMode(p.ResponseMode)
	objective := p.Objective
	if objective == "" {
		objective = "answer the sanitized problem statement"
	}
	return Envelope{
		Version:     Version,
		Sensitivity: SensitivityMax,
		Redaction: RedactionPolicy{
			Mode:              "pattern",
			RemovedCategories: p.RemovedCategories,
			MaskingStyle:      "typed_placeholder",
		},
		ResponseMode:   mode,
		Task:           Task{Objective: objective, Deliverable: deliverableFor(mode), Constraints: p.Constraints},
		SanitizedText:  p.SanitizedText,
		ContextSummary: p.ContextSummary,
		OutputSections: SectionsFor(mode),
		Metadata: Metadata{
			RequestID: uuid.New().String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// Validate checks the invariants an envelope must satisfy before it may
// reach the network layer. An envelope that fails here must never be sent.
func Validate(e Envelope) error {
	if e.Version != Version {
		return &SchemaError{Field: "version", Detail: fmt.Sprintf("want %q, got %q", Version, e.Version)}
	}
	if e.Sensitivity != SensitivityMax {
		return &SchemaError{Field: "sensitivity", Detail: fmt.Sprintf("must be %q, got %q", SensitivityMax, e.Sensitivity)}
	}
	if e.Redaction.Mode == "" {
		return &SchemaError{Field: "redaction.mode", Detail: "missing"}
	}
	switch e.ResponseMode {
	case ModeExplain, ModeCompare, ModeDesign, ModeChecklist:
	default:
		return &SchemaError{Field: "response_mode", Detail: fmt.Sprintf("unknown mode %q", e.ResponseMode)}
	}
	if strings.TrimSpace(e.SanitizedText) == "" {
		return &SchemaError{Field: "sanitized_text", Detail: "empty"}
	}
	if len(e.OutputSections) == 0 {
		return &SchemaError{Field: "output_sections", Detail: "empty"}
	}
	if e.Metadata.RequestID == "" {
		return &SchemaError{Field: "metadata.request_id", Detail: "missing"}
	}
	if e.Metadata.Timestamp == "" {
		return &SchemaError{Field: "metadata.timestamp", Detail: "missing"}
	}
	return nil
}
