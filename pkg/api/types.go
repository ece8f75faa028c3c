package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"

	"aidr-hq/bastion/pkg/store"
	"aidr-hq/bastion/pkg/verdict"
)

// TaskID accepts a JSON string, integer of any size or null.
type TaskID string

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

// UnmarshalJSON implements json.Unmarshaler.
func (t *TaskID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil || !integerPattern.MatchString(n.String()) {
		return fmt.Errorf("task_id must be a string or an integer")
	}
	*t = TaskID(n.String())
	return nil
}

// RunPipelineRequest is the body of POST /api/v1/run_pipeline.
type RunPipelineRequest struct {
	// Prompt is required. An empty prompt is allowed.
	Prompt *string `json:"prompt"`

	TaskID TaskID `json:"task_id,omitempty"`

	// PipelineFlow defaults to "default".
	PipelineFlow string `json:"pipeline_flow,omitempty"`

	// Language of the prompt when it is source code.
	Language string `json:"language,omitempty"`
}

// FlowsResponse is the body of GET /api/v1/flows.
type FlowsResponse struct {
	Flows []verdict.FlowInfo `json:"flows"`
}

// VerdictsResponse is the body of GET /api/v1/verdicts.
type VerdictsResponse struct {
	Verdicts []store.Record `json:"verdicts"`
}
