package muc

import (
	"encoding/json"
	"fmt"
)

func marshalPayload(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal iq payload: %w", err)
	}
	return data, nil
}

// ParseSurveyResult decodes the payload of an answered survey IQ.
func ParseSurveyResult(iq IQ) (*SurveyResult, error) {
	var result SurveyResult
	if err := json.Unmarshal(iq.Payload, &result); err != nil {
		return nil, fmt.Errorf("parse survey result: %w", err)
	}
	if result.Entry == "" {
		return nil, fmt.Errorf("survey result missing entry id")
	}
	return &result, nil
}
