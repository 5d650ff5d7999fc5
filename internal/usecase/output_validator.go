package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// OutputValidator ensures the model output follows the expected structure
// and references only supplied candidates.
type OutputValidator struct{}

// NewOutputValidator creates a validator instance (currently stateless).
func NewOutputValidator() OutputValidator {
	return OutputValidator{}
}

// GeneratedResult models the JSON output the format section enforces.
type GeneratedResult struct {
	Message string          `json:"message"`
	Items   []GeneratedItem `json:"items"`
}

// GeneratedItem is one selected asset reference in the model output.
type GeneratedItem struct {
	AssetID string `json:"asset_id"`
	Reason  string `json:"reason"`
}

// Validate parses and checks the JSON output emitted by the model. The
// identifier check is the no-fabrication contract: every item must refer
// to a candidate that was actually supplied, since the model is not
// trusted to honor that structurally.
func (v OutputValidator) Validate(raw string, candidates []Candidate) (*GeneratedResult, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("model response is empty")
	}

	var result GeneratedResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	if strings.TrimSpace(result.Message) == "" {
		return nil, errors.New("missing message in response")
	}

	allowed := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		allowed[cand.AssetID.String()] = struct{}{}
	}

	seen := make(map[string]struct{}, len(result.Items))
	for _, item := range result.Items {
		if item.AssetID == "" {
			return nil, errors.New("item missing asset_id")
		}
		if _, ok := allowed[item.AssetID]; !ok {
			return nil, fmt.Errorf("item references unknown asset %s", item.AssetID)
		}
		if _, dup := seen[item.AssetID]; dup {
			return nil, fmt.Errorf("item references asset %s more than once", item.AssetID)
		}
		seen[item.AssetID] = struct{}{}
	}

	return &result, nil
}
