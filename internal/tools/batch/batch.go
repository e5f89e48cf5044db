package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is the outcome of one item in a batch operation.
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "success" or "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchResult aggregates per-item results with summary counts.
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// ParseStringOrArray accepts the shapes MCP clients send for a multi-value
// argument: a plain string, a JSON array, or a JSON array serialized into a
// string. Empty inputs and empty elements are rejected.
func ParseStringOrArray(param interface{}, paramName string) ([]string, error) {
	if param == nil {
		return nil, fmt.Errorf("%s is required", paramName)
	}

	switch v := param.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		// Some clients serialize array arguments into a string. Anything
		// that does not decode as a JSON string array is treated as one
		// literal value.
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(v), &decoded); err == nil {
				return validateElements(decoded, paramName)
			}
		}
		return []string{v}, nil

	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%s cannot be empty", paramName)
		}
		result := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d] must be a string", paramName, i)
			}
			result = append(result, str)
		}
		return validateElements(result, paramName)

	default:
		return nil, fmt.Errorf("%s must be a string or array of strings", paramName)
	}
}

func validateElements(values []string, paramName string) ([]string, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%s cannot be empty", paramName)
	}
	for i, v := range values {
		if v == "" {
			return nil, fmt.Errorf("%s[%d] cannot be empty", paramName, i)
		}
	}
	return values, nil
}

// FormatResults renders batch results as indented JSON for tool output.
func FormatResults(results []Result) string {
	br := BatchResult{
		Total:   len(results),
		Results: results,
	}

	for _, r := range results {
		if r.Status == "success" {
			br.Successful++
		} else {
			br.Failed++
		}
	}

	jsonBytes, _ := json.MarshalIndent(br, "", "  ")
	return string(jsonBytes)
}

// ProcessBatch runs fn over each ID in order, collecting per-item outcomes.
// A failing item does not stop the rest of the batch.
func ProcessBatch(ids []string, fn func(id string) (string, error)) []Result {
	results := make([]Result, 0, len(ids))

	for _, id := range ids {
		res, err := fn(id)
		if err != nil {
			results = append(results, NewErrorResult(id, err))
		} else {
			results = append(results, NewSuccessResult(id, res))
		}
	}

	return results
}

// NewSuccessResult builds a success entry.
func NewSuccessResult(id, message string) Result {
	return Result{
		ID:     id,
		Status: "success",
		Result: message,
	}
}

// NewErrorResult builds a failure entry.
func NewErrorResult(id string, err error) Result {
	return Result{
		ID:     id,
		Status: "error",
		Error:  err.Error(),
	}
}
