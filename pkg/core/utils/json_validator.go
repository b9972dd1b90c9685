package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// DecodeStrict parses standard JSON into a generic value. Numbers are kept as
// json.Number so integer-looking values survive untouched.
func DecodeStrict(input string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(input)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// Trailing garbage after the first value is a parse failure, not a success.
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level JSON value")
	}
	return v, nil
}

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair for intelligent repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - Trailing commas
// - Comments in JSON
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	err := hjson.Unmarshal([]byte(hjsonData), &result)
	if err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}

	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies to extract a JSON value.
// Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
// The returned strategy names which one succeeded ("strict", "repair", "hjson").
func SmartParse(input string) (any, string, error) {
	v, strictErr := DecodeStrict(input)
	if strictErr == nil {
		return v, "strict", nil
	}

	if repaired, err := RepairJSON(input); err == nil {
		if v, err := DecodeStrict(repaired); err == nil && !emptyRepair(input, v) {
			return v, "repair", nil
		}
	}

	if converted, err := ParseHJSON(input); err == nil {
		if v, err := DecodeStrict(converted); err == nil {
			return v, "hjson", nil
		}
	}

	return nil, "", fmt.Errorf("SMART_PARSE_FAILED: %w", strictErr)
}

// emptyRepair catches json-repair turning prose into "" or an empty container,
// which would otherwise look like a successful parse.
func emptyRepair(input string, v any) bool {
	if len(bytes.TrimSpace([]byte(input))) == 0 {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case nil:
		return true
	}
	return false
}
