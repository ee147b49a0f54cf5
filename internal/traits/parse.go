package traits

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseInput decodes a single JSON object into an Input. Unknown keys are
// rejected so a misspelled field cannot silently fall back to its default.
func ParseInput(data []byte) (Input, error) {
	var in Input
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return Input{}, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}

// ParseInputs decodes a batch: a JSON array, a stream of JSON objects (one
// per line or concatenated) or a YAML list.
func ParseInputs(data []byte) ([]Input, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var inputs []Input
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&inputs); err != nil {
			return nil, fmt.Errorf("decode input array: %w", err)
		}
		return inputs, nil
	case '{':
		var inputs []Input
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		for {
			var in Input
			err := dec.Decode(&in)
			if errors.Is(err, io.EOF) {
				return inputs, nil
			}
			if err != nil {
				return nil, fmt.Errorf("decode input %d: %w", len(inputs)+1, err)
			}
			inputs = append(inputs, in)
		}
	default:
		var inputs []Input
		dec := yaml.NewDecoder(bytes.NewReader(trimmed))
		dec.KnownFields(true)
		if err := dec.Decode(&inputs); err != nil {
			return nil, fmt.Errorf("decode yaml inputs: %w", err)
		}
		return inputs, nil
	}
}
