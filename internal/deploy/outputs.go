// Package deploy reads what the infrastructure deployer hands back.
package deploy

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// Outputs are the values the pipeline needs from `terraform output -json`.
type Outputs struct {
	BucketName string
	Region     string
}

type outputValue struct {
	Sensitive bool            `json:"sensitive"`
	Type      json.RawMessage `json:"type"`
	Value     json.RawMessage `json:"value"`
}

// Parse decodes a `terraform output -json` document. bucket_name is
// required; region is optional.
func Parse(b []byte) (Outputs, error) {
	var raw map[string]outputValue
	if err := json.Unmarshal(b, &raw); err != nil {
		return Outputs{}, fmt.Errorf("decode terraform outputs: %w", err)
	}
	var out Outputs
	var err error
	if out.BucketName, err = stringOutput(raw, "bucket_name"); err != nil {
		return Outputs{}, err
	}
	if out.BucketName == "" {
		return Outputs{}, errors.New("terraform outputs: bucket_name is missing")
	}
	if out.Region, err = stringOutput(raw, "region"); err != nil {
		return Outputs{}, err
	}
	return out, nil
}

func Load(path string) (Outputs, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Outputs{}, err
	}
	return Parse(b)
}

func stringOutput(raw map[string]outputValue, name string) (string, error) {
	v, ok := raw[name]
	if !ok || len(v.Value) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return "", fmt.Errorf("terraform output %s is not a string: %w", name, err)
	}
	return s, nil
}
