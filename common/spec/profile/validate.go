package profile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://primus.local/schema/profile.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft7
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("profile schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(schemaURL)
	})
	return schema, schemaErr
}

// Load reads and parses the profile at path. An empty path yields Default().
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile load: %w", err)
	}
	return Parse(data)
}

// Parse decodes a profile document on top of Default(), checks it against the
// embedded JSON Schema, and then runs the semantic checks in Validate.
func Parse(data []byte) (*Profile, error) {
	if err := checkSchema(data); err != nil {
		return nil, err
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("profile parse: %w", err)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// checkSchema validates the raw document shape. YAML is decoded generically
// and re-encoded as JSON so the validator sees the same value model it would
// for a JSON document.
func checkSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("profile parse: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("profile parse: document is empty")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("profile parse: %w", err)
	}
	var inst any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&inst); err != nil {
		return fmt.Errorf("profile parse: %w", err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("profile schema: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints the schema cannot express. It
// returns the first problem found, or nil.
func Validate(p *Profile) error {
	if p == nil {
		return fmt.Errorf("profile must not be nil")
	}
	if p.APIVersion != SpecVersion {
		return fmt.Errorf("apiVersion must be %q, got %q", SpecVersion, p.APIVersion)
	}
	if strings.TrimSpace(p.Agent.Name) == "" {
		return fmt.Errorf("agent.name must not be empty")
	}
	if err := validateSelector(p.Selector); err != nil {
		return fmt.Errorf("selector: %w", err)
	}
	if err := validateAutonomy(p.Autonomy); err != nil {
		return fmt.Errorf("autonomy: %w", err)
	}
	if p.Summary.Window < p.Summary.Threshold {
		return fmt.Errorf("summary: window (%d) must be at least threshold (%d)", p.Summary.Window, p.Summary.Threshold)
	}
	if p.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm: maxTokens must be positive")
	}
	return nil
}

func validateSelector(s Selector) error {
	if s.K < 0 {
		return fmt.Errorf("k must not be negative")
	}
	if s.HalfLife <= 0 {
		return fmt.Errorf("halfLife must be positive")
	}
	w := s.Weights
	for name, v := range map[string]float64{
		"similarity": w.Similarity,
		"jaccard":    w.Jaccard,
		"recency":    w.Recency,
		"role":       w.Role,
		"length":     w.Length,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("weights.%s must be within [0,1], got %v", name, v)
		}
	}
	if sum := w.Similarity + w.Jaccard + w.Recency + w.Role + w.Length; sum <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}

func validateAutonomy(a Autonomy) error {
	if a.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if a.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	if a.IdleThreshold <= 0 {
		return fmt.Errorf("idleThreshold must be positive")
	}
	switch a.Planner {
	case PlannerSimple, PlannerAdvanced:
	default:
		return fmt.Errorf("planner must be %q or %q, got %q", PlannerSimple, PlannerAdvanced, a.Planner)
	}
	return nil
}
