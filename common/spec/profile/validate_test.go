package profile_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/Primus/common/spec/profile"
)

const minimalValid = `
apiVersion: primus/v1
`

const fullValid = `
apiVersion: primus/v1
agent:
  name: Aoi
selector:
  k: 3
  threshold: 0.2
  halfLife: 12h
  candidates: 100
  debug: true
  weights:
    similarity: 0.6
    jaccard: 0.1
    recency: 0.2
    role: 0.05
    length: 0.05
  roles:
    SUMMARY: 0.9
    USER: 0.6
autonomy:
  enabled: false
  interval: 2m
  cooldown: 45s
  idleThreshold: 10m
  initialBudget: 4
  planner: simple
summary:
  threshold: 10
  window: 40
  maxChars: 200
  sleepMinTurns: 30
llm:
  maxTokens: 120
  requestsPerMinute: 6
`

func TestParse_MinimalValidUsesDefaults(t *testing.T) {
	p, err := profile.Parse([]byte(minimalValid))
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	def := profile.Default()
	if p.Agent.Name != "Primus" {
		t.Errorf("agent.name: got %q, want %q", p.Agent.Name, "Primus")
	}
	if p.Selector.Weights != def.Selector.Weights {
		t.Errorf("weights: got %+v, want %+v", p.Selector.Weights, def.Selector.Weights)
	}
	if p.Autonomy.Interval != time.Minute || p.Autonomy.Cooldown != 30*time.Second {
		t.Errorf("autonomy pacing: got %v/%v", p.Autonomy.Interval, p.Autonomy.Cooldown)
	}
}

func TestParse_FullValid(t *testing.T) {
	p, err := profile.Parse([]byte(fullValid))
	if err != nil {
		t.Fatalf("Parse: unexpected error: %v", err)
	}
	if p.Agent.Name != "Aoi" {
		t.Errorf("agent.name: got %q", p.Agent.Name)
	}
	if p.Selector.HalfLife != 12*time.Hour {
		t.Errorf("halfLife: got %v, want 12h", p.Selector.HalfLife)
	}
	if p.Selector.Roles["SUMMARY"] != 0.9 {
		t.Errorf("roles.SUMMARY: got %v", p.Selector.Roles["SUMMARY"])
	}
	if p.Autonomy.Planner != profile.PlannerSimple || p.Autonomy.Enabled {
		t.Errorf("autonomy: got %+v", p.Autonomy)
	}
	if p.LLM.MaxTokens != 120 {
		t.Errorf("llm.maxTokens: got %d", p.LLM.MaxTokens)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "wrong api version",
			doc:     "apiVersion: primus/v2\n",
			wantErr: "apiVersion",
		},
		{
			name:    "missing api version",
			doc:     "agent:\n  name: x\n",
			wantErr: "profile schema",
		},
		{
			name:    "unknown field",
			doc:     "apiVersion: primus/v1\nselector:\n  topK: 3\n",
			wantErr: "profile schema",
		},
		{
			name:    "weight above one",
			doc:     "apiVersion: primus/v1\nselector:\n  weights:\n    similarity: 1.5\n",
			wantErr: "profile schema",
		},
		{
			name:    "bad duration",
			doc:     "apiVersion: primus/v1\nautonomy:\n  interval: soon\n",
			wantErr: "profile schema",
		},
		{
			name:    "unknown planner",
			doc:     "apiVersion: primus/v1\nautonomy:\n  planner: clever\n",
			wantErr: "profile schema",
		},
		{
			name:    "window below threshold",
			doc:     "apiVersion: primus/v1\nsummary:\n  threshold: 50\n  window: 20\n",
			wantErr: "summary",
		},
		{
			name:    "all weights zero",
			doc:     "apiVersion: primus/v1\nselector:\n  weights: {similarity: 0, jaccard: 0, recency: 0, role: 0, length: 0}\n",
			wantErr: "weights",
		},
		{
			name:    "invalid yaml",
			doc:     "apiVersion: [primus\n",
			wantErr: "profile parse",
		},
		{
			name:    "empty document",
			doc:     "",
			wantErr: "empty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := profile.Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	p, err := profile.Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if p.APIVersion != profile.SpecVersion {
		t.Errorf("default apiVersion: got %q", p.APIVersion)
	}

	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(fullValid), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	p, err = profile.Load(path)
	if err != nil {
		t.Fatalf("Load(%s): %v", path, err)
	}
	if p.Selector.K != 3 {
		t.Errorf("selector.k: got %d, want 3", p.Selector.K)
	}

	if _, err := profile.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_Nil(t *testing.T) {
	if err := profile.Validate(nil); err == nil {
		t.Error("expected error for nil profile")
	}
}

func TestParse_SchemaSeesNumbers(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "integer k", doc: "apiVersion: primus/v1\nselector:\n  k: 7\n"},
		{name: "fractional weight", doc: "apiVersion: primus/v1\nselector:\n  weights:\n    similarity: 0.35\n"},
		{name: "fractional k", doc: "apiVersion: primus/v1\nselector:\n  k: 2.5\n", wantErr: true},
		{name: "negative budget", doc: "apiVersion: primus/v1\nautonomy:\n  initialBudget: -1\n", wantErr: true},
		{name: "maxChars below minimum", doc: "apiVersion: primus/v1\nsummary:\n  maxChars: 8\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := profile.Parse([]byte(tt.doc))
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "profile schema") {
					t.Fatalf("expected a schema error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: unexpected error: %v", err)
			}
		})
	}
}
