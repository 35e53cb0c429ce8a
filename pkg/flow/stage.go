package flow

import (
	"errors"
	"fmt"
	"strings"
)

// Stage identifies the kind of security work a pipeline node performs.
type Stage string

const (
	StageSecretScanning          Stage = "Secret Scanning"
	StageSCA                     Stage = "SCA"
	StageSAST                    Stage = "SAST"
	StageDAST                    Stage = "DAST"
	StageContainerSecurity       Stage = "Container Security"
	StageIaCScan                 Stage = "IaC Scan"
	StageVulnerabilityManagement Stage = "Vulnerability Management"
)

// ErrUnknownStage is returned by ParseStage for names outside the fixed enumeration.
var ErrUnknownStage = errors.New("unknown stage")

var allStages = []Stage{
	StageSecretScanning,
	StageSCA,
	StageSAST,
	StageDAST,
	StageContainerSecurity,
	StageIaCScan,
	StageVulnerabilityManagement,
}

// Stages returns every stage in canonical pipeline order.
func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// Slug returns the lower_snake form used in DOT attributes and query strings,
// e.g. "Secret Scanning" -> "secret_scanning".
func (s Stage) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	for _, st := range allStages {
		if st == s {
			return true
		}
	}
	return false
}

// ParseStage accepts the display name or slug of a stage, case-insensitively.
func ParseStage(name string) (Stage, error) {
	norm := normalizeStage(name)
	for _, st := range allStages {
		if normalizeStage(string(st)) == norm {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, name)
}

func normalizeStage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
