package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	t.Setenv("CATALOG_PATH", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCommandFill(t *testing.T) {
	out, err := runCLI(t, "score", "assessment-3", "--fill", "2")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !strings.Contains(out, "Raw score: 28") || !strings.Contains(out, "Level: Moderate-Severe") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestScoreCommandJSON(t *testing.T) {
	out, err := runCLI(t, "score", "assessment-2", "--fill", "strongly-agree", "--json")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var result struct {
		Score struct {
			RawScore        float64 `json:"rawScore"`
			NormalizedScore *int    `json:"normalizedScore"`
		} `json:"score"`
		Level struct {
			Label string `json:"label"`
		} `json:"level"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if result.Score.RawScore != 51 || result.Score.NormalizedScore == nil || *result.Score.NormalizedScore != 60 {
		t.Fatalf("unexpected score %+v", result.Score)
	}
	if result.Level.Label != "Moderate Balance" {
		t.Fatalf("unexpected level %q", result.Level.Label)
	}
}

func TestScoreCommandRejectsShortSequence(t *testing.T) {
	if _, err := runCLI(t, "score", "assessment-3", "1", "2", "3"); err == nil {
		t.Fatalf("expected invalid answer error")
	}
	if _, err := runCLI(t, "score", "assessment-42", "--fill", "1"); err == nil {
		t.Fatalf("expected unknown instrument error")
	}
}

func TestInstrumentsCommandListsCatalog(t *testing.T) {
	out, err := runCLI(t, "instruments")
	if err != nil {
		t.Fatalf("instruments: %v", err)
	}
	for _, want := range []string{"assessment-1", "assessment-8", "Generalized SAD > SAD > Normal", "max score 370"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := runCLI(t, "migrate"); err == nil {
		t.Fatalf("expected error without postgres url")
	}
}
