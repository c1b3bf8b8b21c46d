package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteRunArtifacts writes a run's result.json under dir/<run-id>/ and
// returns the run directory path. The artifact is the on-disk audit
// trail and the unit the uploader ships to remote storage.
func WriteRunArtifacts(dir string, run *RunSummary) (string, error) {
	runDir := filepath.Join(dir, run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding run result: %w", err)
	}

	path := filepath.Join(runDir, "result.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return runDir, nil
}

// ReadRunArtifacts loads a previously written result.json from a run
// directory.
func ReadRunArtifacts(runDir string) (*RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(runDir, "result.json"))
	if err != nil {
		return nil, fmt.Errorf("reading run result: %w", err)
	}

	var run RunSummary
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing run result: %w", err)
	}

	return &run, nil
}
