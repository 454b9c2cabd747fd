package jobs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abca4/fafpipe/internal/artifact"
)

// Env carries the per-run state every job body needs: the input image,
// the work directory for step outputs, and the artifact store.
type Env struct {
	InputPath string
	WorkDir   string
	Store     artifact.Store
}

// Fingerprint identifies the run's input unit. It is derived from the
// cleaned absolute input path, matching the workfile convention: the
// same image always maps to the same fingerprint.
func (env *Env) Fingerprint() artifact.Fingerprint {
	abs, err := filepath.Abs(env.InputPath)
	if err != nil {
		abs = env.InputPath
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return artifact.Fingerprint("sha256:" + hex.EncodeToString(sum[:]))
}

// workfilePath places a step's output next to its siblings under the
// work directory: <work_dir>/<image stem>/<job>.json.
func (env *Env) workfilePath(job string) string {
	base := filepath.Base(env.InputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(env.WorkDir, stem, job+".json")
}

// stepRecord is what a job writes to its workfile.
type stepRecord struct {
	Job        string         `json:"job"`
	Input      string         `json:"input"`
	Params     map[string]any `json:"params,omitempty"`
	Derived    map[string]any `json:"derived,omitempty"`
	ProducedAt time.Time      `json:"produced_at"`
}

// emit validates the input, writes the step record, and registers the
// result so a later skip-existing run can bypass the job.
func (env *Env) emit(ctx context.Context, job string, params, derived map[string]any) error {
	if _, err := os.Stat(env.InputPath); err != nil {
		return fmt.Errorf("input image unavailable: %w", err)
	}

	path := env.workfilePath(job)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create work directory for %q: %w", job, err)
	}

	record := stepRecord{
		Job:        job,
		Input:      env.InputPath,
		Params:     params,
		Derived:    derived,
		ProducedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode step record for %q: %w", job, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write workfile for %q: %w", job, err)
	}

	return env.Store.PutResult(ctx, job, env.Fingerprint(), path)
}

// floatParam reads a numeric parameter, tolerating the types that reach
// a body: factory defaults keep their Go type, HCL overrides arrive as
// float64.
func floatParam(params map[string]any, name string, fallback float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

// boolParam reads a boolean parameter.
func boolParam(params map[string]any, name string, fallback bool) bool {
	if v, ok := params[name].(bool); ok {
		return v
	}
	return fallback
}
