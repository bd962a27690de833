package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"microtexture/internal/fsutil"
	"microtexture/pkg/config"
	"microtexture/pkg/crystal"
	"microtexture/pkg/dream3d/dream3dtest"
	"microtexture/pkg/pipeline"
)

const pipelineTemplate = `{"0": {"InputFile": "{{.InputFile}}", "CI": {{.CIMaskThreshold}}},
 "1": {"OutputFile": "{{.OutputDir}}/{{.Basename}}.dream3d", "MinSize": {{.MinMTRSize}}}}`

// execute runs the CLI with a config path that does not exist, so the
// defaults apply, and returns the captured output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cfg := filepath.Join(t.TempDir(), "none.yaml")
	err := Execute(&out, append([]string{"--config", cfg}, args...))
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "microtexture "+Version) {
		t.Errorf("Expected version output, got %q", out)
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "microtexture.yaml")

	if _, err := execute(t, "config", "init", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if cfg.Analysis.MinMTRSize != 10000 {
		t.Errorf("Expected default MinMTRSize, got %v", cfg.Analysis.MinMTRSize)
	}

	if _, err := execute(t, "config", "init", path); err == nil {
		t.Error("Expected an error when the file already exists")
	}
}

func TestRunDryRun(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "PW9.ang"), "# scan")
	writeFile(t, filepath.Join(dir, "templates", "MTR_ANG.json"), pipelineTemplate)
	t.Setenv(EnvPipelineTemplate, filepath.Join(dir, "templates", "MTR_{EXT}.json"))

	out, err := execute(t, "run", input,
		"--output-dir", filepath.Join(dir, "Results", "{basename}"),
		"--min-mtr-size", "5000",
		"--dry-run")
	if err != nil {
		t.Fatalf("run --dry-run failed: %v", err)
	}
	if !strings.Contains(out, "Parsed Inputs:") || !strings.Contains(out, "ci_mask_threshold") {
		t.Errorf("Expected the parsed inputs to be printed, got:\n%s", out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "Results", "PW9", "PW9.json"))
	if err != nil {
		t.Fatalf("Expected the rendered pipeline: %v", err)
	}
	if !strings.Contains(string(data), `"MinSize": 5000`) || !strings.Contains(string(data), `"CI": 0.05`) {
		t.Errorf("Expected flag and default values in the pipeline, got:\n%s", data)
	}
}

func TestRunRefusesNonEmptyOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "PW9.ctf"), "# scan")
	tpl := writeFile(t, filepath.Join(dir, "MTR_CTF.json"), pipelineTemplate)
	writeFile(t, filepath.Join(dir, "PW9", "old.csv"), "x")

	_, err := execute(t, "run", input,
		"--output-dir", filepath.Join(dir, "{basename}"),
		"--pipeline-template", tpl,
		"--no-runner")
	if !errors.Is(err, pipeline.ErrOutputNotEmpty) {
		t.Errorf("Expected ErrOutputNotEmpty, got %v", err)
	}
}

func TestRunMissingRunner(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "PW9.ang"), "# scan")
	tpl := writeFile(t, filepath.Join(dir, "MTR.json"), pipelineTemplate)
	t.Setenv(EnvPipelineRunner, filepath.Join(dir, "no-such-runner"))

	_, err := execute(t, "run", input,
		"--output-dir", filepath.Join(dir, "out"),
		"--pipeline-template", tpl)
	if !errors.Is(err, pipeline.ErrRunnerNotFound) {
		t.Errorf("Expected ErrRunnerNotFound, got %v", err)
	}
}

func TestRunAnalysesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "PW9.ang"), "# scan")
	tpl := writeFile(t, filepath.Join(dir, "MTR.json"), pipelineTemplate)
	out := filepath.Join(dir, "PW9")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}
	if err := dream3dtest.WriteFile(filepath.Join(out, "PW9.dream3d"), dream3dtest.Synthetic(), dream3dtest.Options{}); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	writeFile(t, filepath.Join(dir, "cfg.yaml"), "analysis:\n  saveImages: false\n")

	var buf bytes.Buffer
	err := Execute(&buf, []string{"--config", filepath.Join(dir, "cfg.yaml"), "run", input,
		"--output-dir", filepath.Join(dir, "{basename}"),
		"--pipeline-template", tpl,
		"--no-runner", "--overwrite"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, fsutil.RawDataCSV)); err != nil {
		t.Errorf("Expected raw data CSV: %v", err)
	}
	if !strings.Contains(buf.String(), "Initiator") {
		t.Errorf("Expected the summary table in the output, got:\n%s", buf.String())
	}
}

func TestAnalyzeDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"A.dream3d", "B.dream3d"} {
		if err := dream3dtest.WriteFile(filepath.Join(dir, name), dream3dtest.Synthetic(), dream3dtest.Options{}); err != nil {
			t.Fatalf("Failed to write fixture: %v", err)
		}
	}
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	results := filepath.Join(t.TempDir(), "Results")

	out, err := execute(t, "analyze", dir, "-o", results, "--no-images")
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	for _, sample := range []string{"A", "B"} {
		if !strings.Contains(out, sample) {
			t.Errorf("Expected sample %s in the summary, got:\n%s", sample, out)
		}
	}
	if _, err := os.Stat(filepath.Join(results, fsutil.SummaryWorkbook)); err != nil {
		t.Errorf("Expected summary workbook: %v", err)
	}
}

func TestAnalyzeInvalidStressAxis(t *testing.T) {
	dir := t.TempDir()
	if err := dream3dtest.WriteFile(filepath.Join(dir, "A.dream3d"), dream3dtest.Synthetic(), dream3dtest.Options{}); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	_, err := execute(t, "analyze", dir, "-o", filepath.Join(dir, "out"), "--stress-axis", "111")
	if !errors.Is(err, crystal.ErrInvalidStressAxis) {
		t.Errorf("Expected ErrInvalidStressAxis, got %v", err)
	}
}

func TestAnalyzeRejectsInvalidSettings(t *testing.T) {
	dir := t.TempDir()
	if err := dream3dtest.WriteFile(filepath.Join(dir, "A.dream3d"), dream3dtest.Synthetic(), dream3dtest.Options{}); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	results := filepath.Join(dir, "out")

	_, err := execute(t, "analyze", dir, "-o", results, "--min-mtr-size", "-5")
	if err == nil || !strings.Contains(err.Error(), "minMTRSize") {
		t.Errorf("Expected a minMTRSize error, got %v", err)
	}
	if _, statErr := os.Stat(results); !os.IsNotExist(statErr) {
		t.Errorf("Expected no output for invalid settings, got %v", statErr)
	}

	_, err = execute(t, "analyze", dir, "-o", results, "--frame", "EDAX")
	if !errors.Is(err, crystal.ErrInvalidFrame) {
		t.Errorf("Expected ErrInvalidFrame, got %v", err)
	}

	if _, err := execute(t, "analyze", dir, "-o", results, "--frame", "tsl", "--no-images"); err != nil {
		t.Errorf("Expected a lower-case frame to be accepted, got %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "PW9.ang"), "# scan")
	tpl := writeFile(t, filepath.Join(dir, "MTR.json"), pipelineTemplate)
	cfg := writeFile(t, filepath.Join(dir, "cfg.yaml"), "analysis:\n  minMTRSize: 0\n")

	var buf bytes.Buffer
	err := Execute(&buf, []string{"--config", cfg, "run", input,
		"--output-dir", filepath.Join(dir, "{basename}"),
		"--pipeline-template", tpl,
		"--dry-run"})
	if err == nil || !strings.Contains(err.Error(), "minMTRSize") {
		t.Errorf("Expected a minMTRSize error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "PW9", "PW9.json")); !os.IsNotExist(statErr) {
		t.Errorf("Expected no rendered pipeline for invalid settings, got %v", statErr)
	}
}

func TestResolveInput(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "scan_1.ang"), "")
	writeFile(t, filepath.Join(dir, "scan_2.ang"), "")

	got, err := resolveInput(filepath.Join(dir, "scan_1*"))
	if err != nil || got != a {
		t.Errorf("Expected %s, got %s (%v)", a, got, err)
	}
	if _, err := resolveInput(filepath.Join(dir, "scan_*")); err == nil {
		t.Error("Expected an error for an ambiguous pattern")
	}
	if _, err := resolveInput(filepath.Join(dir, "none*")); err == nil {
		t.Error("Expected an error when nothing matches")
	}
}

func TestFrameFor(t *testing.T) {
	if frameFor("ang") != crystal.FrameTSL || frameFor("ctf") != crystal.FrameHKL {
		t.Errorf("Expected TSL for .ang and HKL for .ctf, got %s and %s", frameFor("ang"), frameFor("ctf"))
	}
}
