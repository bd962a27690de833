// Package pipeline renders DREAM3D pipeline JSON files from templates and
// runs them through the PipelineRunner executable.
package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"microtexture/internal/fsutil"
)

var (
	// ErrTemplateNotFound is returned when the pipeline template is missing.
	ErrTemplateNotFound = errors.New("pipeline template not found")

	// ErrInvalidPipelineJSON is returned when a rendered template does not
	// parse as JSON.
	ErrInvalidPipelineJSON = errors.New("rendered pipeline is not valid JSON")

	// ErrUnsupportedInput is returned for inputs other than .ang and .ctf.
	ErrUnsupportedInput = errors.New("input file must be .ang or .ctf")

	// ErrOutputNotEmpty is returned by PrepareOutputDir for a non-empty
	// results directory when overwriting is not allowed.
	ErrOutputNotEmpty = errors.New("output directory exists and is not empty")
)

// Params holds every value a pipeline template can reference, for example
// {{.InputFile}} or {{.CIMaskThreshold}}.
type Params struct {
	// InputFile is the absolute path of the .ang or .ctf scan.
	InputFile string

	// Extension is the lower-case input extension without the dot.
	Extension string

	// Basename is the input file name without its extension.
	Basename string

	// OutputDir is the absolute results directory.
	OutputDir string

	// .ang cleanup thresholds
	CIMaskThreshold      float64
	IQMaskThreshold      float64
	CIPrimaryThreshold   float64
	CISecondaryThreshold float64

	// .ctf cleanup thresholds
	ErrorMaskThreshold   int
	BCPrimaryThreshold   float64
	BCSecondaryThreshold float64

	CAxisMisalignment int
	MinMTRSize        float64
	StressAxis        string
}

// NewParams derives the file name fields of Params from an input path and
// an output directory pattern in which {basename} is substituted.
func NewParams(inputFile, outputPattern string) (*Params, error) {
	abs, err := filepath.Abs(inputFile)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", inputFile, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("input file %s: %w", inputFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("input file %s is a directory", inputFile)
	}

	base := filepath.Base(abs)
	ext := filepath.Ext(base)
	p := &Params{
		InputFile: abs,
		Extension: strings.ToLower(strings.TrimPrefix(ext, ".")),
		Basename:  strings.TrimSuffix(base, ext),
	}

	if p.Extension != "ang" && p.Extension != "ctf" {
		return nil, fmt.Errorf("%w; got %s", ErrUnsupportedInput, base)
	}

	out := strings.ReplaceAll(outputPattern, "{basename}", p.Basename)
	if p.OutputDir, err = filepath.Abs(os.ExpandEnv(out)); err != nil {
		return nil, fmt.Errorf("resolving output directory %s: %w", out, err)
	}
	return p, nil
}

// JSONPath is where the rendered pipeline is written.
func (p *Params) JSONPath() string {
	return filepath.Join(p.OutputDir, p.Basename+".json")
}

// Dream3DPath is where the pipeline writes its HDF5 output.
func (p *Params) Dream3DPath() string {
	return filepath.Join(p.OutputDir, p.Basename+".dream3d")
}

// ResolveTemplate substitutes the input extension into a template path
// pattern: {EXT} takes the upper-case form and {ext} the lower-case one.
func ResolveTemplate(pattern, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	r := strings.NewReplacer("{EXT}", strings.ToUpper(ext), "{ext}", strings.ToLower(ext))
	return r.Replace(pattern)
}

// Render executes the template at templatePath with params and returns the
// resulting JSON, re-indented with four spaces. Key order is kept.
func Render(templatePath string, params *Params) ([]byte, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
	}
	tpl, err := template.New(filepath.Base(templatePath)).Option("missingkey=error").ParseFiles(templatePath)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", templatePath, err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", templatePath, err)
	}

	rendered := bytes.TrimSpace(buf.Bytes())
	var out bytes.Buffer
	if err := json.Indent(&out, rendered, "", "    "); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPipelineJSON, err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// RenderTemplate renders the template and writes the pipeline to jsonPath.
func RenderTemplate(templatePath string, params *Params, jsonPath string) error {
	data, err := Render(templatePath, params)
	if err != nil {
		return err
	}
	return fsutil.WriteFile(jsonPath, data)
}

// PrepareOutputDir creates dir. An existing non-empty dir is an error
// unless overwrite is set.
func PrepareOutputDir(dir string, overwrite bool) error {
	empty, err := fsutil.IsEmptyDir(dir)
	if err != nil {
		return fmt.Errorf("checking output directory: %w", err)
	}
	if !empty && !overwrite {
		return fmt.Errorf("%w: %s (use --overwrite)", ErrOutputNotEmpty, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}
