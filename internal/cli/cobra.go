package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"microtexture/internal/fsutil"
	"microtexture/internal/logging"
	"microtexture/pkg/analysis"
	"microtexture/pkg/config"
	"microtexture/pkg/crystal"
	"microtexture/pkg/pipeline"
)

// Version is set at build time with -ldflags "-X microtexture/internal/cli.Version=...".
var Version = "dev"

// Environment variables that override the configured pipeline settings.
const (
	EnvPipelineTemplate = "DREAM3D_PIPELINE_TEMPLATE"
	EnvPipelineRunner   = "DREAM3D_PIPELINE_RUNNER"
	EnvTimeoutSeconds   = "DREAM3D_TIMEOUT_SECONDS"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = ".microtexture.yaml"

// Root carries the state shared by all subcommands.
type Root struct {
	cfg *config.Config
	log *slog.Logger
	out io.Writer

	configPath string
	verbose    bool
}

// NewRootCmd creates the root Cobra command
func NewRootCmd(out io.Writer) *cobra.Command {
	root := &Root{out: out}

	rootCmd := &cobra.Command{
		Use:   "microtexture",
		Short: "Microtexture region analysis of EBSD scans",
		Long: `microtexture runs the DREAM3D MTR pipeline on .ang and .ctf EBSD scans
and post-processes the resulting .dream3d files into per-region metrics,
annotated images and summary statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return root.load()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", DefaultConfigFile, "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&root.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newRunCmd(root))
	rootCmd.AddCommand(newAnalyzeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// load reads the configuration and applies the environment overrides.
func (r *Root) load() error {
	cfg, err := config.LoadConfig(r.configPath)
	if err != nil {
		return err
	}
	if v := os.Getenv(EnvPipelineTemplate); v != "" {
		cfg.Pipeline.Template = v
	}
	if v := os.Getenv(EnvPipelineRunner); v != "" {
		cfg.Pipeline.Runner = v
	}
	if v := os.Getenv(EnvTimeoutSeconds); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeoutSeconds, err)
		}
		cfg.Pipeline.TimeoutSeconds = secs
	}

	level := cfg.Logging.Level
	if r.verbose {
		level = "debug"
	}
	r.cfg = cfg
	r.log = logging.New(level, cfg.Logging.Format)
	return nil
}

// validate checks the loaded configuration with the effective command line
// values applied.
func (r *Root) validate(minSize float64, stressAxis string, timeout int) error {
	cfg := *r.cfg
	cfg.Analysis.MinMTRSize = minSize
	cfg.Analysis.StressAxis = stressAxis
	cfg.Pipeline.TimeoutSeconds = timeout
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func newRunCmd(root *Root) *cobra.Command {
	var (
		outputDir  string
		dryRun     bool
		noRunner   bool
		noAnalysis bool
		overwrite  bool
		template   string
		runner     string
		timeout    int
		params     pipeline.Params
	)

	cmd := &cobra.Command{
		Use:   "run <input_file>",
		Short: "Run the DREAM3D MTR pipeline on one scan and analyse the result",
		Long: `Render the DREAM3D pipeline template for a single .ang or .ctf scan,
execute it with PipelineRunner and analyse the .dream3d output.
{EXT} and {ext} in the template path are replaced by the upper and lower case
input extension; {basename} in the output directory by the input file name.`,
		Args: cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			// flags the user did not set fall back to the loaded configuration
			c := root.cfg
			fallback(cmd, "output-dir", &outputDir, c.Output.Dir)
			fallback(cmd, "overwrite", &overwrite, c.Output.Overwrite)
			fallback(cmd, "pipeline-template", &template, c.Pipeline.Template)
			fallback(cmd, "pipeline-runner", &runner, c.Pipeline.Runner)
			fallback(cmd, "timeout", &timeout, c.Pipeline.TimeoutSeconds)
			fallback(cmd, "ci-mask-threshold", &params.CIMaskThreshold, c.Cleanup.CIMaskThreshold)
			fallback(cmd, "iq-mask-threshold", &params.IQMaskThreshold, c.Cleanup.IQMaskThreshold)
			fallback(cmd, "ci-primary-threshold", &params.CIPrimaryThreshold, c.Cleanup.CIPrimaryThreshold)
			fallback(cmd, "ci-secondary-threshold", &params.CISecondaryThreshold, c.Cleanup.CISecondaryThreshold)
			fallback(cmd, "error-mask-threshold", &params.ErrorMaskThreshold, c.Cleanup.ErrorMaskThreshold)
			fallback(cmd, "bc-primary-threshold", &params.BCPrimaryThreshold, c.Cleanup.BCPrimaryThreshold)
			fallback(cmd, "bc-secondary-threshold", &params.BCSecondaryThreshold, c.Cleanup.BCSecondaryThreshold)
			fallback(cmd, "caxis-misalignment", &params.CAxisMisalignment, c.Cleanup.CAxisMisalignment)
			fallback(cmd, "min-mtr-size", &params.MinMTRSize, c.Analysis.MinMTRSize)
			fallback(cmd, "stress-axis", &params.StressAxis, c.Analysis.StressAxis)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := resolveInput(args[0])
			if err != nil {
				return err
			}
			p, err := pipeline.NewParams(input, outputDir)
			if err != nil {
				return err
			}
			p.CIMaskThreshold = params.CIMaskThreshold
			p.IQMaskThreshold = params.IQMaskThreshold
			p.CIPrimaryThreshold = params.CIPrimaryThreshold
			p.CISecondaryThreshold = params.CISecondaryThreshold
			p.ErrorMaskThreshold = params.ErrorMaskThreshold
			p.BCPrimaryThreshold = params.BCPrimaryThreshold
			p.BCSecondaryThreshold = params.BCSecondaryThreshold
			p.CAxisMisalignment = params.CAxisMisalignment
			p.MinMTRSize = params.MinMTRSize
			p.StressAxis = params.StressAxis

			if _, err := crystal.ParseStressAxis(p.StressAxis); err != nil {
				return err
			}
			if err := root.validate(p.MinMTRSize, p.StressAxis, timeout); err != nil {
				return err
			}

			tplPath := pipeline.ResolveTemplate(template, p.Extension)
			if _, err := os.Stat(tplPath); err != nil {
				return fmt.Errorf("%w: %s", pipeline.ErrTemplateNotFound, tplPath)
			}
			if err := pipeline.PrepareOutputDir(p.OutputDir, overwrite); err != nil {
				return err
			}

			run := &pipeline.Runner{
				Path:    runner,
				Timeout: time.Duration(timeout) * time.Second,
				Logger:  root.log,
			}
			if !noRunner && !dryRun {
				if err := run.Check(); err != nil {
					return err
				}
			}

			if root.verbose || dryRun {
				printParams(root.out, p, tplPath, runner)
			}

			if err := pipeline.RenderTemplate(tplPath, p, p.JSONPath()); err != nil {
				return err
			}
			fmt.Fprintf(root.out, "Generated JSON input file: %s\n", p.JSONPath())
			if dryRun {
				return nil
			}

			if !noRunner {
				if err := run.Run(cmd.Context(), p.JSONPath()); err != nil {
					return err
				}
			}

			if noAnalysis {
				return nil
			}
			return runAnalysis(root, &analysis.Params{
				Inputs:     []string{p.Dream3DPath()},
				OutputDir:  p.OutputDir,
				MinMTRSize: p.MinMTRSize,
				StressAxis: p.StressAxis,
				Frame:      frameFor(p.Extension),
				SaveImages: root.cfg.Analysis.SaveImages,
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&outputDir, "output-dir", "o", "", "Results directory; {basename} is replaced by the input name")
	f.BoolVar(&dryRun, "dry-run", false, "Print the parsed inputs and render the pipeline without running it")
	f.BoolVar(&noRunner, "no-runner", false, "Do not execute PipelineRunner")
	f.BoolVar(&noAnalysis, "no-analysis", false, "Do not analyse the .dream3d output")
	f.BoolVar(&overwrite, "overwrite", false, "Allow writing into a non-empty results directory")
	f.StringVar(&template, "pipeline-template", "", "Pipeline template; {EXT}/{ext} become the input extension (env "+EnvPipelineTemplate+")")
	f.StringVar(&runner, "pipeline-runner", "", "Path to DREAM3D PipelineRunner (env "+EnvPipelineRunner+")")
	f.IntVar(&timeout, "timeout", 0, "PipelineRunner timeout in seconds (env "+EnvTimeoutSeconds+")")

	f.Float64Var(&params.CIMaskThreshold, "ci-mask-threshold", 0, "Confidence Index threshold for good data (.ang)")
	f.Float64Var(&params.IQMaskThreshold, "iq-mask-threshold", 0, "Image Quality threshold for good data (.ang)")
	f.Float64Var(&params.CIPrimaryThreshold, "ci-primary-threshold", 0, "Primary cleanup CI threshold (.ang)")
	f.Float64Var(&params.CISecondaryThreshold, "ci-secondary-threshold", 0, "Secondary cleanup CI threshold (.ang)")
	f.IntVar(&params.ErrorMaskThreshold, "error-mask-threshold", 0, "Error value of good data (.ctf)")
	f.Float64Var(&params.BCPrimaryThreshold, "bc-primary-threshold", 0, "Primary cleanup band contrast threshold (.ctf)")
	f.Float64Var(&params.BCSecondaryThreshold, "bc-secondary-threshold", 0, "Secondary cleanup band contrast threshold (.ctf)")
	f.IntVar(&params.CAxisMisalignment, "caxis-misalignment", 0, "C-axis misalignment tolerance in degrees for segmentation")
	f.Float64Var(&params.MinMTRSize, "min-mtr-size", 0, "Minimum MTR size in um^2")
	f.StringVar(&params.StressAxis, "stress-axis", "", "Stress axis direction (100, 010 or 001)")

	return cmd
}

func newAnalyzeCmd(root *Root) *cobra.Command {
	var (
		outputDir  string
		minSize    float64
		stressAxis string
		frame      string
		noImages   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file_or_directory>...",
		Short: "Analyse existing .dream3d files",
		Long: `Analyse one or more .dream3d files, or every .dream3d file in the given
directories, and write Raw_Data.csv, the summary workbook and the annotated
images of every sample to the output directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := root.cfg
			fallback(cmd, "output-dir", &outputDir, "Results")
			fallback(cmd, "min-mtr-size", &minSize, c.Analysis.MinMTRSize)
			fallback(cmd, "stress-axis", &stressAxis, c.Analysis.StressAxis)

			if _, err := crystal.ParseStressAxis(stressAxis); err != nil {
				return err
			}
			if err := root.validate(minSize, stressAxis, c.Pipeline.TimeoutSeconds); err != nil {
				return err
			}
			refFrame, err := crystal.ParseFrame(frame)
			if err != nil {
				return err
			}

			var inputs []string
			for _, a := range args {
				files, err := fsutil.ListDream3D(a)
				if err != nil {
					return fmt.Errorf("listing %s: %w", a, err)
				}
				inputs = append(inputs, files...)
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no .dream3d files found in %v", args)
			}

			return runAnalysis(root, &analysis.Params{
				Inputs:     inputs,
				OutputDir:  outputDir,
				MinMTRSize: minSize,
				StressAxis: stressAxis,
				Frame:      refFrame,
				SaveImages: c.Analysis.SaveImages && !noImages,
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Results directory")
	cmd.Flags().Float64Var(&minSize, "min-mtr-size", 0, "Minimum MTR size in um^2")
	cmd.Flags().StringVar(&stressAxis, "stress-axis", "", "Stress axis direction (100, 010 or 001)")
	cmd.Flags().StringVar(&frame, "frame", string(crystal.FrameHKL), "C-axis colour map convention (HKL or TSL)")
	cmd.Flags().BoolVar(&noImages, "no-images", false, "Skip the annotated PNG outputs")

	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Fprintf(root.out, "Default configuration written to: %s\n", path)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := root.cfg.Validate(); err != nil {
				fmt.Fprintf(root.out, "# invalid: %v\n", err)
			}
			enc := yaml.NewEncoder(root.out)
			enc.SetIndent(2)
			if err := enc.Encode(root.cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(root.out, "microtexture %s\n", Version)
		},
	}
}

// runAnalysis runs the analyzer and prints the summary tables.
func runAnalysis(root *Root, params *analysis.Params) error {
	params.Logger = root.log
	if err := os.MkdirAll(params.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	start := time.Now()
	a := analysis.NewAnalyzer(params)
	err := a.Process()
	if summary := a.GetSummary(); summary != nil {
		printSummary(root.out, summary, params.OutputDir, time.Since(start))
	}
	return err
}

// fallback assigns def to *dst unless the named flag was set.
func fallback[T any](cmd *cobra.Command, name string, dst *T, def T) {
	if !cmd.Flags().Changed(name) {
		*dst = def
	}
}

// resolveInput expands environment variables and accepts a glob pattern
// matching exactly one file.
func resolveInput(input string) (string, error) {
	input = os.ExpandEnv(input)
	if info, err := os.Stat(input); err == nil && !info.IsDir() {
		return input, nil
	}
	matches, err := filepath.Glob(input)
	if err != nil {
		return "", fmt.Errorf("input pattern %s: %w", input, err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("input file %s does not exist", input)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("input pattern %s matches %d files; pass a single scan", input, len(matches))
}

// frameFor picks the c-axis colour convention of the acquisition software
// that writes the given scan format.
func frameFor(ext string) crystal.ReferenceFrame {
	if ext == "ang" {
		return crystal.FrameTSL
	}
	return crystal.FrameHKL
}

// Execute runs the root command with a background context.
func Execute(out io.Writer, args []string) error {
	cmd := NewRootCmd(out)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
