// Package cli provides the command line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/temirov/latextools/internal/config"
	"github.com/temirov/latextools/internal/latex/citation"
	"github.com/temirov/latextools/internal/output"
	"github.com/temirov/latextools/internal/services/clipboard"
	"github.com/temirov/latextools/internal/tokenizer"
	"github.com/temirov/latextools/internal/types"
	"github.com/temirov/latextools/internal/utils"
)

const (
	outputFlagName       = "output"
	outputFlagShorthand  = "o"
	verboseFlagName      = "verbose"
	verboseFlagShorthand = "v"
	modeFlagName         = "mode"
	modeFlagShorthand    = "m"
	bibtexFlagName       = "bibtex"
	bibtexFlagShorthand  = "b"
	bibliographyFlagName = "bib"
	formatFlagName       = "format"
	markersFlagName      = "markers"
	copyFlagName         = "copy"
	tokensFlagName       = "tokens"
	modelFlagName        = "model"
	configFlagName       = "config"
	versionFlagName      = "version"
	defaultInputFile     = "main.tex"
	defaultOutputFile    = "onefile.tex"
	versionTemplate      = "latextools version: %s\n"
	rootUse              = "latextools [input_file]"
	rootShortDescription = "consolidate a LaTeX document and validate its cross-references"
	rootLongDescription  = `latextools resolves \input and \include into a single document, inlines the
cited bibliography entries and validates labels, references and captions.
Use --mode bibtex (or -b) to export only the cited BibTeX entries instead.
Use --format to select raw, json, xml, yaml, markdown or html for the validation report.`
	rootUsageExample = `  # Consolidate main.tex into onefile.tex
  latextools

  # Export the cited entries of thesis.tex to cited.bib
  latextools thesis.tex -b -o cited.tex

  # Print every validation finding as JSON
  latextools --format json -v`

	outputFlagDescription       = "output file"
	verboseFlagDescription      = "list every finding instead of counts"
	modeFlagDescription         = "processing mode: all or bibtex"
	bibtexFlagDescription       = "shortcut for --mode bibtex"
	bibliographyFlagDescription = "bibliography file, overrides \\bibliography discovery (repeatable)"
	formatFlagDescription       = "report format: raw, json, xml, yaml, markdown or html"
	markersFlagDescription      = "wrap included files in begin/end comment markers"
	copyFlagDescription         = "copy the written file to the clipboard"
	tokensFlagDescription       = "count tokens of the written file"
	modelFlagDescription        = "tokenizer model to use for token counting"
	configFlagDescription       = "configuration file path"
	versionFlagDescription      = "display application version"

	invalidFormatMessage    = "invalid format value '%s'"
	absolutePathErrorFormat = "abs failed for '%s': %w"
	loadConfigurationFormat = "load configuration: %w"
	clipboardFailedMessage  = "copy to clipboard failed"
	copiedMessage           = "copied output to clipboard"
	tokenCountFailedMessage = "token counting failed"
	diagnosticMessage       = "diagnostic"
	logFieldPath            = "path"
)

// application carries the collaborators shared by every command.
type application struct {
	logger     *zap.Logger
	copier     clipboard.Copier
	newCounter func(tokenizer.Config) (tokenizer.Counter, string, error)
}

// Execute runs the latextools application.
func Execute(logger *zap.Logger) error {
	app := &application{
		logger:     logger,
		copier:     clipboard.NewService(),
		newCounter: tokenizer.NewCounter,
	}
	rootCommand := app.createRootCommand()
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.Execute()
}

// processOptions holds the root command flags.
type processOptions struct {
	outputPath        string
	verbose           bool
	mode              string
	bibtexShortcut    bool
	bibliographyPaths []string
	format            string
	markers           bool
	copyToClipboard   bool
	tokens            bool
	model             string
}

// createRootCommand builds the root Cobra command, which consolidates one document.
func (app *application) createRootCommand() *cobra.Command {
	var showVersion bool
	var configurationPath string
	var options processOptions

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		Example:      rootUsageExample,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			inputPath := defaultInputFile
			if len(arguments) > 0 {
				inputPath = arguments[0]
			}
			applicationConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: configurationPath})
			if configurationError != nil {
				return fmt.Errorf(loadConfigurationFormat, configurationError)
			}
			options.applyConfiguration(command, applicationConfiguration.Process)
			return app.runProcess(command, inputPath, options, applicationConfiguration.Citations.Commands)
		},
		PersistentPreRun: func(command *cobra.Command, arguments []string) {
			if showVersion {
				fmt.Printf(versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
		},
	}

	flags := rootCommand.Flags()
	flags.StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, defaultOutputFile, outputFlagDescription)
	registerBooleanFlag(flags, &options.verbose, verboseFlagName, verboseFlagShorthand, false, verboseFlagDescription)
	registerModeFlag(flags, &options.mode, modeFlagName, modeFlagShorthand, modeFlagDescription)
	registerBooleanFlag(flags, &options.bibtexShortcut, bibtexFlagName, bibtexFlagShorthand, false, bibtexFlagDescription)
	flags.StringArrayVar(&options.bibliographyPaths, bibliographyFlagName, nil, bibliographyFlagDescription)
	flags.StringVar(&options.format, formatFlagName, types.FormatRaw, formatFlagDescription)
	registerBooleanFlag(flags, &options.markers, markersFlagName, "", true, markersFlagDescription)
	registerBooleanFlag(flags, &options.copyToClipboard, copyFlagName, "", false, copyFlagDescription)
	registerBooleanFlag(flags, &options.tokens, tokensFlagName, "", false, tokensFlagDescription)
	flags.StringVar(&options.model, modelFlagName, tokenizer.DefaultModel, modelFlagDescription)

	rootCommand.PersistentFlags().StringVar(&configurationPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(rootCommand.PersistentFlags(), &showVersion, versionFlagName, "", false, versionFlagDescription)

	rootCommand.AddCommand(
		app.createCheckCommand(&configurationPath),
		createInitCommand(),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// applyConfiguration fills every flag the user did not set from configuration.
func (options *processOptions) applyConfiguration(command *cobra.Command, configuration config.ProcessConfiguration) {
	flags := command.Flags()
	if !flags.Changed(outputFlagName) && configuration.Output != "" {
		options.outputPath = configuration.Output
	}
	if !flags.Changed(modeFlagName) && configuration.Mode != "" {
		options.mode = strings.ToLower(configuration.Mode)
	}
	if options.bibtexShortcut {
		options.mode = types.ModeBibTeX
	}
	if !flags.Changed(formatFlagName) && configuration.Format != "" {
		options.format = configuration.Format
	}
	if !flags.Changed(verboseFlagName) && configuration.Verbose != nil {
		options.verbose = *configuration.Verbose
	}
	if !flags.Changed(markersFlagName) && configuration.Markers != nil {
		options.markers = *configuration.Markers
	}
	if !flags.Changed(bibliographyFlagName) && len(configuration.Bibliography) > 0 {
		options.bibliographyPaths = append([]string{}, configuration.Bibliography...)
	}
	if !flags.Changed(copyFlagName) && configuration.Clipboard != nil {
		options.copyToClipboard = *configuration.Clipboard
	}
	if !flags.Changed(tokensFlagName) && configuration.Tokens.Enabled != nil {
		options.tokens = *configuration.Tokens.Enabled
	}
	if !flags.Changed(modelFlagName) && configuration.Tokens.Model != "" {
		options.model = configuration.Tokens.Model
	}
}

// isSupportedFormat reports whether the provided report format is recognized.
func isSupportedFormat(format string) bool {
	for _, supported := range output.SupportedFormats {
		if format == supported {
			return true
		}
	}
	return false
}

// commandLogger narrows logging to informational entries unless verbose is set.
func (app *application) commandLogger(verbose bool) *zap.Logger {
	logger := app.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if verbose {
		return logger
	}
	return logger.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
}

// absolutePaths resolves paths against the working directory.
func absolutePaths(paths []string) ([]string, error) {
	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		absolutePath, absoluteError := filepath.Abs(path)
		if absoluteError != nil {
			return nil, fmt.Errorf(absolutePathErrorFormat, path, absoluteError)
		}
		resolved = append(resolved, absolutePath)
	}
	return resolved, nil
}

func citationCommands(configured []string) []string {
	if len(configured) == 0 {
		return citation.DefaultCommands
	}
	return configured
}
