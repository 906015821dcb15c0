package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/latextools/internal/commands"
	"github.com/temirov/latextools/internal/config"
	"github.com/temirov/latextools/internal/output"
	"github.com/temirov/latextools/internal/types"
	"github.com/temirov/latextools/internal/validate"
)

const (
	strictFlagName = "strict"

	checkUse              = "check [files...]"
	checkShortDescription = "validate cross-references without writing output"
	checkLongDescription  = `check consolidates every given document in memory and reports duplicate
labels, undefined references, unresolved citations and caption issues.
Documents are analyzed concurrently. Nothing is written to disk.`
	checkUsageExample = `  # Validate main.tex
  latextools check

  # Validate two documents and fail on errors
  latextools check paper.tex appendix.tex --strict`

	strictFlagDescription      = "exit with an error when any document has errors"
	checkVerboseDescription    = "list every finding instead of counts"
	checkFormatDescription     = "report format: raw, json, xml, yaml, markdown or html"
	strictFailureMessageFormat = "%d of %d documents have validation errors"
	pathNotExistFormat         = "path '%s' (resolved to '%s') does not exist"
	pathStatFormat             = "stat '%s' (resolved to '%s'): %w"
	pathIsDirectoryFormat      = "path '%s' is a directory, expected a .tex file"
)

var errNoDocuments = errors.New("no documents to check")

type checkOptions struct {
	format            string
	verbose           bool
	strict            bool
	bibliographyPaths []string
}

func (app *application) createCheckCommand(configurationPath *string) *cobra.Command {
	var options checkOptions
	checkCommand := &cobra.Command{
		Use:          checkUse,
		Short:        checkShortDescription,
		Long:         checkLongDescription,
		Example:      checkUsageExample,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			inputPaths := arguments
			if len(inputPaths) == 0 {
				inputPaths = []string{defaultInputFile}
			}
			applicationConfiguration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: *configurationPath})
			if configurationError != nil {
				return fmt.Errorf(loadConfigurationFormat, configurationError)
			}
			options.applyConfiguration(command, applicationConfiguration.Check, applicationConfiguration.Process.Bibliography)
			return app.runCheck(command, inputPaths, options, applicationConfiguration.Citations.Commands)
		},
	}
	flags := checkCommand.Flags()
	flags.StringVar(&options.format, formatFlagName, types.FormatRaw, checkFormatDescription)
	registerBooleanFlag(flags, &options.verbose, verboseFlagName, verboseFlagShorthand, false, checkVerboseDescription)
	registerBooleanFlag(flags, &options.strict, strictFlagName, "", false, strictFlagDescription)
	flags.StringArrayVar(&options.bibliographyPaths, bibliographyFlagName, nil, bibliographyFlagDescription)
	return checkCommand
}

// applyConfiguration fills unset flags from the check section. Bibliography
// sources are shared with the process section.
func (options *checkOptions) applyConfiguration(command *cobra.Command, configuration config.CheckConfiguration, bibliography []string) {
	flags := command.Flags()
	if !flags.Changed(bibliographyFlagName) && len(bibliography) > 0 {
		options.bibliographyPaths = append([]string{}, bibliography...)
	}
	if !flags.Changed(formatFlagName) && configuration.Format != "" {
		options.format = configuration.Format
	}
	if !flags.Changed(verboseFlagName) && configuration.Verbose != nil {
		options.verbose = *configuration.Verbose
	}
	if !flags.Changed(strictFlagName) && configuration.Strict != nil {
		options.strict = *configuration.Strict
	}
}

func (app *application) runCheck(command *cobra.Command, inputPaths []string, options checkOptions, configuredCitations []string) error {
	format := strings.ToLower(options.format)
	if !isSupportedFormat(format) {
		return fmt.Errorf(invalidFormatMessage, format)
	}
	documentPaths, pathsError := resolveAndValidatePaths(inputPaths)
	if pathsError != nil {
		return pathsError
	}
	bibliographyPaths, bibliographyError := absolutePaths(options.bibliographyPaths)
	if bibliographyError != nil {
		return bibliographyError
	}
	logger := app.commandLogger(options.verbose)

	documentFiles := make([]string, 0, len(documentPaths))
	for _, documentPath := range documentPaths {
		documentFiles = append(documentFiles, documentPath.AbsolutePath)
	}
	analyses, checkError := commands.CheckDocuments(command.Context(), documentFiles, commands.AnalysisOptions{
		Mode:              types.ModeAll,
		BibliographyPaths: bibliographyPaths,
		Markers:           true,
		CitationCommands:  citationCommands(configuredCitations),
		Logger:            logger,
	})
	if checkError != nil {
		return checkError
	}

	reports := make([]validate.Report, 0, len(analyses))
	failing := 0
	for index, analysis := range analyses {
		logWarnings(logger, analysis.Warnings)
		report := analysis.Report
		report.Document = documentPaths[index].InputPath
		if report.HasErrors() {
			failing++
		}
		reports = append(reports, report)
	}
	rendered, renderError := output.RenderReports(format, reports, options.verbose)
	if renderError != nil {
		return renderError
	}
	fmt.Fprintln(command.OutOrStdout(), strings.TrimRight(rendered, "\n"))

	if options.strict && failing > 0 {
		return fmt.Errorf(strictFailureMessageFormat, failing, len(reports))
	}
	return nil
}

// resolveAndValidatePaths converts input paths to absolute paths, checks that
// each names an existing file and removes duplicates.
func resolveAndValidatePaths(inputPaths []string) ([]types.ValidatedPath, error) {
	uniquePaths := make(map[string]struct{})
	var validatedPaths []types.ValidatedPath
	for _, inputPath := range inputPaths {
		absolutePath, absoluteError := filepath.Abs(inputPath)
		if absoluteError != nil {
			return nil, fmt.Errorf(absolutePathErrorFormat, inputPath, absoluteError)
		}
		cleanPath := filepath.Clean(absolutePath)
		if _, exists := uniquePaths[cleanPath]; exists {
			continue
		}
		fileInformation, statError := os.Stat(cleanPath)
		if statError != nil {
			if os.IsNotExist(statError) {
				return nil, fmt.Errorf(pathNotExistFormat, inputPath, cleanPath)
			}
			return nil, fmt.Errorf(pathStatFormat, inputPath, cleanPath, statError)
		}
		if fileInformation.IsDir() {
			return nil, fmt.Errorf(pathIsDirectoryFormat, inputPath)
		}
		uniquePaths[cleanPath] = struct{}{}
		validatedPaths = append(validatedPaths, types.ValidatedPath{InputPath: inputPath, AbsolutePath: cleanPath})
	}
	if len(validatedPaths) == 0 {
		return nil, errNoDocuments
	}
	return validatedPaths, nil
}
