package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/latextools/internal/commands"
	"github.com/temirov/latextools/internal/output"
	"github.com/temirov/latextools/internal/tokenizer"
	"github.com/temirov/latextools/internal/types"
	"github.com/temirov/latextools/internal/validate"
)

// runProcess consolidates inputPath, prints its validation report to standard
// output and the summary of the written file to standard error.
func (app *application) runProcess(command *cobra.Command, inputPath string, options processOptions, configuredCitations []string) error {
	format := strings.ToLower(options.format)
	if !isSupportedFormat(format) {
		return fmt.Errorf(invalidFormatMessage, format)
	}
	bibliographyPaths, pathError := absolutePaths(options.bibliographyPaths)
	if pathError != nil {
		return pathError
	}
	logger := app.commandLogger(options.verbose)

	result, processError := commands.Process(commands.ProcessOptions{
		AnalysisOptions: commands.AnalysisOptions{
			InputPath:         inputPath,
			Mode:              options.mode,
			BibliographyPaths: bibliographyPaths,
			Markers:           options.markers,
			CitationCommands:  citationCommands(configuredCitations),
			Logger:            logger,
		},
		OutputPath: options.outputPath,
	})
	if processError != nil {
		return processError
	}
	logWarnings(logger, result.Warnings)

	rendered, renderError := output.RenderReports(format, []validate.Report{result.Report}, options.verbose)
	if renderError != nil {
		return renderError
	}
	fmt.Fprintln(command.OutOrStdout(), strings.TrimRight(rendered, "\n"))

	summary := output.NewOutputSummary(result.OutputPath, options.mode, len(result.Document.Files), int64(len(result.Content)), len(result.Citations), result.Entries)
	if options.tokens {
		app.countTokens(logger, summary, result.Content, options.model)
	}
	fmt.Fprintln(command.ErrOrStderr(), output.FormatSummaryLine(summary))

	if options.copyToClipboard {
		if copyError := app.copier.Copy(result.Content); copyError != nil {
			logger.Warn(clipboardFailedMessage, zap.Error(copyError))
		} else {
			logger.Info(copiedMessage, zap.String(logFieldPath, result.OutputPath))
		}
	}
	return nil
}

// countTokens records the token count of content on summary. Failures are
// logged and leave the summary without tokens.
func (app *application) countTokens(logger *zap.Logger, summary *types.OutputSummary, content, model string) {
	counter, resolvedModel, counterError := app.newCounter(tokenizer.Config{Model: model})
	if counterError != nil {
		logger.Warn(tokenCountFailedMessage, zap.Error(counterError))
		return
	}
	counted, countError := tokenizer.CountBytes(counter, []byte(content))
	if countError != nil {
		logger.Warn(tokenCountFailedMessage, zap.Error(countError))
		return
	}
	if counted.Counted {
		summary.TotalTokens = counted.Tokens
		summary.Model = resolvedModel
	}
}

// logWarnings writes each diagnostic at debug level; the report carries them too.
func logWarnings(logger *zap.Logger, warnings []types.Warning) {
	for _, warning := range warnings {
		logger.Debug(diagnosticMessage,
			zap.String("kind", string(warning.Kind)),
			zap.String("message", warning.Message),
			zap.String(logFieldPath, warning.Path),
		)
	}
}
