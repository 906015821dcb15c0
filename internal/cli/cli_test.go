package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/temirov/latextools/internal/services/clipboard"
	"github.com/temirov/latextools/internal/tokenizer"
	"github.com/temirov/latextools/internal/utils"
)

const (
	mainDocument = `\documentclass{article}
\begin{document}
\input{chapter}
See Figure~\ref{fig:a} and \cite{k1}.
\bibliographystyle{plain}
\bibliography{refs}
\end{document}
`
	chapterDocument = `\begin{figure}
\caption{A figure}
\label{fig:a}
\end{figure}
`
	referencesDatabase = `@article{k1,
  author = {Smith, J.},
  title = {First},
  journal = {Journal},
  year = {2020}
}

@book{k2,
  author = {Doe, A.},
  title = {Second},
  publisher = {Press},
  year = {2019}
}
`
	brokenDocument = `\begin{document}
\label{dup}
\label{dup}
\ref{missing}
\end{document}
`
)

type stubCounter struct {
	tokens int
}

func (counter stubCounter) Name() string {
	return "stub"
}

func (counter stubCounter) CountString(input string) (int, error) {
	return counter.tokens, nil
}

type testHarness struct {
	app       *application
	copied    []string
	copyError error
	stdout    bytes.Buffer
	stderr    bytes.Buffer
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	harness := &testHarness{}
	harness.app = &application{
		logger: zap.NewNop(),
		copier: clipboard.CopierFunc(func(text string) error {
			if harness.copyError != nil {
				return harness.copyError
			}
			harness.copied = append(harness.copied, text)
			return nil
		}),
		newCounter: func(cfg tokenizer.Config) (tokenizer.Counter, string, error) {
			return stubCounter{tokens: 42}, cfg.Model, nil
		},
	}
	return harness
}

func (harness *testHarness) run(arguments ...string) error {
	rootCommand := harness.app.createRootCommand()
	rootCommand.SetOut(&harness.stdout)
	rootCommand.SetErr(&harness.stderr)
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, arguments))
	return rootCommand.Execute()
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	directory := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(directory, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return directory
}

func standardProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"main.tex":    mainDocument,
		"chapter.tex": chapterDocument,
		"refs.bib":    referencesDatabase,
	})
}

func TestRootCommandProcessesDocument(t *testing.T) {
	harness := newTestHarness(t)
	directory := standardProject(t)
	outputPath := filepath.Join(directory, "onefile.tex")

	if err := harness.run(filepath.Join(directory, "main.tex"), "-o", outputPath); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	written, readError := os.ReadFile(outputPath)
	if readError != nil {
		t.Fatalf("read output: %v", readError)
	}
	content := string(written)
	for _, expected := range []string{`\caption{A figure}`, `\begin{thebibliography}`, `\bibitem[Smith(2020)]{k1}`} {
		if !strings.Contains(content, expected) {
			t.Fatalf("output missing %q:\n%s", expected, content)
		}
	}
	for _, unexpected := range []string{`\input{chapter}`, `\bibliography{refs}`, `{k2}`} {
		if strings.Contains(content, unexpected) {
			t.Fatalf("output must not contain %q:\n%s", unexpected, content)
		}
	}
	if !strings.Contains(harness.stderr.String(), "Summary: "+outputPath+" (all mode), 2 files") {
		t.Fatalf("unexpected summary %q", harness.stderr.String())
	}
	if harness.stdout.Len() == 0 {
		t.Fatalf("expected a validation report on stdout")
	}
}

func TestRootCommandBibtexShortcut(t *testing.T) {
	harness := newTestHarness(t)
	directory := standardProject(t)
	outputPath := filepath.Join(directory, "cited.tex")

	if err := harness.run(filepath.Join(directory, "main.tex"), "-b", "-o", outputPath); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if _, statError := os.Stat(outputPath); !errors.Is(statError, os.ErrNotExist) {
		t.Fatalf("bibtex mode must not write %s", outputPath)
	}
	written, readError := os.ReadFile(filepath.Join(directory, "cited.bib"))
	if readError != nil {
		t.Fatalf("read bibliography: %v", readError)
	}
	if !strings.Contains(string(written), "@article{k1,") || strings.Contains(string(written), "@book{k2,") {
		t.Fatalf("unexpected exported entries:\n%s", written)
	}
	if !strings.Contains(harness.stderr.String(), "(bibtex mode)") {
		t.Fatalf("summary must name bibtex mode, got %q", harness.stderr.String())
	}
}

func TestRootCommandCopiesAndCountsTokens(t *testing.T) {
	harness := newTestHarness(t)
	directory := standardProject(t)
	outputPath := filepath.Join(directory, "onefile.tex")

	if err := harness.run(filepath.Join(directory, "main.tex"), "-o", outputPath, "--copy", "--tokens", "--model", "gpt-test"); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	written, readError := os.ReadFile(outputPath)
	if readError != nil {
		t.Fatalf("read output: %v", readError)
	}
	if len(harness.copied) != 1 || harness.copied[0] != string(written) {
		t.Fatalf("clipboard must receive the written content")
	}
	if !strings.Contains(harness.stderr.String(), "42 tokens (model: gpt-test)") {
		t.Fatalf("summary must carry the token count, got %q", harness.stderr.String())
	}
}

func TestRootCommandClipboardFailureIsNotFatal(t *testing.T) {
	harness := newTestHarness(t)
	harness.copyError = errors.New("no clipboard")
	directory := standardProject(t)

	if err := harness.run(filepath.Join(directory, "main.tex"), "-o", filepath.Join(directory, "out.tex"), "--copy", "yes"); err != nil {
		t.Fatalf("clipboard failure must not fail the command: %v", err)
	}
}

func TestRootCommandReportFormats(t *testing.T) {
	harness := newTestHarness(t)
	directory := writeProject(t, map[string]string{"main.tex": brokenDocument})

	if err := harness.run(filepath.Join(directory, "main.tex"), "-o", filepath.Join(directory, "out.tex"), "--format", "JSON"); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	var decoded struct {
		DuplicateLabels     []json.RawMessage `json:"duplicateLabels"`
		UndefinedReferences []json.RawMessage `json:"undefinedReferences"`
	}
	if err := json.Unmarshal(harness.stdout.Bytes(), &decoded); err != nil {
		t.Fatalf("stdout is not a JSON report: %v\n%s", err, harness.stdout.String())
	}
	if len(decoded.DuplicateLabels) != 1 || len(decoded.UndefinedReferences) != 1 {
		t.Fatalf("unexpected report %s", harness.stdout.String())
	}
}

func TestRootCommandRejectsInvalidFormat(t *testing.T) {
	harness := newTestHarness(t)
	directory := standardProject(t)
	outputPath := filepath.Join(directory, "onefile.tex")

	err := harness.run(filepath.Join(directory, "main.tex"), "-o", outputPath, "--format", "pdf")
	if err == nil || !strings.Contains(err.Error(), "invalid format value 'pdf'") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
	if _, statError := os.Stat(outputPath); !errors.Is(statError, os.ErrNotExist) {
		t.Fatalf("nothing must be written for an invalid format")
	}
}

func TestRootCommandAppliesConfiguration(t *testing.T) {
	harness := newTestHarness(t)
	directory := standardProject(t)
	configurationPath := filepath.Join(directory, "custom.yaml")
	outputPath := filepath.Join(directory, "configured.tex")
	configuration := "process:\n  output: " + outputPath + "\n  mode: bibtex\n"
	if err := os.WriteFile(configurationPath, []byte(configuration), 0o600); err != nil {
		t.Fatalf("write configuration: %v", err)
	}

	if err := harness.run(filepath.Join(directory, "main.tex"), "--config", configurationPath); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if _, statError := os.Stat(filepath.Join(directory, "configured.bib")); statError != nil {
		t.Fatalf("configured output and mode must apply: %v", statError)
	}

	harness.stderr.Reset()
	flagOutput := filepath.Join(directory, "flag.tex")
	if err := harness.run(filepath.Join(directory, "main.tex"), "--config", configurationPath, "--mode", "all", "-o", flagOutput); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if _, statError := os.Stat(flagOutput); statError != nil {
		t.Fatalf("flags must override configuration: %v", statError)
	}
}

func TestCheckCommand(t *testing.T) {
	testCases := []struct {
		name          string
		files         map[string]string
		arguments     []string
		expectError   bool
		expectReports int
	}{
		{
			name:          "clean_document",
			files:         map[string]string{"main.tex": mainDocument, "chapter.tex": chapterDocument, "refs.bib": referencesDatabase},
			arguments:     []string{"main.tex"},
			expectReports: 1,
		},
		{
			name:          "errors_without_strict",
			files:         map[string]string{"broken.tex": brokenDocument},
			arguments:     []string{"broken.tex"},
			expectReports: 1,
		},
		{
			name:        "errors_with_strict",
			files:       map[string]string{"broken.tex": brokenDocument},
			arguments:   []string{"broken.tex", "--strict"},
			expectError: true,
		},
		{
			name:          "duplicate_paths_checked_once",
			files:         map[string]string{"main.tex": mainDocument, "chapter.tex": chapterDocument, "refs.bib": referencesDatabase, "broken.tex": brokenDocument},
			arguments:     []string{"main.tex", "broken.tex", "main.tex"},
			expectReports: 2,
		},
		{
			name:        "missing_document",
			files:       map[string]string{},
			arguments:   []string{"absent.tex"},
			expectError: true,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			harness := newTestHarness(t)
			directory := writeProject(t, testCase.files)
			arguments := []string{"check", "--format", "json"}
			for _, argument := range testCase.arguments {
				if strings.HasSuffix(argument, ".tex") {
					argument = filepath.Join(directory, argument)
				}
				arguments = append(arguments, argument)
			}

			err := harness.run(arguments...)
			if testCase.expectError {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("check failed: %v", err)
			}
			if testCase.expectReports == 1 {
				var report map[string]any
				if decodeError := json.Unmarshal(harness.stdout.Bytes(), &report); decodeError != nil {
					t.Fatalf("expected one JSON report: %v", decodeError)
				}
				return
			}
			var reports []map[string]any
			if decodeError := json.Unmarshal(harness.stdout.Bytes(), &reports); decodeError != nil {
				t.Fatalf("expected a JSON report list: %v", decodeError)
			}
			if len(reports) != testCase.expectReports {
				t.Fatalf("expected %d reports, got %d", testCase.expectReports, len(reports))
			}
			if reports[0]["document"] != filepath.Join(directory, "main.tex") {
				t.Fatalf("reports must keep the input order, got %v", reports[0]["document"])
			}
		})
	}
}

func TestCheckCommandUsesSuppliedBibliography(t *testing.T) {
	citingDocument := "See \\cite{k1}.\n"
	testCases := []struct {
		name        string
		useFlag     bool
		useConfig   bool
		expectError bool
	}{
		{name: "bib_flag", useFlag: true},
		{name: "process_configuration", useConfig: true},
		{name: "no_bibliography", expectError: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			harness := newTestHarness(t)
			directory := writeProject(t, map[string]string{"paper.tex": citingDocument, "library.bib": referencesDatabase})
			libraryPath := filepath.Join(directory, "library.bib")
			arguments := []string{"check", "--strict", filepath.Join(directory, "paper.tex")}
			if testCase.useFlag {
				arguments = append(arguments, "--bib", libraryPath)
			}
			if testCase.useConfig {
				configurationPath := filepath.Join(directory, "custom.yaml")
				configuration := "process:\n  bibliography: [" + libraryPath + "]\n"
				if writeError := os.WriteFile(configurationPath, []byte(configuration), 0o600); writeError != nil {
					t.Fatalf("write configuration: %v", writeError)
				}
				arguments = append(arguments, "--config", configurationPath)
			}

			runError := harness.run(arguments...)
			if testCase.expectError {
				if runError == nil {
					t.Fatalf("expected --strict to fail on the unresolved citation")
				}
				return
			}
			if runError != nil {
				t.Fatalf("check failed: %v", runError)
			}
		})
	}
}

func TestCheckCommandWritesNothing(t *testing.T) {
	harness := newTestHarness(t)
	directory := standardProject(t)
	if err := harness.run("check", filepath.Join(directory, "main.tex")); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	entries, readError := os.ReadDir(directory)
	if readError != nil {
		t.Fatalf("read directory: %v", readError)
	}
	if len(entries) != 3 {
		t.Fatalf("check must not create files, found %d entries", len(entries))
	}
}

func TestInitCommandGlobal(t *testing.T) {
	harness := newTestHarness(t)
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)

	if err := harness.run("init", "--global"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	expectedPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
	if _, statError := os.Stat(expectedPath); statError != nil {
		t.Fatalf("expected configuration at %s: %v", expectedPath, statError)
	}
	if !strings.Contains(harness.stdout.String(), expectedPath) {
		t.Fatalf("init must print the written path, got %q", harness.stdout.String())
	}
	if err := harness.run("init", "--global"); err == nil {
		t.Fatalf("init must refuse to overwrite without --force")
	}
	if err := harness.run("init", "--global", "--force"); err != nil {
		t.Fatalf("init --force failed: %v", err)
	}
}
