package commands

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// CheckDocuments analyzes every document concurrently without writing anything.
// Results are returned in the order of paths. The first fatal error cancels the
// remaining work and is returned.
func CheckDocuments(ctx context.Context, paths []string, options AnalysisOptions) ([]Analysis, error) {
	analyses := make([]Analysis, len(paths))
	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))
	for index, path := range paths {
		group.Go(func() error {
			if contextError := groupContext.Err(); contextError != nil {
				return contextError
			}
			documentOptions := options
			documentOptions.InputPath = path
			analysis, analysisError := Analyze(documentOptions)
			if analysisError != nil {
				return analysisError
			}
			analyses[index] = analysis
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return analyses, nil
}
