package reconstruction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// imageExtensions are the inputs ListImages picks up
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// BatchResult pairs one input path with its reconstruction or error
type BatchResult struct {
	Path   string
	Result *Result
	Err    error
}

// ListImages returns the image files in dir ordered by the number embedded
// in their names, then by name.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	sort.Slice(files, func(i, j int) bool {
		ni, nj := extractNumber(files[i]), extractNumber(files[j])
		if ni != nj {
			return ni < nj
		}
		return files[i] < files[j]
	})

	for i, f := range files {
		files[i] = filepath.Join(dir, f)
	}
	return files, nil
}

// extractNumber extracts the digits of a filename as one number, 0 if none
func extractNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return n
}

// ProcessBatch reconstructs every path with at most numWorkers images in
// flight. Results are returned in input order. Once ctx is cancelled the
// remaining inputs fail with the context error.
func (r *Reconstructor) ProcessBatch(ctx context.Context, paths []string, numWorkers int) []BatchResult {
	if numWorkers < 1 {
		numWorkers = 1
	}

	type processingResult struct {
		index int
		res   *Result
		err   error
	}
	resultChan := make(chan processingResult)
	sem := make(chan struct{}, numWorkers)

	for i, path := range paths {
		go func(index int, path string) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				resultChan <- processingResult{index: index, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				resultChan <- processingResult{index: index, err: err}
				return
			}
			res, err := r.ProcessFile(path)
			resultChan <- processingResult{index: index, res: res, err: err}
		}(i, path)
	}

	results := make([]BatchResult, len(paths))
	for completed := 0; completed < len(paths); completed++ {
		pr := <-resultChan
		results[pr.index] = BatchResult{Path: paths[pr.index], Result: pr.res, Err: pr.err}

		if r.params.Verbose {
			progress := float64(completed+1) / float64(len(paths)) * 100
			fmt.Printf("Processing images: %.1f%% complete\n", progress)
		}
	}
	return results
}
