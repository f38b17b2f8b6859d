package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// Job is one HTML file to capture.
type Job struct {
	// Path is the file on disk
	Path string

	// Rel is Path relative to the batch root, with '/' separators
	Rel string
}

// OutputPath maps the job to an image path under outDir with the same
// relative layout and ext (".png", ".jpg") as extension.
func (j Job) OutputPath(outDir, ext string) string {
	rel := filepath.FromSlash(j.Rel)
	return filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+ext)
}

// Collect walks root and returns the files selected by m, sorted by
// relative path. Hidden directories are skipped.
func Collect(root string, m *PatternMatcher) ([]Job, error) {
	var jobs []Job

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if m.Match(rel) {
			jobs = append(jobs, Job{Path: path, Rel: rel})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Slice(jobs, func(i, k int) bool { return jobs[i].Rel < jobs[k].Rel })
	return jobs, nil
}
