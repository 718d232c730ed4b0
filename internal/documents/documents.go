// Package documents reads job descriptions and CVs from disk.
package documents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spigell/cv-ranker/internal/matching"
)

// Extensions lists the file types picked up when a CV path is a directory.
var Extensions = []string{".txt", ".md"}

// ReadText returns the trimmed content of a plain text file.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Expand replaces every directory in paths with its text files, sorted by name.
// Plain files are kept as given.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
				continue
			}
			out = append(out, filepath.Join(p, e.Name()))
		}
	}
	return out, nil
}

// Load builds a request from a job description file and CV files or directories.
// Filenames are the base names of the CV files.
func Load(jdPath string, cvPaths []string) (*matching.AnalysisRequest, error) {
	jd, err := ReadText(jdPath)
	if err != nil {
		return nil, fmt.Errorf("job description: %w", err)
	}

	files, err := Expand(cvPaths)
	if err != nil {
		return nil, fmt.Errorf("listing cv files: %w", err)
	}

	req := &matching.AnalysisRequest{
		JDText:    jd,
		CVTexts:   make([]string, 0, len(files)),
		Filenames: make([]string, 0, len(files)),
	}
	for _, f := range files {
		text, err := ReadText(f)
		if err != nil {
			return nil, fmt.Errorf("cv: %w", err)
		}
		req.CVTexts = append(req.CVTexts, text)
		req.Filenames = append(req.Filenames, filepath.Base(f))
	}

	return req, nil
}

// LoadRequest decodes a JSON encoded AnalysisRequest.
func LoadRequest(path string) (*matching.AnalysisRequest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var req matching.AnalysisRequest
	if err := json.NewDecoder(file).Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding request %q: %w", path, err)
	}
	return &req, nil
}
