package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"molsim/internal/domain"
)

// Loader discovers molecule CSV files under a directory using include and
// exclude glob patterns. Each CSV row is smiles,name[,category]; a header row
// starting with "smiles" is skipped.
type Loader struct {
	includes []string
	excludes []string
}

// NewLoader creates a loader with the given glob patterns. With no includes,
// all *.csv files are taken.
func NewLoader(includes, excludes []string) *Loader {
	if len(includes) == 0 {
		includes = []string{"**/*.csv"}
	}
	return &Loader{
		includes: includes,
		excludes: excludes,
	}
}

// Load parses all matching files under root and returns their molecules,
// deduplicated by SMILES (first occurrence wins).
func (l *Loader) Load(root string) ([]domain.Molecule, error) {
	files, err := l.walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dataset dir: %w", err)
	}

	var out []domain.Molecule
	seen := make(map[string]bool)
	for _, path := range files {
		mols, err := parseCSV(path)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, m := range mols {
			if seen[m.SMILES] {
				continue
			}
			seen[m.SMILES] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// Dedupe merges molecule lists, keeping the first occurrence of each SMILES.
func Dedupe(lists ...[]domain.Molecule) []domain.Molecule {
	var out []domain.Molecule
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, m := range list {
			if m.SMILES == "" || seen[m.SMILES] {
				continue
			}
			seen[m.SMILES] = true
			out = append(out, m)
		}
	}
	return out
}

func (l *Loader) walk(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if l.shouldExclude(relPath + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if l.shouldInclude(relPath) && !l.shouldExclude(relPath) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (l *Loader) shouldInclude(path string) bool {
	for _, pattern := range l.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (l *Loader) shouldExclude(path string) bool {
	for _, pattern := range l.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func parseCSV(path string) ([]domain.Molecule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []domain.Molecule
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		smiles := strings.TrimSpace(row[0])
		if smiles == "" {
			continue
		}
		if i == 0 && strings.EqualFold(smiles, "smiles") {
			continue
		}
		m := domain.Molecule{SMILES: smiles}
		if len(row) > 1 {
			m.Name = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			m.Category = strings.TrimSpace(row[2])
		}
		out = append(out, m)
	}
	return out, nil
}
