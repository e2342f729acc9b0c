package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"molsim/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoaderParsesCSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mols.csv"),
		"smiles,name,category\nCCO,Ethanol,alcohol\nc1ccccc1,Benzene,aromatic\n")

	mols, err := NewLoader(nil, nil).Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mols) != 2 {
		t.Fatalf("got %d molecules, want 2", len(mols))
	}
	if mols[0].SMILES != "CCO" || mols[0].Name != "Ethanol" || mols[0].Category != "alcohol" {
		t.Errorf("first molecule = %+v", mols[0])
	}
}

func TestLoaderHandlesShortRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "mols.csv"), "CCO\nCC(C)O,Isopropanol\n")

	mols, err := NewLoader(nil, nil).Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mols) != 2 {
		t.Fatalf("got %d molecules, want 2", len(mols))
	}
	if mols[0].Name != "" || mols[1].Name != "Isopropanol" {
		t.Errorf("names = %q, %q", mols[0].Name, mols[1].Name)
	}
}

func TestLoaderDeduplicatesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), "CCO,Ethanol\n")
	writeFile(t, filepath.Join(dir, "b.csv"), "CCO,Duplicate\nCCCCO,Butanol\n")

	mols, err := NewLoader(nil, nil).Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mols) != 2 {
		t.Fatalf("got %d molecules, want 2", len(mols))
	}
}

func TestLoaderGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep", "a.csv"), "CCO,Ethanol\n")
	writeFile(t, filepath.Join(dir, "skip", "b.csv"), "CCCCO,Butanol\n")
	writeFile(t, filepath.Join(dir, "keep", "notes.txt"), "not a dataset")

	mols, err := NewLoader([]string{"keep/**/*.csv"}, []string{"skip/**"}).Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(mols) != 1 || mols[0].SMILES != "CCO" {
		t.Fatalf("got %+v, want only CCO", mols)
	}
}

func TestDedupe(t *testing.T) {
	a := []domain.Molecule{{SMILES: "CCO", Name: "Ethanol"}}
	b := []domain.Molecule{{SMILES: "CCO", Name: "Other"}, {SMILES: "CCCCO"}, {SMILES: ""}}
	out := Dedupe(a, b)
	if len(out) != 2 {
		t.Fatalf("got %d, want 2", len(out))
	}
	if out[0].Name != "Ethanol" {
		t.Errorf("first occurrence must win, got %q", out[0].Name)
	}
}

func TestSampleMoleculesUniqueKeys(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range SampleMolecules {
		if m.SMILES == "" {
			t.Error("sample molecule with empty SMILES")
		}
		if seen[m.SMILES] {
			t.Errorf("duplicate sample SMILES %s", m.SMILES)
		}
		seen[m.SMILES] = true
	}
}
