package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTaxonomyDefault(t *testing.T) {
	t.Setenv("MAILFOLD_TAXONOMY", "")

	tax, err := loadTaxonomy("")
	if err != nil {
		t.Fatalf("loadTaxonomy(\"\") error = %v", err)
	}
	if !tax.ContainsName("NEWSLETTERS") {
		t.Error("default taxonomy missing NEWSLETTERS")
	}
}

func TestLoadTaxonomyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	yaml := "labels:\n  - WORK/Clients\n  - WORK/Internal\n"
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}

	tax, err := loadTaxonomy(path)
	if err != nil {
		t.Fatalf("loadTaxonomy(%q) error = %v", path, err)
	}
	if !tax.ContainsName("WORK/Clients") {
		t.Error("taxonomy missing WORK/Clients")
	}
	if !tax.ContainsName("WORK") {
		t.Error("taxonomy missing implied parent WORK")
	}
}

func TestLoadTaxonomyFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte("labels:\n  - HOME\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MAILFOLD_TAXONOMY", path)

	tax, err := loadTaxonomy("")
	if err != nil {
		t.Fatalf("loadTaxonomy via env error = %v", err)
	}
	if !tax.ContainsName("HOME") {
		t.Error("taxonomy missing HOME")
	}
}

func TestLoadTaxonomyMissingFile(t *testing.T) {
	_, err := loadTaxonomy(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("loadTaxonomy() succeeded for a missing file")
	}
}
