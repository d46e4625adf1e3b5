package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListCommandBasic(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "", "list", "testdata/runspec.yaml")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	want := readGolden(t, filepath.Join(root, "testdata", "golden", "list_basic.txt"))
	if diff := diffStrings(want, out); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestListCommandFilters(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "", "list", "testdata/runspec.yaml", "--job", "hel")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	want := readGolden(t, filepath.Join(root, "testdata", "golden", "list_filter.txt"))
	if diff := diffStrings(want, out); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestListCommandJSON(t *testing.T) {
	root := projectRoot(t)
	chdir(t, root)

	out, _, err := execute(t, "", "list", "testdata/runspec.yaml", "--format", "json")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	want := readGolden(t, filepath.Join(root, "testdata", "golden", "list_basic.json"))
	if diff := diffStrings(want, out); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestListCommandConfig(t *testing.T) {
	root := projectRoot(t)
	tmp := t.TempDir()
	copyDir(t, filepath.Join(root, "testdata"), filepath.Join(tmp, "testdata"))

	configYAML := []byte(`format: pretty
skip_job:
  - /^fail/
`)
	if err := os.WriteFile(filepath.Join(tmp, ".runman.yml"), configYAML, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	chdir(t, tmp)

	out, _, err := execute(t, "", "list", "testdata/runspec.yaml")
	if err != nil {
		t.Fatalf("command execute: %v", err)
	}

	want := readGolden(t, filepath.Join(root, "testdata", "golden", "list_filter.txt"))
	if diff := diffStrings(want, out); diff != "" {
		t.Fatalf("unexpected output:\n%s", diff)
	}
}

func TestListCommandMissingRunSpec(t *testing.T) {
	chdir(t, t.TempDir())
	if _, _, err := execute(t, "", "list", "nope.yaml"); err == nil {
		t.Fatalf("expected error for missing run spec")
	}
}
