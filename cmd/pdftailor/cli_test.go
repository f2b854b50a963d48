package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/yourusername/pdf-tailor/internal/pdftest"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	lib, err := tailor.NewPdfcpuLibrary("relaxed")
	if err != nil {
		t.Fatalf("NewPdfcpuLibrary returned error: %v", err)
	}
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, lib)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"frobnicate"}, {"help"}} {
		code, stdout, stderr := runCLI(t, args...)
		if code != exitOK {
			t.Fatalf("args %v: exit = %d", args, code)
		}
		if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, version) {
			t.Fatalf("args %v: expected usage on stdout, got %q", args, stdout)
		}
		if stderr != "" {
			t.Fatalf("args %v: unexpected stderr %q", args, stderr)
		}
	}
}

func TestRunVersion(t *testing.T) {
	for _, args := range [][]string{{"--version"}, {"stitch", "--version"}} {
		code, stdout, _ := runCLI(t, args...)
		if code != exitOK || strings.TrimSpace(stdout) != "pdftailor "+version {
			t.Fatalf("args %v: exit = %d stdout = %q", args, code, stdout)
		}
	}
}

func TestRunStitchUsageErrors(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.Write(t, filepath.Join(dir, "a.pdf"), 100)

	tests := [][]string{
		{"stitch", in},
		{"stitch", "--output", filepath.Join(dir, "out.pdf")},
		{"stitch", "--bogus", in},
		{"unstitch"},
	}
	for _, args := range tests {
		code, _, stderr := runCLI(t, args...)
		if code != exitUsage {
			t.Fatalf("args %v: exit = %d, want %d", args, code, exitUsage)
		}
		if !strings.HasPrefix(stderr, "Error: ") {
			t.Fatalf("args %v: unexpected stderr %q", args, stderr)
		}
	}
}

func TestRunStitchFlagsAfterFiles(t *testing.T) {
	dir := t.TempDir()
	a := pdftest.Write(t, filepath.Join(dir, "a.pdf"), 101, 102)
	b := pdftest.Write(t, filepath.Join(dir, "b.pdf"), 201)
	out := filepath.Join(dir, "out.pdf")

	code, stdout, stderr := runCLI(t, "stitch", a, "-o", out, b)
	if code != exitOK {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "3 pages from 2 files") {
		t.Fatalf("unexpected stdout %q", stdout)
	}
	if diff := cmp.Diff([]int{101, 102, 201}, pdftest.PageWidths(t, out)); diff != "" {
		t.Fatalf("page order mismatch (-want +got):\n%s", diff)
	}
}

func TestRunUnstitch(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.Write(t, filepath.Join(dir, "scan.pdf"), 100, 200, 300)

	code, stdout, stderr := runCLI(t, "unstitch", "--verbose", in, "--output", filepath.Join(dir, "p%02d.pdf"))
	if code != exitOK {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	want := []string{
		filepath.Join(dir, "p01.pdf"),
		filepath.Join(dir, "p02.pdf"),
		filepath.Join(dir, "p03.pdf"),
	}
	if diff := cmp.Diff(want, strings.Fields(stdout)); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "pdftailor: ") {
		t.Fatalf("expected verbose log on stderr, got %q", stderr)
	}
}

func TestRunUnstitchIgnoresExtraInputs(t *testing.T) {
	dir := t.TempDir()
	first := pdftest.Write(t, filepath.Join(dir, "first.pdf"), 100, 200)
	second := pdftest.Write(t, filepath.Join(dir, "second.pdf"), 300)

	code, stdout, stderr := runCLI(t, "unstitch", first, second)
	if code != exitOK {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	want := []string{filepath.Join(dir, "first_1.pdf"), filepath.Join(dir, "first_2.pdf")}
	if diff := cmp.Diff(want, strings.Fields(stdout)); diff != "" {
		t.Fatalf("outputs mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasPrefix(stderr, "Warning: ") || !strings.Contains(stderr, second) {
		t.Fatalf("expected a warning naming the ignored file, got %q", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "second_1.pdf")); !os.IsNotExist(err) {
		t.Fatalf("second input must not be unstitched, stat err=%v", err)
	}
}

func TestRunUnstitchDefaultName(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.Write(t, filepath.Join(dir, "report.pdf"), 100, 200)

	code, _, stderr := runCLI(t, "unstitch", in)
	if code != exitOK {
		t.Fatalf("exit = %d stderr = %q", code, stderr)
	}
	for _, name := range []string{"report_1.pdf", "report_2.pdf"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestRunEncryptedInput(t *testing.T) {
	dir := t.TempDir()
	plain := pdftest.Write(t, filepath.Join(dir, "plain.pdf"), 100, 200)
	locked := filepath.Join(dir, "locked.pdf")
	conf := model.NewDefaultConfiguration()
	conf.UserPW = "user"
	conf.OwnerPW = "owner"
	if err := pdfapi.EncryptFile(plain, locked, conf); err != nil {
		t.Fatalf("EncryptFile returned error: %v", err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatalf("failed to create out dir: %v", err)
	}

	for _, args := range [][]string{
		{"unstitch", locked, "--output", filepath.Join(outDir, "p%d.pdf")},
		{"stitch", "--output", filepath.Join(outDir, "all.pdf"), plain, locked},
	} {
		code, _, stderr := runCLI(t, args...)
		if code != exitFailure {
			t.Fatalf("args %v: exit = %d", args, code)
		}
		if !strings.HasPrefix(stderr, "Error: Encrypted PDF") {
			t.Fatalf("args %v: unexpected stderr %q", args, stderr)
		}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("failed to read out dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no output files, found %d", len(entries))
	}
}

func TestRunMissingInput(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.pdf")

	code, _, stderr := runCLI(t, "stitch", "-o", filepath.Join(dir, "out.pdf"), missing)
	if code != exitFailure {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stderr, missing) {
		t.Fatalf("error should name the missing file, got %q", stderr)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		args []string
		want options
	}{
		{[]string{"a.pdf", "-o", "x.pdf", "b.pdf"}, options{output: "x.pdf", files: []string{"a.pdf", "b.pdf"}}},
		{[]string{"--verbose", "--output=x.pdf", "a.pdf"}, options{output: "x.pdf", verbose: true, files: []string{"a.pdf"}}},
		{[]string{"-o", "x.pdf", "--", "-weird.pdf", "--verbose"}, options{output: "x.pdf", files: []string{"-weird.pdf", "--verbose"}}},
	}
	for _, tt := range tests {
		got, err := parseArgs("stitch", tt.args)
		if err != nil {
			t.Fatalf("parseArgs(%v) returned error: %v", tt.args, err)
		}
		if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(options{})); diff != "" {
			t.Fatalf("parseArgs(%v) mismatch (-want +got):\n%s", tt.args, diff)
		}
	}
}

func TestParseCommand(t *testing.T) {
	for name, want := range map[string]command{
		"stitch":   commandStitch,
		"unstitch": commandUnstitch,
		"Stitch":   commandUnknown,
		"":         commandUnknown,
	} {
		if got := parseCommand(name); got != want {
			t.Errorf("parseCommand(%q) = %v, want %v", name, got, want)
		}
	}
}
