package tailor

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStitchConcatenatesInInputOrder(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 2, "b.pdf": 1, "c.pdf": 3})
	s := NewStitcher(lib, nil)

	report, err := s.Stitch(context.Background(), StitchRequest{
		Inputs: []string{"c.pdf", "a.pdf", "b.pdf"},
		Output: "merged.pdf",
	})
	if err != nil {
		t.Fatalf("Stitch returned error: %v", err)
	}

	want := []fakePage{
		{"c.pdf", 1}, {"c.pdf", 2}, {"c.pdf", 3},
		{"a.pdf", 1}, {"a.pdf", 2},
		{"b.pdf", 1},
	}
	if diff := cmp.Diff(want, lib.outputs["merged.pdf"]); diff != "" {
		t.Fatalf("unexpected page order (-want +got):\n%s", diff)
	}

	wantReport := &StitchReport{
		Output: "merged.pdf",
		Pages:  6,
		Sources: []SourceReport{
			{Path: "c.pdf", Pages: 3},
			{Path: "a.pdf", Pages: 2},
			{Path: "b.pdf", Pages: 1},
		},
	}
	if diff := cmp.Diff(wantReport, report); diff != "" {
		t.Fatalf("unexpected report (-want +got):\n%s", diff)
	}
}

func TestStitchReleasesEachSourceBeforeOpeningNext(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 4, "b.pdf": 4, "c.pdf": 4})
	s := NewStitcher(lib, nil)

	if _, err := s.Stitch(context.Background(), StitchRequest{
		Inputs: []string{"a.pdf", "b.pdf", "c.pdf"},
		Output: "out.pdf",
	}); err != nil {
		t.Fatalf("Stitch returned error: %v", err)
	}

	if lib.maxOpen != 1 {
		t.Fatalf("expected at most one open source, got %d", lib.maxOpen)
	}
	if diff := cmp.Diff(lib.opened, lib.released); diff != "" {
		t.Fatalf("every opened document must be released in order (-opened +released):\n%s", diff)
	}
}

func TestStitchSameFileTwice(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 1})
	s := NewStitcher(lib, nil)

	report, err := s.Stitch(context.Background(), StitchRequest{
		Inputs: []string{"a.pdf", "a.pdf"},
		Output: "twice.pdf",
	})
	if err != nil {
		t.Fatalf("Stitch returned error: %v", err)
	}
	if report.Pages != 2 {
		t.Fatalf("expected 2 pages, got %d", report.Pages)
	}
}

func TestStitchMissingInputAbortsWholeOperation(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 2, "c.pdf": 1})
	s := NewStitcher(lib, nil)

	report, err := s.Stitch(context.Background(), StitchRequest{
		Inputs: []string{"a.pdf", "missing.pdf", "c.pdf"},
		Output: "merged.pdf",
	})
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if report != nil {
		t.Fatalf("expected no report on failure, got %+v", report)
	}
	if !errors.Is(err, ErrInputNotFound) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("error should classify as missing input: %v", err)
	}
	var pathErr *PathError
	if !errors.As(err, &pathErr) || pathErr.Path != "missing.pdf" {
		t.Fatalf("error should name the failing file, got %v", err)
	}

	if _, ok := lib.outputs["merged.pdf"]; ok {
		t.Fatal("no output may be committed for an aborted stitch")
	}
	if diff := cmp.Diff([]string{"merged.pdf"}, lib.aborted); diff != "" {
		t.Fatalf("session should be aborted (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.pdf"}, lib.released); diff != "" {
		t.Fatalf("the already opened input must be released (-want +got):\n%s", diff)
	}
	for _, p := range lib.opened {
		if p == "c.pdf" {
			t.Fatal("inputs after the failure must not be opened")
		}
	}
}

func TestStitchEncryptedInput(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 1, "locked.pdf": 2})
	lib.encrypted["locked.pdf"] = true

	_, err := NewStitcher(lib, nil).Stitch(context.Background(), StitchRequest{
		Inputs: []string{"a.pdf", "locked.pdf"},
		Output: "merged.pdf",
	})
	if !errors.Is(err, ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
	if len(lib.outputs) != 0 {
		t.Fatalf("expected no committed output, got %v", lib.outputs)
	}
}

func TestStitchUnwritableOutputOpensNoInputs(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 1})
	lib.failOn["nowhere/out.pdf"] = fs.ErrPermission

	_, err := NewStitcher(lib, nil).Stitch(context.Background(), StitchRequest{
		Inputs: []string{"a.pdf"},
		Output: "nowhere/out.pdf",
	})
	if !errors.Is(err, ErrOutputUnwritable) {
		t.Fatalf("expected ErrOutputUnwritable, got %v", err)
	}
	if len(lib.opened) != 0 {
		t.Fatalf("inputs must not be opened when the output cannot be created: %v", lib.opened)
	}
}

func TestStitchRequiresInputs(t *testing.T) {
	_, err := NewStitcher(newFakeLibrary(nil), nil).Stitch(context.Background(), StitchRequest{Output: "out.pdf"})
	if !errors.Is(err, ErrNoInputs) {
		t.Fatalf("expected ErrNoInputs, got %v", err)
	}
}

func TestStitchReportsProgressPerDocument(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 3, "b.pdf": 5})
	var calls [][2]int

	_, err := NewStitcher(lib, nil).Stitch(context.Background(), StitchRequest{
		Inputs: []string{"a.pdf", "b.pdf"},
		Output: "out.pdf",
		Progress: func(done, total int) {
			calls = append(calls, [2]int{done, total})
		},
	})
	if err != nil {
		t.Fatalf("Stitch returned error: %v", err)
	}
	if diff := cmp.Diff([][2]int{{1, 2}, {2, 2}}, calls); diff != "" {
		t.Fatalf("unexpected progress calls (-want +got):\n%s", diff)
	}
}

func TestStitchStopsWhenCanceled(t *testing.T) {
	lib := newFakeLibrary(map[string]int{"a.pdf": 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStitcher(lib, nil).Stitch(ctx, StitchRequest{Inputs: []string{"a.pdf"}, Output: "out.pdf"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(lib.outputs) != 0 {
		t.Fatal("canceled stitch must not commit output")
	}
}
