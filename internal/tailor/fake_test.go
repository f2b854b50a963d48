package tailor

import (
	"errors"
	"fmt"
	"io/fs"
)

type fakePage struct {
	Source string
	Page   int
}

// fakeLibrary はページの取り込みを記録するだけのインメモリ Library です。
type fakeLibrary struct {
	pages     map[string]int
	encrypted map[string]bool
	failOn    map[string]error

	openNow  int
	maxOpen  int
	opened   []string
	released []string
	aborted  []string
	outputs  map[string][]fakePage
}

func newFakeLibrary(pages map[string]int) *fakeLibrary {
	return &fakeLibrary{
		pages:     pages,
		encrypted: map[string]bool{},
		failOn:    map[string]error{},
		outputs:   map[string][]fakePage{},
	}
}

func (l *fakeLibrary) Open(path string) (Document, error) {
	if l.encrypted[path] {
		return nil, pathError("open", path, ErrEncrypted, nil)
	}
	n, ok := l.pages[path]
	if !ok {
		return nil, pathError("open", path, ErrInputNotFound, fs.ErrNotExist)
	}
	l.openNow++
	if l.openNow > l.maxOpen {
		l.maxOpen = l.openNow
	}
	l.opened = append(l.opened, path)
	return &fakeDocument{lib: l, path: path, pages: n}, nil
}

func (l *fakeLibrary) Create(path string) (Session, error) {
	if err := l.failOn[path]; err != nil {
		return nil, pathError("create", path, ErrOutputUnwritable, err)
	}
	return &fakeSession{lib: l, path: path}, nil
}

type fakeDocument struct {
	lib      *fakeLibrary
	path     string
	pages    int
	released bool
}

func (d *fakeDocument) Path() string   { return d.path }
func (d *fakeDocument) PageCount() int { return d.pages }

func (d *fakeDocument) Close() error {
	if d.released {
		return errors.New("released twice")
	}
	d.released = true
	d.lib.openNow--
	d.lib.released = append(d.lib.released, d.path)
	return nil
}

type fakeSession struct {
	lib     *fakeLibrary
	path    string
	pending []fakePage
	done    bool
}

func (s *fakeSession) Path() string { return s.path }

func (s *fakeSession) ImportPage(ref PageRef) error {
	if s.done {
		return errors.New("import after finish")
	}
	doc := ref.Document().(*fakeDocument)
	if doc.released {
		return fmt.Errorf("import from released document %s", doc.path)
	}
	s.pending = append(s.pending, fakePage{Source: doc.path, Page: ref.Page()})
	return nil
}

func (s *fakeSession) Close() error {
	if s.done {
		return errors.New("closed twice")
	}
	s.done = true
	s.lib.outputs[s.path] = s.pending
	return nil
}

func (s *fakeSession) Abort() error {
	s.done = true
	s.lib.aborted = append(s.lib.aborted, s.path)
	return nil
}
