package tailor

import (
	"context"
	"errors"
	"io"
	"log"
)

// withDocument は path を開いて fn に渡し、どの経路で抜けても文書を解放します。
func withDocument(lib Library, path string, fn func(Document) error) (err error) {
	doc, err := lib.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := doc.Close(); closeErr != nil {
			err = errors.Join(err, pathError("release", path, ErrInputUnreadable, closeErr))
		}
	}()
	return fn(doc)
}

// withSession は path への出力セッションを開き、fn が成功すれば確定、失敗すれば破棄します。
func withSession(lib Library, path string, fn func(Session) error) (err error) {
	session, err := lib.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if abortErr := session.Abort(); abortErr != nil {
				err = errors.Join(err, abortErr)
			}
			return
		}
		err = session.Close()
	}()
	return fn(session)
}

func importAll(ctx context.Context, session Session, doc Document) error {
	for page := 1; page <= doc.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref, err := NewPageRef(doc, page)
		if err != nil {
			return err
		}
		if err := session.ImportPage(ref); err != nil {
			return err
		}
	}
	return nil
}

func discardLogger(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return log.New(io.Discard, "", 0)
}
