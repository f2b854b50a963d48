// Package tailor はPDFをページ単位で組み替えるエンジンを提供します。
//
// Stitcher は複数のPDFを入力順に1つへ連結し、Unstitcher は1つのPDFを
// 1ページ1ファイルに分解します。PDFの読み書き自体は Library 実装に委ねます。
package tailor

import "fmt"

// Library はPDFの読み込み元と書き込み先を提供します。
type Library interface {
	// Open はPDFを読み取り専用で開きます。
	// エラーは ErrInputNotFound / ErrInputUnreadable / ErrEncrypted に分類されます。
	Open(path string) (Document, error)
	// Create は path へ書き込む出力セッションを開始します。
	// エラーは ErrOutputUnwritable / ErrOutputBusy に分類されます。
	Create(path string) (Session, error)
}

// Document は開いているソースPDFです。ページの取り込みが済んだら Close で解放します。
type Document interface {
	Path() string
	PageCount() int
	Close() error
}

// Session は出力先PDFへの書き込みセッションです。
// Close（確定）か Abort（破棄）のどちらかを一度だけ呼びます。
type Session interface {
	Path() string
	ImportPage(ref PageRef) error
	Close() error
	Abort() error
}

// PageRef はソース文書内の1ページ（1始まり）を指します。
type PageRef struct {
	doc  Document
	page int
}

// NewPageRef は page が doc のページ範囲内であることを確認して PageRef を作ります。
func NewPageRef(doc Document, page int) (PageRef, error) {
	if doc == nil {
		return PageRef{}, fmt.Errorf("%w: nil document", ErrPageOutOfRange)
	}
	if page < 1 || page > doc.PageCount() {
		return PageRef{}, fmt.Errorf("%w: page %d of %s (1-%d)", ErrPageOutOfRange, page, doc.Path(), doc.PageCount())
	}
	return PageRef{doc: doc, page: page}, nil
}

// Document は参照元の文書を返します。
func (r PageRef) Document() Document { return r.doc }

// Page は1始まりのページ番号を返します。
func (r PageRef) Page() int { return r.page }

// ProgressFunc は処理単位が1つ終わるごとに呼ばれます。
// Stitch では入力文書、Unstitch では出力ページが単位です。
type ProgressFunc func(done, total int)

func reportProgress(fn ProgressFunc, done, total int) {
	if fn != nil {
		fn(done, total)
	}
}
