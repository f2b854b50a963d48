// Package pdftest はテスト用の小さなPDFを生成します。
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
)

// Build はページごとに MediaBox の幅が異なるPDFを生成します。
// 幅でページを識別できるので、並び順の検証に使います。
func Build(widths ...int) []byte {
	var buf bytes.Buffer
	total := 2 + 2*len(widths)
	offsets := make([]int, total+1)

	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(widths))
	for i := range widths {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(widths)))
	for i, w := range widths {
		pageObj := 3 + 2*i
		content := fmt.Sprintf("0 0 m %d 300 l S", w)
		writeObj(pageObj, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 300] /Resources << >> /Contents %d 0 R >>", w, pageObj+1))
		writeObj(pageObj+1, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xref)
	return buf.Bytes()
}

// Write は Build の結果を path に書き込み、path を返します。
func Write(t testing.TB, path string, widths ...int) string {
	t.Helper()
	if err := os.WriteFile(path, Build(widths...), 0o644); err != nil {
		t.Fatalf("failed to write test pdf: %v", err)
	}
	return path
}

// PageWidths は path の各ページの幅を返します。
func PageWidths(t testing.TB, path string) []int {
	t.Helper()
	dims, err := pdfapi.PageDimsFile(path)
	if err != nil {
		t.Fatalf("failed to read page dimensions of %s: %v", path, err)
	}
	widths := make([]int, len(dims))
	for i, d := range dims {
		widths[i] = int(d.Width)
	}
	return widths
}
