package tailor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// %% はテンプレート内のリテラル % として扱うため、プレースホルダーと同時にマッチさせる
	templateToken = regexp.MustCompile(`%%|%(?:0[1-9][0-9]*)?d`)
	pdfFilename   = regexp.MustCompile(`^(.+)\.pdf$`)
)

// ValidateTemplate は出力名（テンプレート）として使えるかを検証します。
// ページ番号プレースホルダーは1つまでです。
func ValidateTemplate(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTemplate)
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidTemplate, name)
	}
	if n := countPlaceholders(name); n > 1 {
		return fmt.Errorf("%w: %q has %d page placeholders, at most one is allowed", ErrInvalidTemplate, name, n)
	}
	return nil
}

// OutputPath は出力名とページ番号（1始まり）から書き込み先のパスを返します。
//
//	OutputPath("out_%d.pdf", 3)  // "out_3.pdf"
//	OutputPath("merged.pdf", 2)  // "merged_2.pdf"
//	OutputPath("report", 5)      // "report_5.pdf"
//
// ファイルシステムには触れません。
func OutputPath(name string, page int) (string, error) {
	if err := ValidateTemplate(name); err != nil {
		return "", err
	}
	if page < 1 {
		return "", fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}

	if countPlaceholders(name) == 1 {
		return templateToken.ReplaceAllStringFunc(name, func(tok string) string {
			if tok == "%%" {
				return "%"
			}
			return fmt.Sprintf(tok, page)
		}), nil
	}

	suffix := "_" + strconv.Itoa(page) + ".pdf"
	if m := pdfFilename.FindStringSubmatch(name); m != nil {
		return m[1] + suffix, nil
	}
	return name + suffix, nil
}

func countPlaceholders(name string) int {
	n := 0
	for _, tok := range templateToken.FindAllString(name, -1) {
		if tok != "%%" {
			n++
		}
	}
	return n
}
