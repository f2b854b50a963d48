package pdf

import "github.com/yourusername/pdf-tailor/internal/tailor"

// ProgressReporter は進捗更新用コールバックです。
type ProgressReporter func(stage string, percent int)

func reportProgress(cb ProgressReporter, stage string, percent int) {
	if cb == nil {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	cb(stage, percent)
}

// processProgress はエンジンの進捗（done/total）を "process" ステージの from..to% に割り当てます。
func processProgress(cb ProgressReporter, from, to int) tailor.ProgressFunc {
	if cb == nil {
		return nil
	}
	return func(done, total int) {
		if total <= 0 {
			return
		}
		reportProgress(cb, "process", from+(to-from)*done/total)
	}
}
