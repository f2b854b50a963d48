// Package storage はジョブごとの作業ディレクトリを管理します。
//
// 保存先: <baseDir>/<jobID>/in（アップロードされた入力）と <baseDir>/<jobID>/out（成果物）
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidJobID はジョブIDがUUID形式でない場合に返されます。
var ErrInvalidJobID = errors.New("invalid job id")

// Workspace は1ジョブ分の作業ディレクトリです。
type Workspace struct {
	JobID  string
	Dir    string
	InDir  string
	OutDir string
}

// Local はローカルファイルシステム上に作業ディレクトリを作成します。
type Local struct {
	baseDir string
}

// NewLocal は baseDir を作成して Local を返します。
func NewLocal(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, errors.New("storage base directory is empty")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("作業ディレクトリの作成に失敗しました: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// Create は新しいジョブIDで作業ディレクトリを作成します。
func (l *Local) Create() (Workspace, error) {
	ws := l.layout(uuid.NewString())
	for _, dir := range []string{ws.InDir, ws.OutDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			_ = os.RemoveAll(ws.Dir)
			return Workspace{}, fmt.Errorf("作業ディレクトリの作成に失敗しました: %w", err)
		}
	}
	return ws, nil
}

// Lookup は既存ジョブの作業ディレクトリを返します。
// jobID はUUIDに限定し、パス操作に使われないようにする。
func (l *Local) Lookup(jobID string) (Workspace, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return Workspace{}, fmt.Errorf("%w: %q", ErrInvalidJobID, jobID)
	}
	return l.layout(jobID), nil
}

// Remove はジョブの作業ディレクトリを削除します。存在しない場合は何もしません。
func (l *Local) Remove(jobID string) error {
	ws, err := l.Lookup(jobID)
	if err != nil {
		return err
	}
	return os.RemoveAll(ws.Dir)
}

// ExpireAfter は d 経過後に作業ディレクトリを削除します。
func (l *Local) ExpireAfter(jobID string, d time.Duration) *time.Timer {
	return time.AfterFunc(d, func() {
		_ = l.Remove(jobID)
	})
}

func (l *Local) layout(jobID string) Workspace {
	dir := filepath.Join(l.baseDir, jobID)
	return Workspace{
		JobID:  jobID,
		Dir:    dir,
		InDir:  filepath.Join(dir, "in"),
		OutDir: filepath.Join(dir, "out"),
	}
}
