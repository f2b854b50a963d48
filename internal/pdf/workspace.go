package pdf

import (
	"fmt"

	"github.com/yourusername/pdf-tailor/internal/storage"
)

func (s *Service) createWorkspace() (storage.Workspace, error) {
	ws, err := s.store.Create()
	if err != nil {
		return storage.Workspace{}, fmt.Errorf("ジョブ作業ディレクトリの作成に失敗しました: %w", err)
	}
	return ws, nil
}

func (s *Service) workspaceFor(jobID string) (storage.Workspace, error) {
	return s.store.Lookup(jobID)
}

func (s *Service) removeWorkspace(ws storage.Workspace) error {
	return s.store.Remove(ws.JobID)
}

// DiscardJob はスケジュールに失敗したジョブの作業ディレクトリを削除します。
func (s *Service) DiscardJob(jobID string) error {
	return s.store.Remove(jobID)
}
