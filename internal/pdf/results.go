package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var operationOutput = map[OperationType]struct {
	filename string
	kind     ResultKind
}{
	OperationStitch:   {filename: stitchedFilename, kind: ResultKindPDF},
	OperationUnstitch: {filename: unstitchedFilename, kind: ResultKindZIP},
}

// OpenResultFile はジョブIDに対応する成果物ファイルを開き、Result 情報とファイルハンドルを返します。
func (s *Service) OpenResultFile(jobID string) (*Result, *os.File, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, nil, fmt.Errorf("jobID is required")
	}

	ws, err := s.workspaceFor(jobID)
	if err != nil {
		return nil, nil, err
	}
	manifest, err := loadManifest(ws.Dir)
	if err != nil {
		return nil, nil, err
	}
	output, ok := operationOutput[manifest.Operation]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported operation for result download: %s", manifest.Operation)
	}

	outputPath := filepath.Join(ws.OutDir, output.filename)
	file, err := os.Open(outputPath)
	if err != nil {
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}

	result := &Result{
		JobID:          jobID,
		Operation:      manifest.Operation,
		OutputPath:     outputPath,
		OutputFilename: output.filename,
		OutputSize:     info.Size(),
		ResultKind:     output.kind,
		cleanup:        func() error { return s.removeWorkspace(ws) },
	}

	return result, file, nil
}
