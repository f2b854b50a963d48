// Package pdf はアップロードされたPDFに対する stitch / unstitch ジョブを提供します。
package pdf

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/yourusername/pdf-tailor/internal/config"
	"github.com/yourusername/pdf-tailor/internal/storage"
	"github.com/yourusername/pdf-tailor/internal/tailor"
)

const defaultCleanupMin = 10

// Service はジョブ作業ディレクトリ上でPDFの連結・分解を実行します。
type Service struct {
	cfg        *config.Config
	store      *storage.Local
	lib        tailor.Library
	stitcher   *tailor.Stitcher
	unstitcher *tailor.Unstitcher
	logger     *log.Logger
	now        func() time.Time
}

// NewService は Service を作成します。logger が nil の場合は出力を捨てます。
func NewService(cfg *config.Config, store *storage.Local, lib tailor.Library, logger *log.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("storage is nil")
	}
	if lib == nil {
		return nil, errors.New("pdf library is nil")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		cfg:        cfg,
		store:      store,
		lib:        lib,
		stitcher:   tailor.NewStitcher(lib, logger),
		unstitcher: tailor.NewUnstitcher(lib, logger),
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *Service) expireWorkspace(jobID string) {
	expireMinutes := s.cfg.JobExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = defaultCleanupMin
	}
	s.store.ExpireAfter(jobID, time.Duration(expireMinutes)*time.Minute)
}
