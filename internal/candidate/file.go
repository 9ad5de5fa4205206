package candidate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/hamed0406/subwatch/internal/domain"
)

// FileSource reads a newline-delimited host list.
type FileSource struct {
	Path   string
	Logger *zap.Logger
}

func NewFileSource(path string, log *zap.Logger) *FileSource {
	return &FileSource{Path: path, Logger: log}
}

func (f *FileSource) List(ctx context.Context) ([]domain.Domain, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.Logger.Info("candidate_file_missing", zap.String("path", f.Path))
			return []domain.Domain{}, nil
		}
		return nil, fmt.Errorf("open candidates: %w", err)
	}
	defer file.Close()

	var raw []string
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw = append(raw, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}

	out := Normalize(f.Logger, raw)
	f.Logger.Info("candidates_loaded", zap.String("path", f.Path), zap.Int("lines", len(raw)), zap.Int("domains", len(out)))
	return out, nil
}
