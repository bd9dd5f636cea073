package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// LocalDir yields every workbook in a folder in file name order. Files have
// no send time, so their modification time is the attribution signal.
type LocalDir struct {
	Dir    string
	Logger *slog.Logger
}

func (s LocalDir) Items(ctx context.Context) ([]domain.Item, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", s.Dir, err)
	}

	var items []domain.Item
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() {
			continue
		}
		if isLegacyWorkbook(name) {
			s.Logger.Warn("skipping unsupported .xls workbook", "source", name)
			continue
		}
		if !isWorkbook(name) {
			continue
		}

		path := filepath.Join(s.Dir, name)
		info, err := e.Info()
		if err != nil {
			s.Logger.Warn("skipping unreadable file", "source", name, "error", err)
			continue
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			s.Logger.Warn("skipping unreadable file", "source", name, "error", err)
			continue
		}
		items = append(items, domain.Item{
			Payload: payload,
			ModTime: info.ModTime(),
			Source:  name,
		})
	}
	s.Logger.Info("found workbooks", "folder", s.Dir, "count", len(items))
	return items, nil
}
