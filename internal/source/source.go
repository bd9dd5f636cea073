// Package source collects spreadsheet payloads from local folders and
// exported mailboxes and hands them to the pipeline as domain.Items.
package source

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
)

// Source lists every payload available for one run.
type Source interface {
	Items(ctx context.Context) ([]domain.Item, error)
}

// isWorkbook reports whether name is an xlsx workbook the decoder can open.
func isWorkbook(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// isLegacyWorkbook reports whether name is a binary .xls workbook, which is
// not supported.
func isLegacyWorkbook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xls")
}
