package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

// ShardPattern matches catalog shard files inside a catalog directory.
const ShardPattern = "games_*.json"

// Files resolves path to the catalog files it names: every shard file when
// path is a directory, otherwise path itself.
func Files(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewCatalogError("catalog path not readable", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, ShardPattern))
	if err != nil {
		return nil, errors.NewCatalogError("invalid shard pattern", path, err)
	}
	if len(files) == 0 {
		return nil, errors.NewCatalogError(fmt.Sprintf("no %s files found", ShardPattern), path, nil)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every catalog file under path and returns the records sorted by id.
// Records without a name are dropped.
func Load(path string, logger *zap.Logger) ([]domain.CatalogRecord, error) {
	files, err := Files(path)
	if err != nil {
		return nil, err
	}

	var records []domain.CatalogRecord
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.NewCatalogError("read catalog file", file, err)
		}
		var batch []domain.CatalogRecord
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, errors.NewCatalogError("decode catalog file", file, err)
		}

		kept := 0
		for _, rec := range batch {
			if rec.Name == "" {
				continue
			}
			records = append(records, rec)
			kept++
		}
		logger.Debug("Catalog file loaded",
			zap.String("file", filepath.Base(file)),
			zap.Int("records", kept),
			zap.Int("dropped", len(batch)-kept),
		)
	}

	SortByID(records)
	logger.Info("Catalog loaded",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// SortByID orders records by id, numerically when both ids are numbers.
func SortByID(records []domain.CatalogRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return lessID(records[i].Key(), records[j].Key())
	})
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
