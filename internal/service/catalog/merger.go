package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kapu/game-metadata-sync-go/internal/constants"
	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/pkg/errors"
)

// MergeKeys maps provider names to the field written into catalog records.
var MergeKeys = map[string]string{
	constants.ProviderNames.Critic:     "metacritic",
	constants.ProviderNames.Completion: "hltb",
}

// MergeStats summarizes one merge pass.
type MergeStats struct {
	Files     int
	Rewritten int
	Updated   int
}

// Combine flattens checkpoint documents (one provider, several shards) into
// one record map.
func Combine(docs ...*domain.Checkpoint) map[string]*domain.ResolvedRecord {
	out := make(map[string]*domain.ResolvedRecord)
	for _, cp := range docs {
		if cp == nil {
			continue
		}
		for id, rec := range cp.Games {
			if rec != nil {
				out[id] = rec
			}
		}
	}
	return out
}

// Merge writes resolved data back into the catalog files under path. resolved
// is keyed by provider name, then record id. Files whose content would not
// change are left untouched.
func Merge(path string, resolved map[string]map[string]*domain.ResolvedRecord, logger *zap.Logger) (MergeStats, error) {
	var stats MergeStats

	files, err := Files(path)
	if err != nil {
		return stats, err
	}

	for _, file := range files {
		stats.Files++
		updated, err := mergeFile(file, resolved)
		if err != nil {
			return stats, err
		}
		if updated == 0 {
			logger.Debug("Catalog file unchanged", zap.String("file", filepath.Base(file)))
			continue
		}
		stats.Rewritten++
		stats.Updated += updated
		logger.Info("Catalog file merged",
			zap.String("file", filepath.Base(file)),
			zap.Int("updated", updated),
		)
	}
	return stats, nil
}

func mergeFile(file string, resolved map[string]map[string]*domain.ResolvedRecord) (int, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return 0, errors.NewCatalogError("read catalog file", file, err)
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, errors.NewCatalogError("decode catalog file", file, err)
	}

	updated := 0
	for _, row := range rows {
		var rec domain.CatalogRecord
		if err := json.Unmarshal(mustMarshal(row), &rec); err != nil || rec.Key() == "" {
			continue
		}

		changed := false
		for provider, records := range resolved {
			field, ok := MergeKeys[provider]
			if !ok {
				continue
			}
			res := records[rec.Key()]
			if res == nil {
				continue
			}
			raw, err := json.Marshal(res)
			if err != nil {
				return 0, errors.NewCatalogError(fmt.Sprintf("encode %s for %s", field, rec.Key()), file, err)
			}
			if sameJSON(row[field], raw) {
				continue
			}
			row[field] = raw
			changed = true
		}
		if changed {
			updated++
		}
	}

	if updated == 0 {
		return 0, nil
	}

	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return 0, errors.NewCatalogError("encode catalog file", file, err)
	}
	if err := replaceFile(file, out); err != nil {
		return 0, errors.NewCatalogError("write catalog file", file, err)
	}
	return updated, nil
}

func mustMarshal(row map[string]json.RawMessage) []byte {
	data, _ := json.Marshal(row)
	return data
}

func sameJSON(a, b []byte) bool {
	if len(a) == 0 {
		return len(b) == 0
	}
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
