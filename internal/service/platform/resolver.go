package platform

import (
	"strings"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

var (
	synonymIndex = buildSynonymIndex()
	groupIndex   = buildGroupIndex()
)

func buildSynonymIndex() map[string]string {
	index := make(map[string]string)
	for _, group := range priorityGroups {
		for _, m := range group {
			index[key(m.canonical)] = m.canonical
			for _, s := range m.synonyms {
				index[key(s)] = m.canonical
			}
		}
	}
	return index
}

func buildGroupIndex() map[string]int {
	index := make(map[string]int)
	for i, group := range priorityGroups {
		for _, m := range group {
			index[m.canonical] = i
		}
	}
	return index
}

// key folds a platform label to lowercase alphanumerics so "PS Vita", "ps-vita" and "psvita" collide.
func key(s string) string {
	s = util.Normalize(s)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Canonicalize maps one platform entry to its canonical name, or "" when no table knows it.
// Numeric ids are consulted first, then abbreviation, slug and name.
func Canonicalize(ref domain.PlatformRef) string {
	if ref.ID != 0 {
		if name, ok := platformIDs[ref.ID]; ok {
			return name
		}
	}
	if ref.Abbreviation != "" {
		if name, ok := synonymIndex[key(ref.Abbreviation)]; ok {
			return name
		}
	}
	if ref.Slug != "" {
		if name, ok := platformSlugs[strings.ToLower(strings.TrimSpace(ref.Slug))]; ok {
			return name
		}
		if name, ok := synonymIndex[key(ref.Slug)]; ok {
			return name
		}
	}
	if ref.Name != "" {
		if name, ok := synonymIndex[key(ref.Name)]; ok {
			return name
		}
	}
	return ""
}

// Resolve picks the highest-priority canonical platform for a record. It is total:
// an empty list, or one with nothing recognizable, resolves to PC.
func Resolve(refs []domain.PlatformRef) string {
	present := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if name := Canonicalize(ref); name != "" {
			present[name] = struct{}{}
		}
	}
	if len(present) == 0 {
		return DefaultTarget
	}

	for _, group := range priorityGroups {
		for _, m := range group {
			if _, ok := present[m.canonical]; ok {
				return m.canonical
			}
		}
	}
	return DefaultTarget
}

// Priority returns the group rank of a canonical platform (0 is highest), or -1 if unknown.
func Priority(canonical string) int {
	if rank, ok := groupIndex[canonical]; ok {
		return rank
	}
	return -1
}

// PreviousGeneration returns the prior console generation for current-gen platforms.
func PreviousGeneration(canonical string) (string, bool) {
	prev, ok := previousGeneration[canonical]
	return prev, ok
}

// Slug renders a canonical platform the way provider URLs spell it ("playstation-5").
func Slug(canonical string) string {
	return util.Slugify(canonical)
}
