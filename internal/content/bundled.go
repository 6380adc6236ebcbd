package content

import (
	"embed"
	"fmt"
	"sort"

	"pushluck-trivia-service/internal/domain"
)

//go:embed packs/*.json
var packFS embed.FS

// BundledPacks decodes and validates the starter catalog shipped in the
// binary. Pack order follows file name order so the catalog is deterministic.
func BundledPacks() ([]domain.Pack, error) {
	entries, err := packFS.ReadDir("packs")
	if err != nil {
		return nil, fmt.Errorf("read bundled packs: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	packs := make([]domain.Pack, 0, len(entries))
	for _, entry := range entries {
		data, err := packFS.ReadFile("packs/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read bundled pack %s: %w", entry.Name(), err)
		}
		pack, err := DecodePack(data)
		if err != nil {
			return nil, fmt.Errorf("bundled pack %s: %w", entry.Name(), err)
		}
		if err := ValidatePack(pack); err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}
