package feature

import (
	"encoding/json"
	"fmt"
)

// SpeciesInfo mirrors one entry of the inventory service's species export.
// Width and Height are nil when the catalog has no measurement.
type SpeciesInfo struct {
	Species string   `json:"species"`
	NameLA  string   `json:"name_la"`
	NameNL  string   `json:"name_nl"`
	NameEN  string   `json:"name_en"`
	Width   *float64 `json:"width"`
	Height  *float64 `json:"height"`
}

type speciesExport struct {
	Species []SpeciesInfo `json:"species"`
	Updated string        `json:"updated"`
}

// LoadSpecies parses the species catalog export into a lookup by species key.
func LoadSpecies(data []byte) (map[string]SpeciesInfo, error) {
	var export speciesExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	catalog := make(map[string]SpeciesInfo, len(export.Species))
	for _, info := range export.Species {
		if info.Species == "" {
			continue
		}
		catalog[info.Species] = info
	}
	return catalog, nil
}

// ApplyCatalog fills width, height, and display name gaps on trees from the
// species catalog. Values present on the feature itself always win; the
// catalog only supplies defaults, matching the service's export enrichment.
func ApplyCatalog(trees []Tree, catalog map[string]SpeciesInfo) {
	for i := range trees {
		info, ok := catalog[trees[i].Species]
		if !ok {
			continue
		}
		if !trees[i].HasWidth && info.Width != nil {
			trees[i].Width = *info.Width
			trees[i].HasWidth = true
		}
		if !trees[i].HasHeight && info.Height != nil {
			trees[i].Height = *info.Height
			trees[i].HasHeight = true
		}
		if trees[i].DisplayName == "" {
			if info.NameNL != "" {
				trees[i].DisplayName = info.NameNL
			} else if info.NameEN != "" {
				trees[i].DisplayName = info.NameEN
			}
		}
	}
}
