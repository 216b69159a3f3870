// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lsuhpchelp/ollamaondemand/internal/util"
)

// cacheFile is the catalog cache inside the work directory.
const cacheFile = "remotemodels.json"

// defaultCatalogJSON is a snapshot shipped with the binary so the picker is
// never empty on first run or offline. A successful scrape replaces it in
// the work directory.
//
//go:embed remotemodels.json
var defaultCatalogJSON []byte

// Load returns the cached catalog: the work-directory copy when present and
// valid, otherwise the bundled snapshot. Never fails; worst case is the
// snapshot.
func Load(workdir string) Catalog {
	data, err := os.ReadFile(filepath.Join(workdir, cacheFile))
	if err == nil {
		var c Catalog
		if err := json.Unmarshal(data, &c); err == nil && len(c) > 0 {
			return c
		}
	}

	var c Catalog
	if err := json.Unmarshal(defaultCatalogJSON, &c); err != nil {
		return Catalog{}
	}
	return c
}

// Save writes the catalog to the work-directory cache. Best-effort: the
// cache is a convenience, failures are swallowed.
func Save(workdir string, c Catalog) {
	if len(c) == 0 {
		return
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(workdir, 0755)
	_ = util.AtomicWriteFile(filepath.Join(workdir, cacheFile), data, 0644)
}
