package batch

import (
	"encoding/json"
	"os"
)

// ManifestEntry represents one exported result.
type ManifestEntry struct {
	Name      string   `json:"name"`
	Technique string   `json:"technique,omitempty"`
	Modality  string   `json:"modality"`
	Files     []string `json:"files"`
	Error     string   `json:"error,omitempty"`
}

// WriteManifest writes the export manifest to path.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		entries[i] = ManifestEntry{
			Name:      r.Name,
			Technique: r.Technique,
			Modality:  r.Modality,
			Files:     r.Files,
			Error:     r.Error,
		}
		if entries[i].Files == nil {
			entries[i].Files = []string{}
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
