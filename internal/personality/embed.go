package personality

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

func embeddedDefaults() ([]*Personality, error) {
	entries, err := defaultsFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("read embedded personalities: %w", err)
	}
	var out []*Personality
	for _, e := range entries {
		data, err := defaultsFS.ReadFile("defaults/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read embedded personality %s: %w", e.Name(), err)
		}
		var p Personality
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse embedded personality %s: %w", e.Name(), err)
		}
		out = append(out, &p)
	}
	return out, nil
}
