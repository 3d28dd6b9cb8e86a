// Package texts holds every user-facing reply template. Defaults are
// embedded; an operator can overlay individual keys from a YAML file.
package texts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/meowtytyshka/vintagebot/catalog"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Bundle struct {
	entries map[string]string
}

// Defaults returns the embedded template set.
func Defaults() (*Bundle, error) {
	entries := make(map[string]string)
	if err := yaml.Unmarshal(defaultsYAML, &entries); err != nil {
		return nil, fmt.Errorf("decode embedded texts: %w", err)
	}
	return &Bundle{entries: entries}, nil
}

// Load overlays the defaults with keys from an operator-provided YAML
// file. An empty path returns the defaults unchanged.
func Load(path string) (*Bundle, error) {
	bundle, err := Defaults()
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return bundle, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read texts file %s: %w", path, err)
	}
	overlay := make(map[string]string)
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("decode texts file %s: %w", path, err)
	}
	for key, value := range overlay {
		if strings.TrimSpace(value) == "" {
			continue
		}
		bundle.entries[key] = value
	}
	return bundle, nil
}

func (b *Bundle) Get(key string) string {
	if b != nil {
		if value, ok := b.entries[key]; ok {
			return value
		}
	}
	return "missing text: " + key
}

func (b *Bundle) Format(key string, args ...any) string {
	if len(args) == 0 {
		return b.Get(key)
	}
	return fmt.Sprintf(b.Get(key), args...)
}

// LotSummary renders the field-by-field description shown in the
// final review, the moderation card and the catalog listing.
func (b *Bundle) LotSummary(d catalog.Draft) string {
	summary := b.Format("lot_summary", d.Title, d.Era, d.Condition, d.Size, d.City, d.Price)
	if comment := strings.TrimSpace(d.Comment); comment != "" {
		summary += "\n" + comment
	}
	return summary
}
