package types

import "fmt"

// SelectorEngine names the query language of a site definition.
type SelectorEngine string

const (
	EngineCSS   SelectorEngine = "css"
	EngineXPath SelectorEngine = "xpath"
)

// SiteDefinition describes a user-defined site scraped with dynamic
// selectors. Definitions live in the persistence layer.
type SiteDefinition struct {
	ID          string         `json:"id"          bson:"_id"          mapstructure:"id"          yaml:"id"`
	Name        string         `json:"name"        bson:"name"         mapstructure:"name"        yaml:"name"`
	URL         string         `json:"url"         bson:"url"          mapstructure:"url"         yaml:"url"`
	Engine      SelectorEngine `json:"engine"      bson:"engine"       mapstructure:"engine"      yaml:"engine"`
	Item        string         `json:"item"        bson:"item"         mapstructure:"item"        yaml:"item"`
	Title       string         `json:"title"       bson:"title"        mapstructure:"title"       yaml:"title"`
	Message     string         `json:"message"     bson:"message"      mapstructure:"message"     yaml:"message"`
	Date        string         `json:"date"        bson:"date"         mapstructure:"date"        yaml:"date"`
	Link        string         `json:"link"        bson:"link"         mapstructure:"link"        yaml:"link"`
	IDPattern   string         `json:"id_pattern"  bson:"id_pattern"   mapstructure:"id_pattern"  yaml:"id_pattern"`
	Description string         `json:"description" bson:"description"  mapstructure:"description" yaml:"description"`
}

// Validate checks that the definition carries everything extraction needs.
func (d *SiteDefinition) Validate() error {
	if d.URL == "" {
		return fmt.Errorf("site %q: url is required", d.ID)
	}
	switch d.Engine {
	case "", EngineCSS, EngineXPath:
	default:
		return fmt.Errorf("site %q: engine must be css or xpath, got %q", d.ID, d.Engine)
	}
	required := []struct{ name, sel string }{
		{"item", d.Item},
		{"title", d.Title},
		{"message", d.Message},
		{"date", d.Date},
		{"link", d.Link},
	}
	for _, r := range required {
		if r.sel == "" {
			return fmt.Errorf("site %q: %s selector is required", d.ID, r.name)
		}
	}
	return nil
}

// EngineOrDefault returns the engine, defaulting to CSS.
func (d *SiteDefinition) EngineOrDefault() SelectorEngine {
	if d.Engine == "" {
		return EngineCSS
	}
	return d.Engine
}
