package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/praxia-health/notes-platform/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Template describes which content sections a template type carries and
// which of them a complete note is expected to fill in. Completeness is
// advisory; it never gates a lifecycle transition.
type Template struct {
	Name     string   `yaml:"name" json:"name"`
	Sections []string `yaml:"sections" json:"sections"`
	Required []string `yaml:"required" json:"required"`
}

type Catalog struct {
	Templates map[string]Template `yaml:"templates" json:"templates"`
}

func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Templates) == 0 {
		return Catalog{}, fmt.Errorf("template catalog empty")
	}
	return cat, nil
}

func DefaultCatalog() Catalog {
	return Catalog{Templates: map[string]Template{
		string(models.TemplateSOAP): {
			Name:     "SOAP",
			Sections: []string{"subjective", "objective", "assessment", "plan"},
			Required: []string{"subjective", "assessment", "plan"},
		},
		string(models.TemplateDAP): {
			Name:     "DAP",
			Sections: []string{"data", "assessment", "plan"},
			Required: []string{"data", "assessment", "plan"},
		},
		string(models.TemplateFree): {
			Name:     "Free-form",
			Sections: []string{"free_text"},
			Required: []string{"free_text"},
		},
	}}
}

func (c Catalog) Lookup(templateType models.NoteTemplateType) (Template, bool) {
	tpl, ok := c.Templates[strings.ToLower(string(templateType))]
	return tpl, ok
}

// Validate checks that the content matches the template's shape. An unknown
// template type is always an error; missing required sections are reported
// for the caller to surface as a non-blocking advisory.
func (c Catalog) Validate(templateType models.NoteTemplateType, content models.NoteContent) error {
	tpl, ok := c.Lookup(templateType)
	if !ok {
		return fmt.Errorf("unknown template type %q", templateType)
	}
	var missing []string
	for _, section := range tpl.Required {
		if strings.TrimSpace(sectionValue(content, section)) == "" {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("template %s: missing required sections %v", tpl.Name, missing)
	}
	return nil
}

func sectionValue(content models.NoteContent, section string) string {
	switch section {
	case "subjective":
		return content.Subjective
	case "objective":
		return content.Objective
	case "assessment":
		return content.Assessment
	case "plan":
		return content.Plan
	case "data":
		return content.Data
	case "free_text":
		return content.FreeText
	default:
		return ""
	}
}
