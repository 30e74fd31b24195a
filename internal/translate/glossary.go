package translate

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"redub/internal/fileutil"
	"redub/internal/services"
)

// Glossary maps source surface forms to the renderings the translation
// must use. It is a show-level input maintained by humans.
type Glossary struct {
	Entries map[string]string
}

type glossaryDoc struct {
	Schema  string            `json:"schema,omitempty"`
	Entries map[string]string `json:"entries"`
}

// LoadGlossary reads the show-level glossary. A missing file is an empty
// glossary; a malformed file is a configuration error.
func LoadGlossary(path string) (*Glossary, error) {
	var doc glossaryDoc
	err := fileutil.ReadJSON(path, &doc)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Glossary{Entries: map[string]string{}}, nil
		}
		return nil, services.Wrap(services.ErrConfiguration, "translate", "load glossary", path, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	for surface, target := range doc.Entries {
		if strings.TrimSpace(surface) == "" || strings.TrimSpace(target) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "translate", "load glossary",
				fmt.Sprintf("empty surface or target in %s", path), nil)
		}
	}
	return &Glossary{Entries: doc.Entries}, nil
}

// Match returns the glossary entries whose surface form occurs in text, as
// "surface => target" lines sorted by surface. Only matched entries are
// injected into a prompt; injecting the whole glossary into every
// utterance cross-contaminates unrelated lines.
func (g *Glossary) Match(text string) []string {
	if g == nil || len(g.Entries) == 0 {
		return nil
	}
	var lines []string
	for surface, target := range g.Entries {
		if strings.Contains(text, surface) {
			lines = append(lines, surface+" => "+target)
		}
	}
	sort.Strings(lines)
	return lines
}
