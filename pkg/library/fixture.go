package library

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Fixture is an offline stand-in for the desktop application, loaded from
// YAML:
//
//	ready_after: 2
//	resources:
//	  - title: Lexham English Bible
//	    resource_id: LLS:LEB
//	    version: "2024-01-01T00:00:00Z"
//	    resource_type: text.monograph.bible
//	    abbreviated_title: LEB
//	passages:
//	  John 3:16: For God so loved the world ...
type Fixture struct {
	// ReadyAfter is the number of Application polls that report "starting".
	ReadyAfter int               `yaml:"ready_after"`
	Resources  []SearchResult    `yaml:"resources"`
	Passages   map[string]string `yaml:"passages"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// Launcher returns a fresh launcher over the fixture.
func (f *Fixture) Launcher() Launcher {
	return &fixtureLauncher{fixture: f}
}

type fixtureLauncher struct {
	fixture  *Fixture
	launched bool
	polls    int
}

func (l *fixtureLauncher) LaunchApplication() error {
	l.launched = true
	return nil
}

func (l *fixtureLauncher) Application() (Application, error) {
	if !l.launched {
		return nil, nil
	}
	l.polls++
	if l.polls <= l.fixture.ReadyAfter {
		return nil, nil
	}
	return fixtureApplication{fixture: l.fixture}, nil
}

func (l *fixtureLauncher) Close() error { return nil }

type fixtureApplication struct {
	fixture *Fixture
}

func (a fixtureApplication) GetResourcesMatchingQuery(query string) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	return lo.Filter(a.fixture.Resources, func(r SearchResult, _ int) bool {
		if query == "" {
			return true
		}
		return fuzzy.MatchNormalizedFold(query, r.Title) ||
			(r.AbbreviatedTitle != "" && fuzzy.MatchNormalizedFold(query, r.AbbreviatedTitle))
	}), nil
}

type fixtureReference struct {
	key string
}

func (r fixtureReference) String() string { return r.key }

// ScanForReferences reports every passage key occurring in text, ordered by
// position of first occurrence.
func (a fixtureApplication) ScanForReferences(text string) ([]Reference, error) {
	haystack := normalizeReference(text)
	type hit struct {
		key string
		at  int
	}
	var hits []hit
	for key := range a.fixture.Passages {
		if at := indexReference(haystack, normalizeReference(key)); at >= 0 {
			hits = append(hits, hit{key: key, at: at})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].at != hits[j].at {
			return hits[i].at < hits[j].at
		}
		return len(hits[i].key) > len(hits[j].key)
	})
	return lo.Map(hits, func(h hit, _ int) Reference {
		return fixtureReference{key: h.key}
	}), nil
}

func (a fixtureApplication) CopyVerses(ref Reference) (string, error) {
	text, ok := a.fixture.Passages[ref.String()]
	if !ok {
		return "", fmt.Errorf("no passage text for %s", ref)
	}
	return text, nil
}

func (a fixtureApplication) Close() error { return nil }

// indexReference returns the first position of ref in text that is not part
// of a longer reference: "john 3:1" does not match inside "john 3:16".
func indexReference(text, ref string) int {
	if ref == "" {
		return -1
	}
	for from := 0; from < len(text); {
		i := strings.Index(text[from:], ref)
		if i < 0 {
			return -1
		}
		at := from + i
		end := at + len(ref)
		if (at == 0 || !isReferenceChar(text[at-1])) && (end == len(text) || !isReferenceChar(text[end])) {
			return at
		}
		from = at + 1
	}
	return -1
}

func isReferenceChar(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b == ':'
}

func normalizeReference(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
