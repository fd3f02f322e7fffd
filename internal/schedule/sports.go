package schedule

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/abrezinsky/slotboard/internal/models"
)

// SportMeta holds the capacity rules for one sport.
type SportMeta struct {
	Min         int `json:"min"`
	Max         int `json:"max"`
	MainLimit   int `json:"mainLimit"`
	WaitingList int `json:"waitingList"`
}

// UnknownSport is returned by Lookup for sports missing from the catalog.
var UnknownSport = SportMeta{Min: 0, Max: 20, MainLimit: 20, WaitingList: 0}

// Catalog maps sport names to their capacity rules. It is the single source of
// truth at mutation time; min/max stored on slot documents are seed snapshots.
type Catalog map[string]SportMeta

// DefaultCatalog returns the built-in sport metadata table.
func DefaultCatalog() Catalog {
	racket := SportMeta{Min: 4, Max: 20, MainLimit: 10, WaitingList: 10}
	return Catalog{
		"Open Badminton":     racket,
		"Women's Badminton":  racket,
		"Pickleball":         racket,
		"Women's Pickleball": racket,
		"Table Tennis":       racket,
		"Kids Games":         racket,
		"Volleyball":         {Min: 8, Max: 25, MainLimit: 14, WaitingList: 11},
		"Basketball":         {Min: 6, Max: 20, MainLimit: 10, WaitingList: 10},
		models.NoGames:       {},
	}
}

// Lookup returns the rules for sport, or UnknownSport.
func (c Catalog) Lookup(sport string) SportMeta {
	if meta, ok := c[sport]; ok {
		return meta
	}
	return UnknownSport
}

// Has reports whether sport is listed.
func (c Catalog) Has(sport string) bool {
	_, ok := c[sport]
	return ok
}

// Sports returns the offered sport names, sorted, without the No Games sentinel.
func (c Catalog) Sports() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		if name == models.NoGames {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadCatalog reads a JSON object of sport name to rules. Entries replace the
// defaults of the same name; the No Games sentinel is always present and empty.
func LoadCatalog(r io.Reader) (Catalog, error) {
	var overrides map[string]SportMeta
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&overrides); err != nil {
		return nil, fmt.Errorf("decode sports file: %w", err)
	}

	catalog := DefaultCatalog()
	for name, meta := range overrides {
		if name == "" {
			return nil, fmt.Errorf("sports file: empty sport name")
		}
		if meta.Min < 0 || meta.Max < 0 || meta.MainLimit < 0 || meta.WaitingList < 0 {
			return nil, fmt.Errorf("sports file: %s has negative limits", name)
		}
		if meta.Min > meta.Max {
			return nil, fmt.Errorf("sports file: %s min %d exceeds max %d", name, meta.Min, meta.Max)
		}
		catalog[name] = meta
	}
	catalog[models.NoGames] = SportMeta{}
	return catalog, nil
}

// LoadCatalogFile reads a catalog override file. An empty path yields the
// default catalog.
func LoadCatalogFile(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sports file: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
