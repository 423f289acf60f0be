// Package universe holds the static set of instruments the screener evaluates.
package universe

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"BreakoutScreener/internal/model"
)

// Universe maps instrument ids to their metadata. Read-only after construction.
type Universe struct {
	instruments []model.Instrument
	byID        map[string]model.Instrument
	sectors     []string
}

type fileFormat struct {
	Sectors     []string           `yaml:"sectors"`
	Instruments []model.Instrument `yaml:"instruments"`
}

// New builds a universe, rejecting empty ids, duplicate ids and instruments
// whose sector is not in sectors. A nil sectors list is derived from the instruments.
// An empty sector means "ALL": such instruments are listed only under "ALL".
func New(sectors []string, instruments []model.Instrument) (*Universe, error) {
	if len(instruments) == 0 {
		return nil, &model.ConfigurationError{Field: "instruments", Reason: "universe is empty"}
	}
	if sectors == nil {
		seen := map[string]bool{}
		for _, in := range instruments {
			if !seen[in.Sector] {
				seen[in.Sector] = true
				sectors = append(sectors, in.Sector)
			}
		}
		sort.Strings(sectors)
	}
	allowed := map[string]bool{}
	u := &Universe{byID: make(map[string]model.Instrument, len(instruments))}
	for _, s := range sectors {
		if s == model.SectorAll || s == "" || allowed[s] {
			continue
		}
		allowed[s] = true
		u.sectors = append(u.sectors, s)
	}
	for _, in := range instruments {
		if in.ID == "" {
			return nil, &model.ConfigurationError{Field: "instruments", Reason: "instrument without instrument_key"}
		}
		if _, dup := u.byID[in.ID]; dup {
			return nil, &model.ConfigurationError{Field: "instruments", Reason: fmt.Sprintf("duplicate instrument %s", in.ID)}
		}
		if in.Sector == "" {
			in.Sector = model.SectorAll
		}
		if in.Sector != model.SectorAll && !allowed[in.Sector] {
			return nil, &model.ConfigurationError{Field: "instruments", Reason: fmt.Sprintf("instrument %s has unknown sector %q", in.ID, in.Sector)}
		}
		if in.Name == "" {
			in.Name = in.ID
		}
		u.byID[in.ID] = in
		u.instruments = append(u.instruments, in)
	}
	return u, nil
}

// Load reads a YAML universe file. An empty path yields the built-in universe.
func Load(path string) (*Universe, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse universe: %w", err)
	}
	return New(f.Sectors, f.Instruments)
}

// Sectors returns the sector names led by "ALL".
func (u *Universe) Sectors() []string {
	out := make([]string, 0, len(u.sectors)+1)
	out = append(out, model.SectorAll)
	return append(out, u.sectors...)
}

// HasSector reports whether sector is "ALL" or a known sector.
func (u *Universe) HasSector(sector string) bool {
	if sector == model.SectorAll {
		return true
	}
	for _, s := range u.sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// Instruments returns the instruments in sector, in load order.
// "ALL" and "" return every instrument; an unknown sector returns none.
func (u *Universe) Instruments(sector string) []model.Instrument {
	if sector == "" || sector == model.SectorAll {
		out := make([]model.Instrument, len(u.instruments))
		copy(out, u.instruments)
		return out
	}
	var out []model.Instrument
	for _, in := range u.instruments {
		if in.Sector == sector {
			out = append(out, in)
		}
	}
	return out
}

// Lookup returns the instrument for id.
func (u *Universe) Lookup(id string) (model.Instrument, bool) {
	in, ok := u.byID[id]
	return in, ok
}

// Len returns the number of instruments.
func (u *Universe) Len() int { return len(u.instruments) }
