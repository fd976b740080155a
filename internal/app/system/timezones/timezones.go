// Package timezones holds the curated time zones accepted by date filters.
package timezones

import (
	"embed"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

//go:embed timezonedata/timezones.json
var fs embed.FS

// ErrUnknownZone is returned for an ID outside the curated list.
var ErrUnknownZone = errors.New("unknown time zone")

// Zone is one selectable time zone.
type Zone struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Region string `json:"region,omitempty"`
}

// ZoneGroup is the zones of one region, sorted by label.
type ZoneGroup struct {
	Region string `json:"region"`
	Zones  []Zone `json:"zones"`
}

var (
	loadOnce sync.Once
	zones    []Zone
	byID     map[string]Zone
	loadErr  error

	groupsOnce sync.Once
	groups     []ZoneGroup

	locMu     sync.Mutex
	locations = map[string]*time.Location{}
)

func load() {
	loadOnce.Do(func() {
		data, err := fs.ReadFile("timezonedata/timezones.json")
		if err != nil {
			loadErr = err
			return
		}

		var list []Zone
		if err := json.Unmarshal(data, &list); err != nil {
			loadErr = err
			return
		}

		zones = list
		byID = make(map[string]Zone, len(list))
		for _, z := range list {
			byID[z.ID] = z
		}
	})
}

// Load reports any error reading the embedded list. Callers that want to
// fail fast can call it at startup.
func Load() error {
	load()
	return loadErr
}

// Valid reports whether id is in the curated list.
func Valid(id string) bool {
	load()
	if loadErr != nil {
		return false
	}
	_, ok := byID[id]
	return ok
}

// Location resolves a curated zone ID. Loaded locations are cached.
func Location(id string) (*time.Location, error) {
	if !Valid(id) {
		return nil, ErrUnknownZone
	}

	locMu.Lock()
	defer locMu.Unlock()
	if loc, ok := locations[id]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(id)
	if err != nil {
		return nil, err
	}
	locations[id] = loc
	return loc, nil
}

// Groups returns the curated zones grouped by region, regions in name order.
func Groups() ([]ZoneGroup, error) {
	if err := Load(); err != nil {
		return nil, err
	}

	groupsOnce.Do(func() {
		byRegion := make(map[string][]Zone)
		for _, z := range zones {
			region := z.Region
			if region == "" {
				region = "Other"
			}
			byRegion[region] = append(byRegion[region], z)
		}

		out := make([]ZoneGroup, 0, len(byRegion))
		for region, zs := range byRegion {
			sort.SliceStable(zs, func(i, j int) bool {
				return zs[i].Label < zs[j].Label
			})
			out = append(out, ZoneGroup{Region: region, Zones: zs})
		}
		sort.Slice(out, func(i, j int) bool {
			return out[i].Region < out[j].Region
		})
		groups = out
	})
	return groups, nil
}
