// Package locations resolves opaque location ids to cities and IANA
// timezones, and fills in the denormalized display fields on meeting
// participants before a record is sent to a client.
package locations

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/zoneclock/meeting-sync/internal/models"
	"github.com/zoneclock/meeting-sync/internal/timeconv"
)

// Location is one entry in the location catalog.
type Location struct {
	ID      string `json:"id"`
	City    string `json:"city"`
	Country string `json:"country"`
	Zone    string `json:"zone"`
}

// Catalog maps location ids to catalog entries. It is built once at
// startup and read-only afterwards, so lookups need no locking.
type Catalog struct {
	byID map[string]Location
}

// defaultLocations covers the cities shipped with the built-in world
// clock. A registry file can extend or override these at startup.
var defaultLocations = []Location{
	{ID: "new-york", City: "New York", Country: "United States", Zone: "America/New_York"},
	{ID: "los-angeles", City: "Los Angeles", Country: "United States", Zone: "America/Los_Angeles"},
	{ID: "chicago", City: "Chicago", Country: "United States", Zone: "America/Chicago"},
	{ID: "denver", City: "Denver", Country: "United States", Zone: "America/Denver"},
	{ID: "honolulu", City: "Honolulu", Country: "United States", Zone: "Pacific/Honolulu"},
	{ID: "london", City: "London", Country: "United Kingdom", Zone: "Europe/London"},
	{ID: "paris", City: "Paris", Country: "France", Zone: "Europe/Paris"},
	{ID: "berlin", City: "Berlin", Country: "Germany", Zone: "Europe/Berlin"},
	{ID: "sao-paulo", City: "São Paulo", Country: "Brazil", Zone: "America/Sao_Paulo"},
	{ID: "dubai", City: "Dubai", Country: "United Arab Emirates", Zone: "Asia/Dubai"},
	{ID: "kolkata", City: "Kolkata", Country: "India", Zone: "Asia/Kolkata"},
	{ID: "singapore", City: "Singapore", Country: "Singapore", Zone: "Asia/Singapore"},
	{ID: "shanghai", City: "Shanghai", Country: "China", Zone: "Asia/Shanghai"},
	{ID: "tokyo", City: "Tokyo", Country: "Japan", Zone: "Asia/Tokyo"},
	{ID: "sydney", City: "Sydney", Country: "Australia", Zone: "Australia/Sydney"},
	{ID: "auckland", City: "Auckland", Country: "New Zealand", Zone: "Pacific/Auckland"},
}

// NewCatalog returns a catalog containing the built-in locations.
func NewCatalog() *Catalog {
	c := &Catalog{byID: make(map[string]Location, len(defaultLocations))}
	for _, loc := range defaultLocations {
		c.byID[loc.ID] = loc
	}
	return c
}

// NewCatalogFromFile builds a catalog from the built-in locations plus
// the JSON array at path. Entries with an id already in the catalog
// override the built-in ones. Entries with an unloadable timezone are
// skipped with a log entry rather than failing startup.
func NewCatalogFromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read locations file %s", path)
	}

	var extra []Location
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, errors.Wrapf(err, "parse locations file %s", path)
	}

	c := NewCatalog()
	for _, loc := range extra {
		if loc.ID == "" || loc.Zone == "" {
			log.Printf("locations: skipping entry with missing id or zone: %+v", loc)
			continue
		}
		if _, err := time.LoadLocation(loc.Zone); err != nil {
			log.Printf("locations: skipping %q: %v", loc.ID, err)
			continue
		}
		c.byID[loc.ID] = loc
	}
	return c, nil
}

// Lookup returns the catalog entry for id, if any.
func (c *Catalog) Lookup(id string) (Location, bool) {
	loc, ok := c.byID[id]
	return loc, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// EnrichParticipants recomputes location, timezone, and localTime for
// every participant whose locationId resolves against the catalog.
// Unknown ids leave the participant's display fields untouched.
func (c *Catalog) EnrichParticipants(record *models.MeetingRecord, now time.Time) {
	for i := range record.Participants {
		p := &record.Participants[i]
		if p.LocationID == "" {
			continue
		}

		loc, ok := c.byID[p.LocationID]
		if !ok {
			continue
		}

		conv, err := timeconv.Convert(now, loc.Zone)
		if err != nil {
			// Catalog zones are validated at load time; this only
			// fires if the zone database itself is missing an entry.
			log.Printf("locations: convert %q for participant %s: %v", loc.Zone, p.ID, err)
			continue
		}

		p.Location = loc.City + ", " + loc.Country
		p.Timezone = loc.Zone
		p.LocalTime = conv.LocalTime
	}
}
