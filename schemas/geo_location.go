package schemas

import (
	"fmt"
	"regexp"
)

// GeoLocation is a coarse visitor location. Values come from a fixed table
// and are shared between users, so they must not be modified.
type GeoLocation struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

var countryCodeRegex = regexp.MustCompile(`^[A-Z]{2}$`)

func (g GeoLocation) Validate() error {
	if g.Country == "" {
		return fmt.Errorf("country is required")
	}
	// ISO 3166-1 alpha-2
	if !countryCodeRegex.MatchString(g.Country) {
		return fmt.Errorf("country %q must be an ISO 3166-1 alpha-2 code", g.Country)
	}
	if g.Region == "" {
		return fmt.Errorf("region is required")
	}
	if g.City == "" {
		return fmt.Errorf("city is required")
	}
	return nil
}

func (g GeoLocation) String() string {
	return fmt.Sprintf("%s/%s/%s", g.Country, g.Region, g.City)
}
