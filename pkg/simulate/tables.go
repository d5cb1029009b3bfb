package simulate

import "github.com/lgreene/tracksim/schemas"

var (
	DefaultPages = []string{
		"/home",
		"/products",
		"/products/detail/123",
		"/cart",
		"/checkout",
		"/login",
		"/profile",
		"/about",
	}

	// DefaultTargets are element ids a click can land on.
	DefaultTargets = []string{
		"screenshot-1",
		"screenshot-2",
		"screenshot-3",
		"screenshot-4",
		"screenshot-5",
		"screenshot-6",
		"title_social-twitter",
		"title_social-facebook",
		"title_social-instagram",
		"title_social-youtube",
		"title_background-top",
		"title_game-content",
		"title_about-us",
		"title_news",
	}

	DefaultLocations = []schemas.GeoLocation{
		{Country: "CN", Region: "Beijing", City: "Beijing"},
		{Country: "CN", Region: "Shanghai", City: "Shanghai"},
		{Country: "US", Region: "California", City: "Los Angeles"},
		{Country: "US", Region: "New York", City: "New York"},
		{Country: "JP", Region: "Tokyo", City: "Tokyo"},
		{Country: "JP", Region: "Osaka", City: "Osaka"},
		{Country: "GB", Region: "England", City: "London"},
		{Country: "DE", Region: "Berlin", City: "Berlin"},
		{Country: "SG", Region: "Singapore", City: "Singapore"},
		{Country: "AU", Region: "New South Wales", City: "Sydney"},
	}
)

// Catalog is the static configuration events are drawn from.
type Catalog struct {
	Pages      []string
	EventTypes []schemas.EventType
	Targets    []string
}

func DefaultCatalog() Catalog {
	return Catalog{
		Pages:      DefaultPages,
		EventTypes: schemas.EventTypes,
		Targets:    DefaultTargets,
	}
}

func (c Catalog) validate() error {
	if len(c.Pages) == 0 {
		return errEmpty("pages")
	}
	if len(c.EventTypes) == 0 {
		return errEmpty("event types")
	}
	for _, typ := range c.EventTypes {
		if !typ.Valid() {
			return errInvalidType(typ)
		}
	}
	if len(c.Targets) == 0 {
		return errEmpty("targets")
	}
	return nil
}
