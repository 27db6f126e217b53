package content

// Label pairs a select-dropdown key with its display text.
type Label struct {
	Key   string
	Label string
}

// Regions are the region keys defined by the blog-posts content model.
var Regions = []Label{
	{"asia", "Asia"},
	{"europe", "Europe"},
	{"north-america", "North America"},
	{"south-america", "South America"},
	{"africa", "Africa"},
	{"middle-east", "Middle East"},
	{"oceania", "Oceania"},
}

// Ratings are listed best first, as in the search filter panel.
var Ratings = []Label{
	{"5", "Must Visit"},
	{"4", "Great"},
	{"3", "Good"},
	{"2", "Fair"},
	{"1", "Skip It"},
}

// Tags are the tag options of the content model.
var Tags = []string{
	"Street Food",
	"Fine Dining",
	"Budget Eats",
	"Hidden Gems",
	"Michelin Star",
	"Vegetarian Friendly",
	"Local Favorite",
	"Night Market",
	"Cooking Class",
	"Food Tour",
}

// ValidRegion reports whether key is a known region.
func ValidRegion(key string) bool {
	return lookup(Regions, key) != ""
}

// ValidRating reports whether key is a rating from 1 to 5.
func ValidRating(key string) bool {
	return lookup(Ratings, key) != ""
}

// RegionLabel returns the display name of a region key, or the key itself.
func RegionLabel(key string) string {
	if l := lookup(Regions, key); l != "" {
		return l
	}
	return key
}

// RatingLabel returns the display name of a rating key, or "".
func RatingLabel(key string) string {
	return lookup(Ratings, key)
}

func lookup(labels []Label, key string) string {
	for _, l := range labels {
		if l.Key == key {
			return l.Label
		}
	}
	return ""
}
