package valueobjects

import "fmt"

type Category string

const (
	CategoryPothole       Category = "pothole"
	CategoryStreetlight   Category = "streetlight"
	CategoryGarbage       Category = "garbage"
	CategoryWaterLeak     Category = "water_leak"
	CategoryDrainage      Category = "drainage"
	CategoryRoadDamage    Category = "road_damage"
	CategoryTrafficSignal Category = "traffic_signal"
	CategoryTreeFall      Category = "tree_fall"
	CategoryOther         Category = "other"
)

// AllCategories is the closed label set offered to the category classifier.
var AllCategories = []Category{
	CategoryPothole,
	CategoryStreetlight,
	CategoryGarbage,
	CategoryWaterLeak,
	CategoryDrainage,
	CategoryRoadDamage,
	CategoryTrafficSignal,
	CategoryTreeFall,
	CategoryOther,
}

// duplicate search radius in meters
var categoryRadius = map[Category]float64{
	CategoryPothole:       50,
	CategoryStreetlight:   30,
	CategoryGarbage:       100,
	CategoryWaterLeak:     75,
	CategoryDrainage:      100,
	CategoryRoadDamage:    75,
	CategoryTrafficSignal: 40,
	CategoryTreeFall:      60,
	CategoryOther:         100,
}

// department name fragments each category routes to
var categoryDepartmentKeywords = map[Category][]string{
	CategoryPothole:       {"road", "public works"},
	CategoryRoadDamage:    {"road", "public works"},
	CategoryStreetlight:   {"electric", "lighting"},
	CategoryTrafficSignal: {"traffic", "transport"},
	CategoryGarbage:       {"sanitation", "waste"},
	CategoryWaterLeak:     {"water"},
	CategoryDrainage:      {"drainage", "sewer", "water"},
	CategoryTreeFall:      {"parks", "horticulture", "forest"},
}

func (c Category) String() string {
	return string(c)
}

func (c Category) IsValid() bool {
	_, ok := categoryRadius[c]
	return ok
}

func (c Category) IsOther() bool {
	return c == CategoryOther
}

// DuplicateRadiusMeters is the search radius for duplicate detection.
func (c Category) DuplicateRadiusMeters() float64 {
	if r, ok := categoryRadius[c]; ok {
		return r
	}
	return categoryRadius[CategoryOther]
}

// DepartmentKeywords lists lowercase name fragments of departments handling c.
// Returns nil for "other".
func (c Category) DepartmentKeywords() []string {
	kw := categoryDepartmentKeywords[c]
	out := make([]string, len(kw))
	copy(out, kw)
	if len(out) == 0 {
		return nil
	}
	return out
}

func NewCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid category: %s", s)
	}
	return c, nil
}
