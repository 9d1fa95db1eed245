package memory

// Category tags an allocation for attribution. It is not an ownership boundary.
type Category uint8

const (
	CategoryUnknown Category = iota
	CategoryEngine
	CategoryRenderer
	CategoryAssets
	CategoryTemporary

	// CategoryCount is the number of categories.
	CategoryCount
)

var categoryNames = [CategoryCount]string{
	CategoryUnknown:   "unknown",
	CategoryEngine:    "engine",
	CategoryRenderer:  "renderer",
	CategoryAssets:    "assets",
	CategoryTemporary: "temporary",
}

func (c Category) String() string {
	if c >= CategoryCount {
		return "invalid"
	}
	return categoryNames[c]
}

// Valid reports whether c is a defined category.
func (c Category) Valid() bool {
	return c < CategoryCount
}

// Categories returns all defined categories in order.
func Categories() []Category {
	out := make([]Category, 0, CategoryCount)
	for c := Category(0); c < CategoryCount; c++ {
		out = append(out, c)
	}
	return out
}
