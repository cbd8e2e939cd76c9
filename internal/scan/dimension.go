package scan

import "strings"

const (
	DimensionOverworld = "minecraft:overworld"
	DimensionNether    = "minecraft:the_nether"
	DimensionEnd       = "minecraft:the_end"
)

// DimensionPath maps a namespaced dimension id to the region folder relative to the save
// root, using forward slashes.
func DimensionPath(dimension string) (string, bool) {
	switch dimension {
	case DimensionOverworld:
		return "region", true
	case DimensionNether:
		return "DIM-1/region", true
	case DimensionEnd:
		return "DIM1/region", true
	}
	parts := strings.Split(dimension, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return "dimensions/" + parts[0] + "/" + parts[1] + "/region", true
}
