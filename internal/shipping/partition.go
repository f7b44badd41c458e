package shipping

import "sort"

// Partition groups cart lines by origin warehouse. Lines without an origin
// are assigned to defaultOrigin, so no line is ever dropped here.
func Partition(lines []Line, defaultOrigin string) map[string][]Line {
	groups := make(map[string][]Line)
	for _, line := range lines {
		origin := line.Origin
		if origin == "" {
			origin = defaultOrigin
		}
		line.Origin = origin
		groups[origin] = append(groups[origin], line)
	}
	return groups
}

// SortedOrigins returns the group keys in lexical order so iteration over a
// partition stays deterministic.
func SortedOrigins(groups map[string][]Line) []string {
	origins := make([]string, 0, len(groups))
	for origin := range groups {
		origins = append(origins, origin)
	}
	sort.Strings(origins)
	return origins
}
