package strutil

// Dedup returns items without repetitions, keeping the first occurrence order.
func Dedup(items []string) []string {
	if len(items) < 2 {
		return items
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
