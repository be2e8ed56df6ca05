package evaluation

// RecallAtK is the fraction of relevant keys found in the first k retrieved.
// Returns 0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0
	}

	want := toSet(relevant)
	found := 0
	for _, key := range firstK(retrieved, k) {
		if _, ok := want[key]; ok {
			found++
			delete(want, key)
		}
	}

	return float64(found) / float64(len(relevant))
}

// MRRAtK is the reciprocal rank of the first relevant key within the first
// k retrieved, or 0 when none is there.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	want := toSet(relevant)
	for i, key := range firstK(retrieved, k) {
		if _, ok := want[key]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func firstK(keys []string, k int) []string {
	if k >= 0 && k < len(keys) {
		return keys[:k]
	}
	return keys
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}
