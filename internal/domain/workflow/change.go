package workflow

// Change is the outcome of one registry mutation. Stores apply it atomically:
// every version is written and every history entry appended, or nothing is.
type Change struct {
	Versions []Version
	History  []HistoryEntry
}

// Mutation computes a change from the current versions of one workflow name.
// It runs while the store holds that name's lock.
type Mutation func(current []Version) (Change, error)

// Find returns the version with the given key.
func Find(versions []Version, k Key) (Version, bool) {
	for _, v := range versions {
		if v.key == k {
			return v, true
		}
	}
	return Version{}, false
}
