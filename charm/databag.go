package charm

// Relation data bags are plain string-to-string maps. These helpers give
// the whole module one place for the two semantics every bag access needs:
// snapshot copies on read, and delete-on-empty on write.

// CloneBag returns an independent copy of a relation data bag.
// A nil bag clones to an empty, non-nil map so callers can index it safely.
func CloneBag(bag map[string]string) map[string]string {
	out := make(map[string]string, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

// ApplyBag merges updates into a data bag in place. An empty value deletes
// the key, matching what `relation-set key=` does on the wire:
//
//	ApplyBag(bag, map[string]string{"name": "svc", "stale": ""})
//
// sets "name" and removes "stale".
func ApplyBag(bag, updates map[string]string) {
	for k, v := range updates {
		if v == "" {
			delete(bag, k)
			continue
		}
		bag[k] = v
	}
}
