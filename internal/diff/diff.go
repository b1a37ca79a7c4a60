// Package diff decides which freshly scraped listings have not been seen
// before. It does no I/O, so a cycle's outcome is fully determined by the
// batch and the stored snapshot.
package diff

import "github.com/erkineren/listing-monitor/internal/models"

// KnownSet holds the links of every listing already in the store.
type KnownSet map[string]struct{}

// Known builds the set of identities from a store snapshot.
func Known(stored []models.Listing) KnownSet {
	known := make(KnownSet, len(stored))
	for _, l := range stored {
		known[l.Link] = struct{}{}
	}
	return known
}

// Contains reports whether link has been seen.
func (k KnownSet) Contains(link string) bool {
	_, ok := k[link]
	return ok
}

// ComputeNew returns the listings in batch whose link is not in known,
// in first-occurrence order. Repeated links within the batch are emitted
// once. Neither argument is modified.
func ComputeNew(batch []models.Listing, known KnownSet) []models.Listing {
	var fresh []models.Listing
	emitted := make(map[string]struct{})

	for _, l := range batch {
		if known.Contains(l.Link) {
			continue
		}
		if _, dup := emitted[l.Link]; dup {
			continue
		}
		emitted[l.Link] = struct{}{}
		fresh = append(fresh, l)
	}

	return fresh
}
