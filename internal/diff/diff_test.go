package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erkineren/listing-monitor/internal/models"
)

func listing(link string) models.Listing {
	return models.Listing{Heading: "Flat " + link, Price: "€650", Area: "50m²", Link: link}
}

func TestComputeNew_EmptyKnown(t *testing.T) {
	batch := []models.Listing{{Heading: "A", Price: "€650", Area: "50m²", Link: "https://x/1"}}

	got := ComputeNew(batch, Known(nil))

	assert.Equal(t, batch, got)
}

func TestComputeNew_SkipsKnownLinks(t *testing.T) {
	known := Known([]models.Listing{listing("https://x/1")})
	batch := []models.Listing{listing("https://x/1"), listing("https://x/2")}

	got := ComputeNew(batch, known)

	assert.Equal(t, []models.Listing{listing("https://x/2")}, got)
}

func TestComputeNew_IdentityIsLinkOnly(t *testing.T) {
	known := Known([]models.Listing{{Heading: "A", Price: "€650", Area: "50m²", Link: "https://x/1"}})
	repriced := models.Listing{Heading: "A", Price: "€590", Area: "50m²", Link: "https://x/1"}

	got := ComputeNew([]models.Listing{repriced}, known)

	assert.Empty(t, got)
}

func TestComputeNew_DuplicateInBatchEmittedOnce(t *testing.T) {
	first := models.Listing{Heading: "first", Price: "1", Area: "1", Link: "https://x/3"}
	second := models.Listing{Heading: "second", Price: "2", Area: "2", Link: "https://x/3"}

	got := ComputeNew([]models.Listing{first, second}, Known(nil))

	assert.Equal(t, []models.Listing{first}, got)
}

func TestComputeNew_PreservesFirstOccurrenceOrder(t *testing.T) {
	batch := []models.Listing{
		listing("https://x/c"),
		listing("https://x/a"),
		listing("https://x/c"),
		listing("https://x/b"),
		listing("https://x/a"),
	}

	got := ComputeNew(batch, Known([]models.Listing{listing("https://x/b")}))

	assert.Equal(t, []models.Listing{listing("https://x/c"), listing("https://x/a")}, got)
}

func TestComputeNew_Idempotent(t *testing.T) {
	known := Known([]models.Listing{listing("https://x/2")})
	batch := []models.Listing{listing("https://x/1"), listing("https://x/2"), listing("https://x/1")}

	assert.Equal(t, ComputeNew(batch, known), ComputeNew(batch, known))
}

func TestComputeNew_DoesNotMutateInputs(t *testing.T) {
	known := Known([]models.Listing{listing("https://x/2")})
	batch := []models.Listing{listing("https://x/1"), listing("https://x/2")}
	batchCopy := append([]models.Listing(nil), batch...)

	ComputeNew(batch, known)

	assert.Equal(t, batchCopy, batch)
	assert.Len(t, known, 1)
}

func TestComputeNew_AtMostOnePerLink(t *testing.T) {
	batch := []models.Listing{
		listing("https://x/1"), listing("https://x/2"), listing("https://x/1"),
		listing("https://x/3"), listing("https://x/2"), listing("https://x/1"),
	}

	got := ComputeNew(batch, Known(nil))

	seen := make(map[string]int)
	for _, l := range got {
		seen[l.Link]++
	}
	for link, n := range seen {
		assert.Equal(t, 1, n, "link %s emitted %d times", link, n)
	}
	assert.Len(t, got, 3)
}

func TestComputeNew_EmptyBatch(t *testing.T) {
	assert.Empty(t, ComputeNew(nil, Known([]models.Listing{listing("https://x/1")})))
}

func TestKnown_Contains(t *testing.T) {
	known := Known([]models.Listing{listing("https://x/1"), listing("https://x/2")})

	assert.True(t, known.Contains("https://x/1"))
	assert.True(t, known.Contains("https://x/2"))
	assert.False(t, known.Contains("https://x/3"))
}
