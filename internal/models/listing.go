package models

// Listing is one record scraped from the listing page. Link is the
// identity; the other fields are display text.
type Listing struct {
	Heading string `json:"heading"`
	Price   string `json:"price"`
	Area    string `json:"area"`
	Link    string `json:"link"`
}
