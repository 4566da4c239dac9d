package models

// RawListing is a listing record as a source returned it, before
// normalization. Price is kept as text because sources disagree on its
// format ("1500", "£1,500 pcm").
type RawListing struct {
	ID          string
	Latitude    float64
	Longitude   float64
	Price       string
	DetailsURL  string
	Address     string
	Description string
	ImageURL    string
}
