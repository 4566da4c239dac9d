package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"house-finder/models"
	"house-finder/utils"
)

var (
	// priceRegexp captures the first numeric amount, thousands separators included
	priceRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	// weeklyRegexp spots prices quoted per week
	weeklyRegexp = regexp.MustCompile(`\b(pw|p/w|per week|a week)\b`)
)

// weeksPerMonth converts weekly rents to monthly (52 weeks / 12 months).
const weeksPerMonth = 52.0 / 12.0

const printURLFormat = "https://www.zoopla.co.uk/%s/details/print/%s"

// Cleaner transforms RawListings into clean, validated Listings.
type Cleaner struct {
	logger      *utils.Logger
	listingType string
	seen        *utils.IDSet
}

// NewCleaner creates a Cleaner for listings of the given type ("rent" or
// "sale"). One Cleaner deduplicates across everything it cleans.
func NewCleaner(logger *utils.Logger, listingType string) *Cleaner {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Cleaner{logger: logger, listingType: listingType, seen: utils.NewIDSet()}
}

// Clean processes raw listings and returns cleaned records.
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	result := make([]*models.Listing, 0, len(raw))
	for _, r := range raw {
		if l, ok := c.CleanOne(r); ok {
			result = append(result, l)
		}
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// CleanOne normalizes a single record. It reports false for records
// without an id or coordinates and for ids already seen.
func (c *Cleaner) CleanOne(r *models.RawListing) (*models.Listing, bool) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		c.logger.Warn("[cleaner] Dropping listing with empty id: %s", r.Address)
		return nil, false
	}
	if r.Latitude == 0 && r.Longitude == 0 {
		c.logger.Warn("[cleaner] Dropping listing %s without coordinates", id)
		return nil, false
	}
	if !c.seen.Add(id) {
		c.logger.Debug("[cleaner] Duplicate listing skipped: %s", id)
		return nil, false
	}

	return &models.Listing{
		ID:          id,
		Location:    models.LatLng{Lat: r.Latitude, Lng: r.Longitude},
		Price:       c.parsePrice(r.Price),
		URL:         strings.TrimSpace(r.DetailsURL),
		PrintURL:    c.printURL(id),
		Address:     normaliseText(r.Address),
		Description: normaliseText(r.Description),
		Image:       strings.TrimSpace(r.ImageURL),
	}, true
}

// parsePrice extracts a whole-currency price, converting weekly rents to
// monthly.
// Examples:
//
//	"1500"         → 1500
//	"£1,500 pcm"   → 1500
//	"£300 pw"      → 1300
func (c *Cleaner) parsePrice(raw string) int {
	raw = strings.ToLower(raw)

	match := priceRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0
	}

	if weeklyRegexp.MatchString(raw) {
		monthly := price * weeksPerMonth
		c.logger.Debug("[cleaner] Weekly price detected: £%.0f pw = £%.0f pcm", price, monthly)
		price = monthly
	}
	return int(price + 0.5)
}

func (c *Cleaner) printURL(id string) string {
	section := "to-rent"
	if c.listingType == "sale" {
		section = "for-sale"
	}
	return fmt.Sprintf(printURLFormat, section, id)
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
