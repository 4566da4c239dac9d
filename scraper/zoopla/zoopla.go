// Package zoopla searches the Zoopla listings API. Results are exposed as
// a lazy iterator that fetches one page at a time.
package zoopla

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"house-finder/config"
	"house-finder/models"
	"house-finder/services"
	"house-finder/storage"
	"house-finder/utils"
)

const (
	platform    = "zoopla"
	listingsAPI = "/property_listings.json"
	pageSize    = 100
)

// Scraper queries the Zoopla listings API.
type Scraper struct {
	baseURL   string
	apiKey    string
	client    *http.Client
	responses storage.ResponseCache
	logger    *utils.Logger
	retry     *utils.RetryConfig
}

// New creates a Scraper. responses may be nil to disable response caching.
func New(cfg *config.Config, apiKey string, responses storage.ResponseCache, logger *utils.Logger) *Scraper {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Scraper{
		baseURL:   strings.TrimRight(cfg.ZooplaBaseURL, "/"),
		apiKey:    apiKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		responses: responses,
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Search returns an iterator over the listings matching q. Nothing is
// fetched until the first call to Next.
func (s *Scraper) Search(q models.Query) *Iterator {
	return &Iterator{
		s:       s,
		query:   q,
		cleaner: services.NewCleaner(s.logger, q.Type),
	}
}

type pageResponse struct {
	ResultCount int           `json:"result_count"`
	Listing     []wireListing `json:"listing"`
}

type wireListing struct {
	ListingID          flexString `json:"listing_id"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	Price              flexString `json:"price"`
	DetailsURL         string     `json:"details_url"`
	DisplayableAddress string     `json:"displayable_address"`
	Description        string     `json:"description"`
	ImageURL           string     `json:"image_url"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		*f = flexString(b)
	}
	return nil
}

func (w wireListing) raw() *models.RawListing {
	return &models.RawListing{
		ID:          string(w.ListingID),
		Latitude:    w.Latitude,
		Longitude:   w.Longitude,
		Price:       string(w.Price),
		DetailsURL:  w.DetailsURL,
		Address:     w.DisplayableAddress,
		Description: w.Description,
		ImageURL:    w.ImageURL,
	}
}

func (s *Scraper) pageURL(q models.Query, page int) string {
	v := url.Values{}
	v.Set("area", q.Area)
	v.Set("listing_status", q.Type)
	if q.MinBedrooms > 0 {
		v.Set("minimum_beds", strconv.Itoa(q.MinBedrooms))
	}
	if q.MaxBedrooms > 0 {
		v.Set("maximum_beds", strconv.Itoa(q.MaxBedrooms))
	}
	if q.MinPrice > 0 {
		v.Set("minimum_price", strconv.Itoa(q.MinPrice))
	}
	if q.MaxPrice > 0 {
		v.Set("maximum_price", strconv.Itoa(q.MaxPrice))
	}
	v.Set("summarised", "yes")
	v.Set("api_key", s.apiKey)
	v.Set("page_size", strconv.Itoa(pageSize))
	v.Set("page_number", strconv.Itoa(page))
	return s.baseURL + listingsAPI + "?" + v.Encode()
}

// fetchPage returns the raw records of one page. ok is false when the API
// has nothing more to give: an empty page or a body that is not JSON.
func (s *Scraper) fetchPage(ctx context.Context, q models.Query, page int) ([]*models.RawListing, bool, error) {
	u := s.pageURL(q, page)
	key := storage.ResponseKey(u)

	body, cached, err := s.cachedBody(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !cached {
		err = s.retry.Do(ctx, fmt.Sprintf("zoopla page %d", page), func() error {
			b, err := s.get(ctx, u)
			if err != nil {
				return err
			}
			body = b
			return nil
		})
		if err != nil {
			return nil, false, fmt.Errorf("zoopla: fetch page %d: %w", page, err)
		}
	}

	var resp pageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.logger.Warn("[%s] Page %d is not JSON, stopping: %v", platform, page, err)
		return nil, false, nil
	}
	if len(resp.Listing) == 0 {
		return nil, false, nil
	}

	if !cached && s.responses != nil {
		if err := s.responses.Set(ctx, key, body); err != nil {
			s.logger.Warn("[%s] Could not cache page %d: %v", platform, page, err)
		}
	}

	raw := make([]*models.RawListing, 0, len(resp.Listing))
	for _, w := range resp.Listing {
		raw = append(raw, w.raw())
	}
	return raw, true, nil
}

func (s *Scraper) cachedBody(ctx context.Context, key string) ([]byte, bool, error) {
	if s.responses == nil {
		return nil, false, nil
	}
	b, ok, err := s.responses.Get(ctx, key)
	if err != nil {
		s.logger.Warn("[%s] Response cache unavailable: %v", platform, err)
		return nil, false, nil
	}
	return b, ok, nil
}

func (s *Scraper) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrPermanent, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", utils.ErrPermanent, ctx.Err())
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", utils.ErrPermanent, resp.StatusCode)
	}
	return body, nil
}

// Iterator walks search results page by page. It is single pass.
type Iterator struct {
	s       *Scraper
	query   models.Query
	cleaner *services.Cleaner

	page  int
	buf   []*models.Listing
	cur   *models.Listing
	total int
	err   error
	done  bool
}

// Next advances to the next listing, fetching a page when needed.
func (it *Iterator) Next(ctx context.Context) bool {
	for len(it.buf) == 0 {
		if it.done || it.err != nil {
			it.cur = nil
			return false
		}
		if err := ctx.Err(); err != nil {
			it.err = err
			return false
		}
		it.fetch(ctx)
	}
	it.cur, it.buf = it.buf[0], it.buf[1:]
	return true
}

func (it *Iterator) fetch(ctx context.Context) {
	it.page++
	raw, more, err := it.s.fetchPage(ctx, it.query, it.page)
	if err != nil {
		it.err = err
		return
	}
	if !more {
		it.done = true
		it.s.logger.Info("[%s] Search complete: %d listings over %d pages", platform, it.total, it.page-1)
		return
	}

	for _, r := range raw {
		if l, ok := it.cleaner.CleanOne(r); ok {
			it.buf = append(it.buf, l)
		}
	}
	if len(it.buf) == 0 {
		// A page of already seen ids means the API is repeating itself.
		it.done = true
		it.s.logger.Warn("[%s] Page %d had no new listings, stopping", platform, it.page)
		return
	}
	it.total += len(it.buf)
	it.s.logger.Debug("[%s] Page %d: %d listings", platform, it.page, len(it.buf))
}

// Listing returns the current listing.
func (it *Iterator) Listing() *models.Listing { return it.cur }

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error { return it.err }

// ErrMissingAPIKey is returned by NewFromSecrets without a zoopla key.
var ErrMissingAPIKey = errors.New("zoopla: api key is required")

// NewFromSecrets builds a Scraper using the zoopla credentials in secrets.
func NewFromSecrets(cfg *config.Config, secrets *config.Secrets, responses storage.ResponseCache, logger *utils.Logger) (*Scraper, error) {
	creds, err := secrets.Service(platform)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingAPIKey, err)
	}
	return New(cfg, creds.Current(), responses, logger), nil
}
