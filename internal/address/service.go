package address

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noah-isme/plan-configurator/internal/cache"
	"github.com/noah-isme/plan-configurator/internal/common"
	"github.com/noah-isme/plan-configurator/internal/obs"
	"github.com/noah-isme/plan-configurator/internal/resilience"
)

var (
	// ErrUpstream wraps failures talking to Geoapify or the NBN lookup.
	ErrUpstream = errors.New("address: upstream lookup failed")
	// ErrNotConfigured is returned when a lookup has no upstream configured.
	ErrNotConfigured = errors.New("address: lookup not configured")
)

// Suggestion is one autocomplete match.
type Suggestion struct {
	Formatted string  `json:"formatted"`
	Street    string  `json:"street,omitempty"`
	Suburb    string  `json:"suburb,omitempty"`
	State     string  `json:"state,omitempty"`
	Postcode  string  `json:"postcode,omitempty"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	PlaceID   string  `json:"placeId,omitempty"`
}

// Technology is the NBN service class at an address. Category is the tag used to filter
// the plan catalog.
type Technology struct {
	Address      string `json:"address"`
	LocationID   string `json:"locationId,omitempty"`
	TechType     string `json:"techType"`
	Category     string `json:"category"`
	ServiceClass string `json:"serviceClass,omitempty"`
	Serviceable  bool   `json:"serviceable"`
}

// Service proxies address lookups with a Redis cache in front.
type Service struct {
	http        resilience.HTTPClient
	geoapifyKey string
	geoapifyURL string
	nbnURL      string
	cache       *cache.Cache
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	HTTP           resilience.HTTPClient
	GeoapifyAPIKey string
	GeoapifyURL    string
	NBNURL         string
	Cache          *cache.Cache
}

// NewService constructs an address lookup service.
func NewService(cfg ServiceConfig) *Service {
	geo := strings.TrimRight(strings.TrimSpace(cfg.GeoapifyURL), "/")
	if geo == "" {
		geo = "https://api.geoapify.com/v1"
	}
	return &Service{
		http:        cfg.HTTP,
		geoapifyKey: strings.TrimSpace(cfg.GeoapifyAPIKey),
		geoapifyURL: geo,
		nbnURL:      strings.TrimRight(strings.TrimSpace(cfg.NBNURL), "/"),
		cache:       cfg.Cache,
	}
}

// Autocomplete returns Australian address suggestions for free text.
func (s *Service) Autocomplete(ctx context.Context, text string) ([]Suggestion, error) {
	text = strings.TrimSpace(text)
	if len(text) < 3 {
		return nil, badQuery("text", "at least 3 characters are required")
	}
	if s.geoapifyKey == "" {
		return nil, ErrNotConfigured
	}
	return cache.Load(ctx, s.cache, cache.KeyAddress("autocomplete", text), func(ctx context.Context) ([]Suggestion, error) {
		return s.fetchSuggestions(ctx, text)
	})
}

func (s *Service) fetchSuggestions(ctx context.Context, text string) ([]Suggestion, error) {
	q := url.Values{}
	q.Set("text", text)
	q.Set("filter", "countrycode:au")
	q.Set("format", "json")
	q.Set("limit", "5")
	q.Set("apiKey", s.geoapifyKey)

	var payload struct {
		Results []struct {
			Formatted   string  `json:"formatted"`
			AddressLine string  `json:"address_line1"`
			Suburb      string  `json:"suburb"`
			City        string  `json:"city"`
			StateCode   string  `json:"state_code"`
			Postcode    string  `json:"postcode"`
			Lat         float64 `json:"lat"`
			Lon         float64 `json:"lon"`
			PlaceID     string  `json:"place_id"`
		} `json:"results"`
	}
	if err := s.getJSON(ctx, "geoapify", s.geoapifyURL+"/geocode/autocomplete?"+q.Encode(), &payload); err != nil {
		return nil, err
	}
	out := make([]Suggestion, 0, len(payload.Results))
	for _, r := range payload.Results {
		suburb := r.Suburb
		if suburb == "" {
			suburb = r.City
		}
		out = append(out, Suggestion{
			Formatted: r.Formatted,
			Street:    r.AddressLine,
			Suburb:    suburb,
			State:     r.StateCode,
			Postcode:  r.Postcode,
			Lat:       r.Lat,
			Lon:       r.Lon,
			PlaceID:   r.PlaceID,
		})
	}
	return out, nil
}

// Technology looks up the NBN access technology for a full address.
func (s *Service) Technology(ctx context.Context, address string) (Technology, error) {
	address = strings.TrimSpace(address)
	if len(address) < 5 {
		return Technology{}, badQuery("address", "a full address is required")
	}
	if s.nbnURL == "" {
		return Technology{}, ErrNotConfigured
	}
	return cache.Load(ctx, s.cache, cache.KeyAddress("nbn", address), func(ctx context.Context) (Technology, error) {
		return s.fetchTechnology(ctx, address)
	})
}

func (s *Service) fetchTechnology(ctx context.Context, address string) (Technology, error) {
	var payload struct {
		LocationID   string `json:"locationId"`
		Address      string `json:"address"`
		TechType     string `json:"techType"`
		ServiceClass string `json:"serviceClass"`
		Serviceable  *bool  `json:"serviceable"`
	}
	q := url.Values{}
	q.Set("address", address)
	if err := s.getJSON(ctx, "nbn", s.nbnURL+"/lookup?"+q.Encode(), &payload); err != nil {
		return Technology{}, err
	}
	tech := Technology{
		Address:      payload.Address,
		LocationID:   payload.LocationID,
		TechType:     payload.TechType,
		Category:     TechnologyCategory(payload.TechType),
		ServiceClass: payload.ServiceClass,
		Serviceable:  payload.TechType != "" && (payload.Serviceable == nil || *payload.Serviceable),
	}
	if tech.Address == "" {
		tech.Address = address
	}
	return tech, nil
}

// TechnologyCategory maps an NBN technology name onto the catalog category tag.
func TechnologyCategory(techType string) string {
	t := strings.ToUpper(strings.Join(strings.Fields(techType), " "))
	switch {
	case t == "":
		return ""
	case strings.Contains(t, "FTTP"), strings.Contains(t, "FIBRE TO THE PREMISES"):
		return "fttp"
	case strings.Contains(t, "FTTC"), strings.Contains(t, "FIBRE TO THE CURB"), strings.Contains(t, "FIBRE TO THE KERB"):
		return "fttc"
	case strings.Contains(t, "FTTB"), strings.Contains(t, "FIBRE TO THE BUILDING"):
		return "fttb"
	case strings.Contains(t, "FTTN"), strings.Contains(t, "FIBRE TO THE NODE"):
		return "fttn"
	case strings.Contains(t, "HFC"), strings.Contains(t, "HYBRID"):
		return "hfc"
	case strings.Contains(t, "WIRELESS"):
		return "fixed-wireless"
	case strings.Contains(t, "SATELLITE"):
		return "satellite"
	default:
		return strings.ToLower(strings.ReplaceAll(t, " ", "-"))
	}
}

func (s *Service) getJSON(ctx context.Context, upstream, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.http.Do(ctx, req)
	if err != nil {
		obs.ObserveUpstream(upstream, "error", obs.DurationMillis(time.Since(start)))
		return fmt.Errorf("%w: %s: %w", ErrUpstream, upstream, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		obs.ObserveUpstream(upstream, "rejected", obs.DurationMillis(time.Since(start)))
		return fmt.Errorf("%w: %s responded %s", ErrUpstream, upstream, resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(dst); err != nil {
		obs.ObserveUpstream(upstream, "error", obs.DurationMillis(time.Since(start)))
		return fmt.Errorf("%w: %s: decode: %w", ErrUpstream, upstream, err)
	}
	obs.ObserveUpstream(upstream, "ok", obs.DurationMillis(time.Since(start)))
	return nil
}

func badQuery(field, message string) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"field": field},
	}
}
