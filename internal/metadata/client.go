package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Result represents a single catalog search match.
type Result struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	MediaType    string  `json:"media_type"`
	Popularity   float64 `json:"popularity"`
	VoteAverage  float64 `json:"vote_average"`
	VoteCount    int64   `json:"vote_count"`
}

// DisplayTitle returns whichever of the movie or TV title fields is set.
func (r Result) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Year extracts the release year from whichever date field is set.
func (r Result) Year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// Response models the catalog's paginated search response.
type Response struct {
	Page         int      `json:"page"`
	Results      []Result `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

// CastMember is one credited performer on a title.
type CastMember struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`
	Order     int    `json:"order"`
}

// Credits holds the cast list for a title.
type Credits struct {
	ID   int64        `json:"id"`
	Cast []CastMember `json:"cast"`
}

// Person is a catalog person-search match.
type Person struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Popularity float64 `json:"popularity"`
}

type personResponse struct {
	Results []Person `json:"results"`
}

// Provider is one streaming service carrying a title.
type Provider struct {
	ProviderName string `json:"provider_name"`
}

type providerRegion struct {
	Flatrate []Provider `json:"flatrate"`
	Rent     []Provider `json:"rent"`
	Buy      []Provider `json:"buy"`
}

type providerResponse struct {
	Results map[string]providerRegion `json:"results"`
}

// SearchOptions carries the optional filters for catalog searches.
type SearchOptions struct {
	Year int
}

// Catalog defines the metadata operations the recognition engine depends on.
type Catalog interface {
	SearchMovie(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	SearchTV(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	SearchMulti(ctx context.Context, query string, opts SearchOptions) (*Response, error)
	MovieDetails(ctx context.Context, movieID int64) (*Result, error)
	TVDetails(ctx context.Context, showID int64) (*Result, error)
	CastNames(ctx context.Context, mediaType string, titleID int64) ([]string, error)
	SimilarTitles(ctx context.Context, mediaType string, titleID int64) ([]string, error)
	Availability(ctx context.Context, mediaType string, titleID int64, region string) ([]string, error)
	SearchPerson(ctx context.Context, name string) (*Person, error)
	DiscoverByCast(ctx context.Context, personIDs []int64) (*Response, error)
}

// Client talks to a TMDB-compatible metadata catalog.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ Catalog = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a catalog client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("metadata api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("metadata base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchMovie searches the catalog for a movie title.
func (c *Client) SearchMovie(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	if opts.Year > 0 {
		params.Set("primary_release_year", strconv.Itoa(opts.Year))
	}
	var payload Response
	if err := c.getJSON(ctx, "/search/movie", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchTV searches the catalog for a TV series title.
func (c *Client) SearchTV(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	if opts.Year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(opts.Year))
	}
	var payload Response
	if err := c.getJSON(ctx, "/search/tv", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SearchMulti searches across media types when the kind of title is unknown.
func (c *Client) SearchMulti(ctx context.Context, query string, opts SearchOptions) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	params := url.Values{}
	params.Set("query", query)
	if opts.Year > 0 {
		params.Set("year", strconv.Itoa(opts.Year))
	}
	var payload Response
	if err := c.getJSON(ctx, "/search/multi", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// MovieDetails fetches movie details by catalog ID.
func (c *Client) MovieDetails(ctx context.Context, movieID int64) (*Result, error) {
	if movieID <= 0 {
		return nil, errors.New("movie id must be positive")
	}
	var payload Result
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", movieID), nil, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "movie"
	return &payload, nil
}

// TVDetails fetches TV series details by catalog ID.
func (c *Client) TVDetails(ctx context.Context, showID int64) (*Result, error) {
	if showID <= 0 {
		return nil, errors.New("show id must be positive")
	}
	var payload Result
	if err := c.getJSON(ctx, fmt.Sprintf("/tv/%d", showID), nil, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = "tv"
	return &payload, nil
}

// CastNames fetches the credited cast for a title, billing order preserved.
func (c *Client) CastNames(ctx context.Context, mediaType string, titleID int64) ([]string, error) {
	if titleID <= 0 {
		return nil, errors.New("title id must be positive")
	}
	var payload Credits
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d/credits", mediaSegment(mediaType), titleID), nil, &payload); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(payload.Cast))
	for _, member := range payload.Cast {
		if member.Name != "" {
			names = append(names, member.Name)
		}
	}
	return names, nil
}

// SimilarTitles fetches titles the catalog considers similar.
func (c *Client) SimilarTitles(ctx context.Context, mediaType string, titleID int64) ([]string, error) {
	if titleID <= 0 {
		return nil, errors.New("title id must be positive")
	}
	var payload Response
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d/similar", mediaSegment(mediaType), titleID), nil, &payload); err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(payload.Results))
	for _, result := range payload.Results {
		if title := result.DisplayTitle(); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// Availability fetches the streaming services carrying a title in a region.
func (c *Client) Availability(ctx context.Context, mediaType string, titleID int64, region string) ([]string, error) {
	if titleID <= 0 {
		return nil, errors.New("title id must be positive")
	}
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "US"
	}
	var payload providerResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/%s/%d/watch/providers", mediaSegment(mediaType), titleID), nil, &payload); err != nil {
		return nil, err
	}
	entry, ok := payload.Results[region]
	if !ok {
		return nil, nil
	}
	seen := make(map[string]bool)
	var services []string
	for _, group := range [][]Provider{entry.Flatrate, entry.Rent, entry.Buy} {
		for _, provider := range group {
			if provider.ProviderName == "" || seen[provider.ProviderName] {
				continue
			}
			seen[provider.ProviderName] = true
			services = append(services, provider.ProviderName)
		}
	}
	return services, nil
}

// SearchPerson resolves an actor name to the most popular catalog person.
func (c *Client) SearchPerson(ctx context.Context, name string) (*Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("person name must not be empty")
	}
	params := url.Values{}
	params.Set("query", name)
	var payload personResponse
	if err := c.getJSON(ctx, "/search/person", params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, nil
	}
	best := payload.Results[0]
	for _, person := range payload.Results[1:] {
		if person.Popularity > best.Popularity {
			best = person
		}
	}
	return &best, nil
}

// DiscoverByCast lists movies whose cast includes every supplied person,
// popularity-ordered. Used for the shared-filmography fallback.
func (c *Client) DiscoverByCast(ctx context.Context, personIDs []int64) (*Response, error) {
	if len(personIDs) == 0 {
		return nil, errors.New("at least one person id required")
	}
	tokens := make([]string, 0, len(personIDs))
	for _, id := range personIDs {
		if id > 0 {
			tokens = append(tokens, strconv.FormatInt(id, 10))
		}
	}
	if len(tokens) == 0 {
		return nil, errors.New("at least one person id required")
	}
	params := url.Values{}
	params.Set("with_cast", strings.Join(tokens, ","))
	params.Set("sort_by", "popularity.desc")
	var payload Response
	if err := c.getJSON(ctx, "/discover/movie", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func mediaSegment(mediaType string) string {
	if strings.EqualFold(strings.TrimSpace(mediaType), "tv") {
		return "tv"
	}
	return "movie"
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse catalog url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog %s returned %d (latency=%v)", path, resp.StatusCode, latency)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
