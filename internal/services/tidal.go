package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"tidalsync/internal/models"
	"tidalsync/internal/shared"
)

// TidalClient implements [PlaylistSource] over the Tidal HTTP API.
//
// Authentication uses the oauth2 client-credentials flow; the token source
// refreshes expired tokens transparently. Requests are paced by a rate
// limiter so large libraries do not trip the API's throttling.
type TidalClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// TidalClientOpts configures a [TidalClient].
type TidalClientOpts struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
	RateLimit    float64      // requests per second, defaults to 5
	HTTPClient   *http.Client // overrides the oauth2 client, used in tests
}

// NewTidalClient creates a TidalClient from the given options.
func NewTidalClient(opts TidalClientOpts) *TidalClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openapi.tidal.com/v2"
	}
	if opts.TokenURL == "" {
		opts.TokenURL = "https://auth.tidal.com/v1/oauth2/token"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		conf := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
		}
		httpClient = conf.Client(context.Background())
	}

	return &TidalClient{
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}
}

// Name returns the service name.
func (c *TidalClient) Name() string { return "Tidal" }

// tidalPlaylist mirrors the playlist JSON shape returned by the API.
type tidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
	LastUpdated    string `json:"lastUpdated"`
}

// tidalTrack mirrors the track JSON shape returned by the API.
type tidalTrack struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Duration     int    `json:"duration"`
	TrackNumber  int    `json:"trackNumber"`
	VolumeNumber int    `json:"volumeNumber"`
	Explicit     bool   `json:"explicit"`
	ISRC         string `json:"isrc"`
	AudioQuality string `json:"audioQuality"`
	Artist       struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		Title string `json:"title"`
	} `json:"album"`
}

type tidalPage[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"totalNumberOfItems"`
}

// GetPlaylists retrieves all playlists of the authenticated user.
func (c *TidalClient) GetPlaylists(ctx context.Context) ([]models.RemotePlaylist, error) {
	var page tidalPage[tidalPlaylist]
	if err := c.getJSON(ctx, "/my-collection/playlists", &page); err != nil {
		return nil, err
	}

	playlists := make([]models.RemotePlaylist, 0, len(page.Items))
	for _, item := range page.Items {
		playlists = append(playlists, models.RemotePlaylist{
			TidalID:     item.UUID,
			Name:        item.Title,
			Description: item.Description,
			NumTracks:   item.NumberOfTracks,
			LastUpdated: parseTidalTime(item.LastUpdated),
		})
	}

	return playlists, nil
}

// GetPlaylistTracks retrieves a playlist's tracks in playlist order.
func (c *TidalClient) GetPlaylistTracks(ctx context.Context, playlistID string) ([]models.RemoteTrack, error) {
	path := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	var page tidalPage[tidalTrack]
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}

	tracks := make([]models.RemoteTrack, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, models.RemoteTrack{
			TidalID:      strconv.FormatInt(item.ID, 10),
			Title:        item.Title,
			Artist:       item.Artist.Name,
			Album:        item.Album.Title,
			Duration:     item.Duration,
			TrackNum:     item.TrackNumber,
			VolumeNum:    item.VolumeNumber,
			Explicit:     item.Explicit,
			ISRC:         item.ISRC,
			AudioQuality: item.AudioQuality,
		})
	}

	return tracks, nil
}

// getJSON performs a rate-limited GET and decodes the JSON response body.
func (c *TidalClient) getJSON(ctx context.Context, path string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrAPIRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: GET %s returned status %d", shared.ErrAPIRequest, path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}

	return nil
}

// parseTidalTime parses the RFC3339-ish timestamps the API returns.
// Unparseable values are dropped rather than failing the whole record.
func parseTidalTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000-0700"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
