package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"tidalsync/internal/shared"
	tidaltest "tidalsync/internal/testing"
)

func clientWithHandler(handler func(*http.Request) (*http.Response, error)) *TidalClient {
	return NewTidalClient(TidalClientOpts{
		BaseURL:    "https://api.test/v2",
		RateLimit:  1000,
		HTTPClient: &http.Client{Transport: &tidaltest.MockRoundTripper{Handler: handler}},
	})
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestGetPlaylists(t *testing.T) {
	var gotPath string
	client := clientWithHandler(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return jsonResponse(http.StatusOK, `{
			"totalNumberOfItems": 2,
			"items": [
				{"uuid": "pl-1", "title": "Chill", "description": "evening", "numberOfTracks": 12, "lastUpdated": "2026-08-30T10:00:00Z"},
				{"uuid": "pl-2", "title": "Workout", "numberOfTracks": 30, "lastUpdated": "not a date"}
			]
		}`), nil
	})

	playlists, err := client.GetPlaylists(context.Background())
	if err != nil {
		t.Fatalf("failed to get playlists: %v", err)
	}
	if gotPath != "/v2/my-collection/playlists" {
		t.Errorf("unexpected request path %s", gotPath)
	}
	if len(playlists) != 2 {
		t.Fatalf("expected 2 playlists, got %d", len(playlists))
	}

	first := playlists[0]
	if first.TidalID != "pl-1" || first.Name != "Chill" || first.NumTracks != 12 {
		t.Errorf("unexpected playlist mapping: %+v", first)
	}
	if first.LastUpdated == nil {
		t.Error("expected last updated parsed")
	}
	if playlists[1].LastUpdated != nil {
		t.Error("unparseable timestamp should be dropped, not fail the record")
	}
}

func TestGetPlaylistTracks(t *testing.T) {
	client := clientWithHandler(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/playlists/pl-1/tracks") {
			t.Errorf("unexpected request path %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{
			"totalNumberOfItems": 1,
			"items": [
				{
					"id": 77003921,
					"title": "Around the World",
					"duration": 428,
					"trackNumber": 7,
					"volumeNumber": 1,
					"explicit": false,
					"isrc": "GBDUW0600001",
					"audioQuality": "LOSSLESS",
					"artist": {"name": "Daft Punk"},
					"album": {"title": "Homework"}
				}
			]
		}`), nil
	})

	tracks, err := client.GetPlaylistTracks(context.Background(), "pl-1")
	if err != nil {
		t.Fatalf("failed to get tracks: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}

	track := tracks[0]
	if track.TidalID != "77003921" {
		t.Errorf("expected numeric id as string, got %q", track.TidalID)
	}
	if track.Artist != "Daft Punk" || track.Album != "Homework" {
		t.Errorf("unexpected nested field mapping: %+v", track)
	}
	if track.Duration != 428 || track.TrackNum != 7 || track.AudioQuality != "LOSSLESS" {
		t.Errorf("unexpected track mapping: %+v", track)
	}
}

func TestGetPlaylistsErrorStatus(t *testing.T) {
	client := clientWithHandler(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error": "throttled"}`), nil
	})

	if _, err := client.GetPlaylists(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
		t.Errorf("expected ErrAPIRequest, got %v", err)
	}
}

func TestGetPlaylistsMalformedBody(t *testing.T) {
	client := clientWithHandler(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"items": [`), nil
	})

	if _, err := client.GetPlaylists(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
		t.Errorf("expected ErrAPIRequest, got %v", err)
	}
}

func TestGetPlaylistsTransportError(t *testing.T) {
	client := clientWithHandler(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	if _, err := client.GetPlaylists(context.Background()); !errors.Is(err, shared.ErrAPIRequest) {
		t.Errorf("expected ErrAPIRequest, got %v", err)
	}
}

func TestParseTidalTime(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  bool
	}{
		{"rfc3339", "2026-08-30T10:00:00Z", true},
		{"tidal offset", "2026-08-30T10:00:00.000+0000", true},
		{"empty", "", false},
		{"garbage", "yesterday", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTidalTime(tc.value)
			if (got != nil) != tc.want {
				t.Errorf("parseTidalTime(%q) = %v, want parsed=%t", tc.value, got, tc.want)
			}
		})
	}
}
