package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/escofresco/transfer/internal/shared"
)

var errBoom = errors.New("boom")

func spotifyMux(t *testing.T) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer user-access" {
			t.Errorf("expected user bearer token, got %q", got)
		}
		writeJSON(w, http.StatusOK, `{"id":"u1","display_name":"Ada","email":"ada@example.com"}`)
	})

	mux.HandleFunc("GET /me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("time_range") != "medium_term" {
			t.Errorf("unexpected top tracks query %v", q)
		}
		writeJSON(w, http.StatusOK, `{"items":[
			{"id":"t1","name":"One","artists":[{"name":"A"},{"name":"B"}]},
			{"id":"t2","name":"Two","artists":[{"name":"C"}]}
		]}`)
	})

	mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[{"id":"p1","name":"Road Trip"},{"id":"p2","name":"Focus"}]}`)
	})

	mux.HandleFunc("GET /playlists/{id}/{rest}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[
			{"track":{"type":"track","id":"t1","name":"One","artists":[{"name":"A"}]}},
			{"track":null},
			{"track":{"type":"track","id":"t3","name":"Three","artists":[{"name":"D"}]}}
		]}`)
	})

	mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "Hey Jude The Beatles" || q.Get("type") != "track" || q.Get("limit") != "1" {
			t.Errorf("unexpected search query %v", q)
		}
		writeJSON(w, http.StatusOK, `{"tracks":{"items":[{"id":"m1","name":"Hey Jude","artists":[{"name":"The Beatles"}]}]}}`)
	})

	mux.HandleFunc("POST /users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("user") != "u1" {
			t.Errorf("expected playlist for u1, got %s", r.PathValue("user"))
		}
		var body struct {
			Name   string `json:"name"`
			Public bool   `json:"public"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Name != "Road Trip" {
			t.Errorf("expected name Road Trip, got %q", body.Name)
		}
		writeJSON(w, http.StatusCreated, `{"id":"new1","name":"Road Trip"}`)
	})

	mux.HandleFunc("POST /playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			URIs []string `json:"uris"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.URIs) != 2 || body.URIs[0] != "spotify:track:a" || body.URIs[1] != "spotify:track:b" {
			t.Errorf("unexpected uris %v", body.URIs)
		}
		writeJSON(w, http.StatusCreated, `{"snapshot_id":"s1"}`)
	})

	mux.HandleFunc("DELETE /playlists/{id}/followers", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "new1" {
			t.Errorf("expected new1, got %s", r.PathValue("id"))
		}
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

func TestSpotifyClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Profile", func(t *testing.T) {
		server, _ := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		profile, err := client.Profile(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if profile.ID != "u1" || profile.DisplayName != "Ada" || profile.Email != "ada@example.com" {
			t.Errorf("unexpected profile %+v", profile)
		}
	})

	t.Run("TopTracks", func(t *testing.T) {
		server, _ := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		tracks, err := client.TopTracks(ctx, 5, MediumTerm)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].ArtistNames() != "A, B" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Playlists", func(t *testing.T) {
		server, _ := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		playlists, err := client.Playlists(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(playlists) != 2 || playlists[0].ID != "p1" || playlists[1].Name != "Focus" {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("PlaylistTracks Skips Empty Items", func(t *testing.T) {
		server, _ := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		tracks, err := client.PlaylistTracks(ctx, "p1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 || tracks[0].ID != "t1" || tracks[1].ID != "t3" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("SearchTrack With Client Token", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer client-access" {
				t.Errorf("expected client bearer token, got %q", got)
			}
			spotifyMux(t).ServeHTTP(w, r)
		})
		server, _ := countingServer(t, mux)
		client := NewSpotifyClient(clientTokens(), WithBaseURL(server.URL+"/"))

		tracks, err := client.SearchTrack(ctx, "Hey Jude The Beatles", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 1 || tracks[0].ID != "m1" {
			t.Errorf("unexpected tracks %+v", tracks)
		}
	})

	t.Run("Client Token Rejected For User Endpoints", func(t *testing.T) {
		server, count := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(clientTokens(), WithBaseURL(server.URL+"/"))

		if _, err := client.Profile(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if _, err := client.Playlists(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if err := client.DeletePlaylist(ctx, "p1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
		if count.Load() != 0 {
			t.Errorf("expected no requests, got %d", count.Load())
		}
	})

	t.Run("CreatePlaylist Looks Up User", func(t *testing.T) {
		server, count := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		p, err := client.CreatePlaylist(ctx, "Road Trip")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ID != "new1" || p.Name != "Road Trip" {
			t.Errorf("unexpected playlist %+v", p)
		}
		if count.Load() != 2 {
			t.Errorf("expected profile lookup and create, got %d requests", count.Load())
		}
	})

	t.Run("CreatePlaylist Reuses Profile User", func(t *testing.T) {
		server, count := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		if _, err := client.Profile(ctx); err != nil {
			t.Fatalf("Profile: %v", err)
		}
		if _, err := client.CreatePlaylist(ctx, "Road Trip"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if count.Load() != 2 {
			t.Errorf("expected profile and create requests only, got %d", count.Load())
		}
	})

	t.Run("AddTracks And Delete", func(t *testing.T) {
		server, _ := countingServer(t, spotifyMux(t))
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		if err := client.AddTracks(ctx, "new1", []string{"a", "b"}); err != nil {
			t.Fatalf("AddTracks: %v", err)
		}
		if err := client.DeletePlaylist(ctx, "new1"); err != nil {
			t.Fatalf("DeletePlaylist: %v", err)
		}
	})

	t.Run("Decode Failure", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, `not json`)
		})
		server, _ := countingServer(t, mux)
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		_, err := client.Profile(ctx)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != DecodeFailure {
			t.Errorf("expected decode failure, got %v", err)
		}
	})

	t.Run("Error Status", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /me/playlists", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, `{"error":{"status":500,"message":"boom"}}`)
		})
		server, _ := countingServer(t, mux)
		client := NewSpotifyClient(userTokens(), WithBaseURL(server.URL+"/"))

		_, err := client.Playlists(ctx)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != NetworkFailure || fe.Status != http.StatusInternalServerError {
			t.Errorf("expected network failure with status 500, got %v", err)
		}
	})

	t.Run("Network Failure", func(t *testing.T) {
		client := NewSpotifyClient(userTokens(), WithBaseURL("http://127.0.0.1:1/"))

		_, err := client.Playlists(ctx)
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Kind != NetworkFailure {
			t.Errorf("expected network failure, got %v", err)
		}
	})
}
