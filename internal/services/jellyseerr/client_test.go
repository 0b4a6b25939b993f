package jellyseerr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRequestBodies(t *testing.T) {
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/request", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"id":55,"status":1}`))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{JellyseerrURL: srv.URL, JellyseerrAPIKey: "key", HTTPTimeout: time.Second}, zerolog.Nop())

	req, err := c.CreateRequest(context.Background(), 603, models.MediaTypeMovie, nil)
	require.NoError(t, err)
	assert.Equal(t, 55, req.ID)

	tvdb := 81189
	_, err = c.CreateRequest(context.Background(), 1396, models.MediaTypeAnime, &tvdb)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.Equal(t, "movie", bodies[0]["mediaType"])
	assert.EqualValues(t, 603, bodies[0]["mediaId"])
	assert.NotContains(t, bodies[0], "seasons")
	assert.NotContains(t, bodies[0], "tvdbId")

	assert.Equal(t, "tv", bodies[1]["mediaType"])
	assert.Equal(t, "all", bodies[1]["seasons"])
	assert.EqualValues(t, 81189, bodies[1]["tvdbId"])
}

func TestCreateRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("already requested"))
	}))
	defer srv.Close()

	c := NewClient(&config.Config{JellyseerrURL: srv.URL, HTTPTimeout: time.Second}, zerolog.Nop())
	_, err := c.CreateRequest(context.Background(), 1, models.MediaTypeMovie, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 409")
}

func TestWebhookPayloadAcceptsBothShapes(t *testing.T) {
	var typed WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"eventType":"Request_Available","media":{"tmdbId":603,"mediaType":"movie"},"request":{"requestId":9}}`), &typed))
	assert.Equal(t, EventRequestAvailable, typed.Event())
	assert.Equal(t, FlexInt(603), typed.Media.TmdbID)
	assert.Equal(t, "movie", typed.Media.Kind())
	assert.Equal(t, 9, typed.Request.ID())

	var templated WebhookPayload
	require.NoError(t, json.Unmarshal([]byte(`{"notification_type":"MEDIA_AVAILABLE","media":{"tmdbId":"1396","tvdbId":"","media_type":"tv"},"request":{"request_id":"12"}}`), &templated))
	assert.Equal(t, EventMediaAvailable, templated.Event())
	assert.Equal(t, FlexInt(1396), templated.Media.TmdbID)
	assert.Equal(t, FlexInt(0), templated.Media.TvdbID)
	assert.Equal(t, "tv", templated.Media.Kind())
	assert.Equal(t, 12, templated.Request.ID())
}

func TestWebhookMediaTypes(t *testing.T) {
	assert.Equal(t, []models.MediaType{models.MediaTypeMovie}, (&WebhookMedia{MediaType: "Movie"}).MediaTypes())
	assert.Equal(t, []models.MediaType{models.MediaTypeSeries, models.MediaTypeAnime}, (&WebhookMedia{MediaTypeAlt: "tv"}).MediaTypes())
	assert.Nil(t, (&WebhookMedia{}).MediaTypes())
}
