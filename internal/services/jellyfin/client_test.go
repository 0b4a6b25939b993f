package jellyfin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/storarr/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsBody = `{"Items":[
	{"Id":"a1","Name":"Movie A","Path":"/media/Movies/A/A.mkv","Type":"Movie","UserData":{"LastPlayedDate":"2024-03-01T10:00:00Z"}},
	{"Id":"b2","Name":"Ep","Path":"/media/TV/Show/S01E02.mkv","Type":"Episode","LastPlayedDate":"2024-02-01T10:00:00Z"},
	{"Id":"c3","Name":"Never","Path":"/media/Movies/C/C.mkv","Type":"Movie"}
],"TotalRecordCount":3}`

func newServer(t *testing.T, calls *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, "token", r.Header.Get("X-Emby-Token"))
		assert.Equal(t, "/Users/u1/Items", r.URL.Path)
		assert.Equal(t, "Movie,Episode", r.URL.Query().Get("IncludeItemTypes"))
		_, _ = w.Write([]byte(itemsBody))
	}))
}

func newClient(url string) *Client {
	return NewClient(&config.Config{
		JellyfinURL:    url,
		JellyfinAPIKey: "token",
		JellyfinUserID: "u1",
		HTTPTimeout:    time.Second,
	}, zerolog.Nop())
}

func TestItemsAreCached(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	c := newClient(srv.URL)
	item, err := c.ItemByPath(context.Background(), "/media/Movies/A/A.mkv")
	require.NoError(t, err)
	require.NotNil(t, item)

	_, err = c.ItemByPath(context.Background(), "/media/Movies/C/C.mkv")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestItemByPathPrefersUserData(t *testing.T) {
	var calls int32
	srv := newServer(t, &calls)
	defer srv.Close()

	c := newClient(srv.URL)
	item, err := c.ItemByPath(context.Background(), `\media\movies\a\a.MKV`)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "a1", item.ID)
	require.NotNil(t, item.LastPlayed())
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), item.LastPlayed().UTC())

	item, err = c.ItemByPath(context.Background(), "/media/TV/Show/S01E02.mkv")
	require.NoError(t, err)
	require.NotNil(t, item.LastPlayed())
	assert.Equal(t, time.February, item.LastPlayed().Month())

	item, err = c.ItemByPath(context.Background(), "/media/Movies/C/C.mkv")
	require.NoError(t, err)
	assert.Nil(t, item.LastPlayed())

	item, err = c.ItemByPath(context.Background(), "/media/missing.mkv")
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestConcurrentRefreshIsShared(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_, _ = w.Write([]byte(itemsBody))
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	done := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := c.ItemByPath(context.Background(), "/media/Movies/A/A.mkv")
			done <- err
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	for i := 0; i < 4; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
