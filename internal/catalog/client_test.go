package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidpullgo/internal/auth"
	"vidpullgo/internal/models"
)

type failingCreds struct{}

func (failingCreds) Credential(context.Context) (auth.Credential, error) {
	return auth.Credential{}, errors.New("refresh failed")
}

func TestFetchPageRequestAndDecode(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"mediaItems": [
				{"id":"1","filename":"a.mp4","baseUrl":"https://lh3.test/a","mimeType":"video/mp4","mediaMetadata":{"video":{"fps":30}}},
				{"id":"2","filename":"b.jpg","baseUrl":"https://lh3.test/b","mimeType":"image/jpeg","mediaMetadata":{"photo":{}}}
			],
			"nextPageToken": "NEXT"
		}`)
	}))
	defer srv.Close()

	c := New(srv.URL, auth.NewStatic("tok"), 5*time.Second)
	page, err := c.FetchPage(context.Background(), "CUR", 100, models.MediaKindVideo)
	require.NoError(t, err)

	assert.Equal(t, 100, got.PageSize)
	assert.Equal(t, "CUR", got.PageToken)
	assert.Equal(t, []string{"VIDEO"}, got.Filters.MediaTypeFilter.MediaTypes)

	require.Len(t, page.Items, 2)
	assert.Equal(t, "NEXT", page.NextCursor)
	assert.Equal(t, models.MediaItem{Id: "1", Filename: "a.mp4", SourceLocator: "https://lh3.test/a", Kind: models.MediaKindVideo}, page.Items[0])
	assert.Equal(t, models.MediaKindOther, page.Items[1].Kind)
}

func TestFetchPageOmitsEmptyCursor(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	page, err := New(srv.URL, auth.NewStatic("tok"), time.Second).FetchPage(context.Background(), "", 10, models.MediaKindVideo)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
	assert.NotContains(t, raw, "pageToken")
}

func TestFetchPageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":401,"message":"Invalid Credentials","status":"UNAUTHENTICATED"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, auth.NewStatic("tok"), time.Second).FetchPage(context.Background(), "", 10, models.MediaKindVideo)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "UNAUTHENTICATED: Invalid Credentials", apiErr.Message)
}

func TestFetchPageCredentialError(t *testing.T) {
	c := New("http://127.0.0.1:0", failingCreds{}, time.Second)
	_, err := c.FetchPage(context.Background(), "", 10, models.MediaKindVideo)
	assert.EqualError(t, err, "refresh failed")
}

func TestFetchPageMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"mediaItems": [`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, auth.NewStatic("tok"), time.Second).FetchPage(context.Background(), "", 10, models.MediaKindVideo)
	assert.ErrorContains(t, err, "decode catalog page")
}
