package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vidpullgo/internal/auth"
	"vidpullgo/internal/models"
	"vidpullgo/internal/utils"
)

// Lister returns one page of media items starting at cursor. An empty cursor
// requests the first page.
type Lister interface {
	FetchPage(ctx context.Context, cursor string, pageSize int, kind models.MediaKind) (models.Page, error)
}

type CredentialProvider interface {
	Credential(ctx context.Context) (auth.Credential, error)
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("catalog request failed with %d: %s", e.StatusCode, e.Message)
}

func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden)
}

type Client struct {
	endpoint string
	creds    CredentialProvider
	http     *http.Client
}

func New(endpoint string, creds CredentialProvider, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		creds:    creds,
		http:     &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	PageSize  int     `json:"pageSize"`
	PageToken string  `json:"pageToken,omitempty"`
	Filters   filters `json:"filters"`
}

type filters struct {
	MediaTypeFilter mediaTypeFilter `json:"mediaTypeFilter"`
}

type mediaTypeFilter struct {
	MediaTypes []string `json:"mediaTypes"`
}

type searchResponse struct {
	MediaItems    []mediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

type mediaItem struct {
	Id            string `json:"id"`
	Filename      string `json:"filename"`
	BaseUrl       string `json:"baseUrl"`
	MimeType      string `json:"mimeType"`
	MediaMetadata struct {
		Video *json.RawMessage `json:"video"`
	} `json:"mediaMetadata"`
}

func (m mediaItem) kind() models.MediaKind {
	if m.MediaMetadata.Video != nil || strings.HasPrefix(m.MimeType, "video/") {
		return models.MediaKindVideo
	}
	return models.MediaKindOther
}

func (c *Client) FetchPage(ctx context.Context, cursor string, pageSize int, kind models.MediaKind) (models.Page, error) {
	cred, err := c.creds.Credential(ctx)
	if err != nil {
		return models.Page{}, err
	}

	body, err := json.Marshal(searchRequest{
		PageSize:  pageSize,
		PageToken: cursor,
		Filters: filters{
			MediaTypeFilter: mediaTypeFilter{MediaTypes: []string{string(kind)}},
		},
	})
	if err != nil {
		return models.Page{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Page{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", tokenType(cred)+" "+cred.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Page{}, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Page{}, &APIError{StatusCode: resp.StatusCode, Message: utils.DescribeErrorBody(resp)}
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return models.Page{}, fmt.Errorf("decode catalog page: %w", err)
	}

	page := models.Page{
		Items:      make([]models.MediaItem, 0, len(sr.MediaItems)),
		NextCursor: sr.NextPageToken,
	}
	for _, m := range sr.MediaItems {
		page.Items = append(page.Items, models.MediaItem{
			Id:            m.Id,
			Filename:      m.Filename,
			SourceLocator: m.BaseUrl,
			Kind:          m.kind(),
		})
	}
	return page, nil
}

func tokenType(cred auth.Credential) string {
	if cred.TokenType == "" || strings.EqualFold(cred.TokenType, "bearer") {
		return "Bearer"
	}
	return cred.TokenType
}
