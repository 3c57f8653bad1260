package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"estate_chat_service/internal/chat/domain"
	"estate_chat_service/pkg/middlewares"
)

// HTTPFetcher MessageFetcher against the chat service REST surface:
// GET {base}/chats/{roomID}?next={RFC3339 cursor}.
type HTTPFetcher struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPFetcher create an HTTPFetcher authenticated with the session token
func NewHTTPFetcher(baseURL, token string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchSince see MessageFetcher.
func (f *HTTPFetcher) FetchSince(ctx context.Context, roomID string, since *time.Time) ([]domain.Message, error) {
	q := url.Values{}
	q.Set(middlewares.QueryToken, f.token)
	if since != nil {
		q.Set("next", since.UTC().Format(time.RFC3339Nano))
	}

	reqURL := fmt.Sprintf("%s/chats/%s?%s", f.baseURL, url.PathEscape(roomID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", roomID, resp.StatusCode)
	}

	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Messages, nil
}
