package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pairchat/internal/model"

	"github.com/gorilla/websocket"
)

// APIClient talks to the HTTP API on behalf of one party.
type APIClient struct {
	host    string
	partyID model.PartyID
	http    *http.Client
}

func NewAPIClient(host string, partyID model.PartyID) *APIClient {
	return &APIClient{host: host, partyID: partyID, http: http.DefaultClient}
}

// StatusError is returned for any non 2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Body)
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := url.URL{
		Scheme:   "http",
		Host:     c.host,
		Path:     path,
		RawQuery: query.Encode(),
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Party-ID", strconv.FormatInt(int64(c.partyID), 10))
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *APIClient) OpenThread(ctx context.Context, other model.PartyID) (model.ThreadID, error) {
	var resp struct {
		ThreadID model.ThreadID `json:"thread_id"`
	}
	err := c.do(ctx, http.MethodPost, "/threads", nil, map[string]model.PartyID{"other_id": other}, &resp)
	return resp.ThreadID, err
}

func (c *APIClient) Send(ctx context.Context, id model.ThreadID, content string) (*model.Message, error) {
	var msg model.Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/threads/%s/messages", id), nil, map[string]string{"content": content}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *APIClient) History(ctx context.Context, id model.ThreadID, limit, offset int) (*model.Page, error) {
	q := url.Values{
		"limit":  []string{strconv.Itoa(limit)},
		"offset": []string{strconv.Itoa(offset)},
	}
	var page model.Page
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/threads/%s/messages", id), q, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *APIClient) MarkRead(ctx context.Context, id model.ThreadID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/threads/%s/read", id), nil, nil, nil)
}

func (c *APIClient) initWebhook() (*websocket.Conn, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   c.host,
		Path:   "/ws",
	}

	header := http.Header{}
	header.Set("X-Party-ID", strconv.FormatInt(int64(c.partyID), 10))
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		return nil, err
	}

	return conn, nil
}
