package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"releasedigest/internal/contracts"
	"releasedigest/internal/httpclient"
	"releasedigest/internal/release"
)

const maxResponseBodyBytes = 1 << 20

const DefaultBaseURL = "https://slack.com/api"

type ClientOptions struct {
	BaseURL      string
	Token        string
	PageLimit    int
	HTTPDoer     httpclient.Doer
	RetryOptions httpclient.Options
}

// Client is a minimal Slack Web API adapter covering the two calls the
// digest needs: channel history and thread replies.
type Client struct {
	baseURL    string
	authHeader string
	pageLimit  int
	client     *httpclient.RetryClient
	redactor   httpclient.Redactor
}

func NewClient(options ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	token := strings.TrimSpace(options.Token)
	if token == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid slack client options: token must be set",
		}
	}

	pageLimit := options.PageLimit
	if pageLimit <= 0 {
		pageLimit = contracts.DefaultHistoryPageLimit
	}

	authHeader := "Bearer " + token
	redactor := httpclient.NewRedactor(token, authHeader)

	return &Client{
		baseURL:    baseURL,
		authHeader: authHeader,
		pageLimit:  pageLimit,
		client:     httpclient.NewRetryClient(options.HTTPDoer, options.RetryOptions),
		redactor:   redactor,
	}, nil
}

// History returns the channel messages newer than oldest (float seconds),
// walking cursor pagination to exhaustion. Messages come back sorted by
// timestamp ascending regardless of the API's page order.
func (c *Client) History(ctx context.Context, channel string, oldest float64) ([]release.Message, error) {
	if c == nil {
		return nil, &Error{Code: ErrorCodeInvalidInput, Message: "slack client is nil"}
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "channel is required",
			redactor:   c.redactor,
		}
	}

	messages := make([]release.Message, 0)
	cursor := ""
	for {
		query := url.Values{}
		query.Set("channel", channel)
		query.Set("limit", strconv.Itoa(c.pageLimit))
		if oldest > 0 {
			query.Set("oldest", formatTS(oldest))
		}
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var response historyAPIResponse
		if err := c.doJSON(ctx, "/conversations.history", query, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Messages {
			message, ok := mapAPIMessage(item)
			if !ok {
				continue
			}
			messages = append(messages, message)
		}

		cursor = strings.TrimSpace(response.ResponseMetadata.NextCursor)
		if !response.HasMore || cursor == "" {
			break
		}
	}

	sort.Slice(messages, func(i int, j int) bool {
		return messages[i].TS < messages[j].TS
	})
	return messages, nil
}

// Replies returns a thread's replies in chronological order, root excluded.
func (c *Client) Replies(ctx context.Context, channel string, rootTS float64) ([]release.Message, error) {
	if c == nil {
		return nil, &Error{Code: ErrorCodeInvalidInput, Message: "slack client is nil"}
	}
	channel = strings.TrimSpace(channel)
	if channel == "" || rootTS <= 0 {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "channel and thread timestamp are required",
			redactor:   c.redactor,
		}
	}

	replies := make([]release.Message, 0)
	cursor := ""
	for {
		query := url.Values{}
		query.Set("channel", channel)
		query.Set("ts", formatTS(rootTS))
		query.Set("limit", strconv.Itoa(c.pageLimit))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var response historyAPIResponse
		if err := c.doJSON(ctx, "/conversations.replies", query, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Messages {
			message, ok := mapAPIMessage(item)
			if !ok || message.TS == rootTS {
				continue
			}
			replies = append(replies, message)
		}

		cursor = strings.TrimSpace(response.ResponseMetadata.NextCursor)
		if !response.HasMore || cursor == "" {
			break
		}
	}

	sort.Slice(replies, func(i int, j int) bool {
		return replies[i].TS < replies[j].TS
	})
	return replies, nil
}

func (c *Client) doJSON(ctx context.Context, resourcePath string, query url.Values, out *historyAPIResponse) error {
	endpoint := c.baseURL + resourcePath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build slack request",
			Err:        err,
			redactor:   c.redactor,
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to execute slack request",
			Err:        err,
			redactor:   c.redactor,
		}
	}
	defer resp.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to read slack response body",
			Err:        readErr,
			redactor:   c.redactor,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Code:       ErrorCodeUnexpectedStatus,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("slack request failed with status %d", resp.StatusCode),
			redactor:   c.redactor,
		}
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return &Error{
			Code:       ErrorCodeResponseDecode,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode slack response body",
			Err:        err,
			redactor:   c.redactor,
		}
	}

	if !out.OK {
		return c.apiError(out.ErrorCode)
	}
	return nil
}

// apiError maps Slack's ok:false envelope to a typed error. Auth failures
// get their own code so the CLI can report them distinctly.
func (c *Client) apiError(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		code = "unknown_error"
	}

	switch code {
	case "invalid_auth", "not_authed", "account_inactive", "token_revoked", "token_expired":
		return &Error{
			Code:       ErrorCodeAuthFailed,
			ReasonCode: contracts.ReasonCodeAuthFailed,
			Message:    "slack authentication failed: " + code,
			redactor:   c.redactor,
		}
	default:
		return &Error{
			Code:       ErrorCodeAPIError,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "slack api error: " + code,
			redactor:   c.redactor,
		}
	}
}

type historyAPIResponse struct {
	OK               bool             `json:"ok"`
	ErrorCode        string           `json:"error"`
	Messages         []messageAPIData `json:"messages"`
	HasMore          bool             `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type messageAPIData struct {
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
}

func mapAPIMessage(raw messageAPIData) (release.Message, bool) {
	ts, err := strconv.ParseFloat(strings.TrimSpace(raw.TS), 64)
	if err != nil || ts <= 0 {
		return release.Message{}, false
	}

	message := release.Message{Text: raw.Text, TS: ts}
	if threadTS := strings.TrimSpace(raw.ThreadTS); threadTS != "" {
		if parsed, parseErr := strconv.ParseFloat(threadTS, 64); parseErr == nil {
			message.ThreadTS = parsed
		}
	}
	return message, true
}

// formatTS renders a float-seconds timestamp in Slack's "sec.micros" form.
func formatTS(ts float64) string {
	return strconv.FormatFloat(ts, 'f', 6, 64)
}
