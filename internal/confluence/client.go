package confluence

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"releasedigest/internal/contracts"
	"releasedigest/internal/httpclient"
)

const maxResponseBodyBytes = 1 << 20

const DefaultBaseURL = "https://api.atlassian.com"

// VersionMessage is recorded on every automated page update so the page
// history distinguishes digest writes from manual edits.
const VersionMessage = "Automated update from release digest"

type ClientOptions struct {
	BaseURL      string
	CloudID      string
	Email        string
	APIToken     string
	HTTPDoer     httpclient.Doer
	RetryOptions httpclient.Options
}

// Page is the subset of the Confluence v2 page resource the digest needs
// for an optimistic read-modify-write cycle.
type Page struct {
	ID      string
	Title   string
	Version int
}

// Client talks to the Confluence Cloud v2 pages API under
// /ex/confluence/{cloudID}/wiki/api/v2.
type Client struct {
	baseURL    string
	cloudID    string
	authHeader string
	client     *httpclient.RetryClient
	redactor   httpclient.Redactor
}

func NewClient(options ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(options.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cloudID := strings.TrimSpace(options.CloudID)
	email := strings.TrimSpace(options.Email)
	apiToken := strings.TrimSpace(options.APIToken)
	if cloudID == "" || email == "" || apiToken == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid confluence client options: cloud id, email and api token must be set",
		}
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(email + ":" + apiToken))
	authHeader := "Basic " + credentials
	redactor := httpclient.NewRedactor(apiToken, credentials, authHeader)

	return &Client{
		baseURL:    baseURL,
		cloudID:    cloudID,
		authHeader: authHeader,
		client:     httpclient.NewRetryClient(options.HTTPDoer, options.RetryOptions),
		redactor:   redactor,
	}, nil
}

// GetPage reads the page's current title and version number.
func (c *Client) GetPage(ctx context.Context, pageID string) (Page, error) {
	if c == nil {
		return Page{}, &Error{Code: ErrorCodeInvalidInput, Message: "confluence client is nil"}
	}
	pageID = strings.TrimSpace(pageID)
	if pageID == "" {
		return Page{}, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "page id is required",
			redactor:   c.redactor,
		}
	}

	var payload pageAPIData
	if err := c.doJSON(ctx, http.MethodGet, c.pageURL(pageID), nil, &payload); err != nil {
		return Page{}, err
	}

	return Page{
		ID:      payload.ID,
		Title:   payload.Title,
		Version: payload.Version.Number,
	}, nil
}

// UpdatePage writes body as the page's new content at version current+1.
// A version conflict means another writer got there first; the caller
// reports it and the next scheduled run re-reads and retries.
func (c *Client) UpdatePage(ctx context.Context, page Page, body string) (Page, error) {
	if c == nil {
		return Page{}, &Error{Code: ErrorCodeInvalidInput, Message: "confluence client is nil"}
	}
	if strings.TrimSpace(page.ID) == "" || page.Version < 1 {
		return Page{}, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "page id and current version are required",
			redactor:   c.redactor,
		}
	}

	request := updatePageAPIRequest{
		ID:     page.ID,
		Status: "current",
		Title:  page.Title,
		Body:   body,
	}
	request.Version.Number = page.Version + 1
	request.Version.Message = VersionMessage

	var payload pageAPIData
	if err := c.doJSON(ctx, http.MethodPut, c.pageURL(page.ID), request, &payload); err != nil {
		return Page{}, err
	}

	updated := Page{
		ID:      payload.ID,
		Title:   payload.Title,
		Version: payload.Version.Number,
	}
	if updated.Version == 0 {
		updated.Version = page.Version + 1
	}
	return updated, nil
}

func (c *Client) pageURL(pageID string) string {
	return fmt.Sprintf("%s/ex/confluence/%s/wiki/api/v2/pages/%s", c.baseURL, c.cloudID, pageID)
}

func (c *Client) doJSON(ctx context.Context, method string, endpoint string, requestBody any, out *pageAPIData) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return &Error{
				Code:       ErrorCodeRequestBuild,
				ReasonCode: contracts.ReasonCodeValidationFailed,
				Message:    "failed to encode confluence request body",
				Err:        err,
				redactor:   c.redactor,
			}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build confluence request",
			Err:        err,
			redactor:   c.redactor,
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to execute confluence request",
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
			Message:    "failed to read confluence response body",
			Err:        readErr,
			redactor:   c.redactor,
		}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &Error{
			Code:       ErrorCodeAuthFailed,
			ReasonCode: contracts.ReasonCodeAuthFailed,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("confluence authentication failed with status %d", resp.StatusCode),
			redactor:   c.redactor,
		}
	case resp.StatusCode == http.StatusConflict:
		return &Error{
			Code:       ErrorCodeVersionConflict,
			ReasonCode: contracts.ReasonCodeVersionConflict,
			StatusCode: resp.StatusCode,
			Message:    "confluence page version conflict: page was modified concurrently",
			redactor:   c.redactor,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &Error{
			Code:       ErrorCodeUnexpectedStatus,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("confluence request failed with status %d", resp.StatusCode),
			redactor:   c.redactor,
		}
	}

	if len(bytes.TrimSpace(responseBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return &Error{
			Code:       ErrorCodeResponseDecode,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode confluence response body",
			Err:        err,
			redactor:   c.redactor,
		}
	}
	return nil
}

type pageAPIData struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
}

type updatePageAPIRequest struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Version struct {
		Number  int    `json:"number"`
		Message string `json:"message"`
	} `json:"version"`
}
