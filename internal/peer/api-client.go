package peer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xenn00/conference-system/internal/dtos"
	"github.com/xenn00/conference-system/internal/dtos/conference_dto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIError is a non-2xx response from the conference API.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("conference api: %d %s (%s)", e.Status, e.Message, e.Field)
	}
	return fmt.Sprintf("conference api: %d %s", e.Status, e.Message)
}

// APIClient talks to /api/v1/conferences and implements MetadataClient.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

var _ MetadataClient = (*APIClient)(nil)

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *APIClient) CreateConference(ctx context.Context, req conference_dto.CreateConferenceRequest) (*conference_dto.ConferenceResponse, error) {
	var out conference_dto.ConferenceResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/conferences", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) GetConferenceByLink(ctx context.Context, link string) (*conference_dto.ConferenceResponse, error) {
	var out conference_dto.ConferenceResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/conferences/link/"+url.PathEscape(link), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) JoinConference(ctx context.Context, conferenceID string) (*conference_dto.ParticipantResponse, error) {
	var out conference_dto.ParticipantResponse
	if err := c.do(ctx, http.MethodPost, conferencePath(conferenceID, "/join"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) LeaveConference(ctx context.Context, conferenceID string) (*conference_dto.ParticipantResponse, error) {
	var out conference_dto.ParticipantResponse
	if err := c.do(ctx, http.MethodPost, conferencePath(conferenceID, "/leave"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) UpdateParticipant(ctx context.Context, conferenceID string, req conference_dto.UpdateParticipantRequest) (*conference_dto.ParticipantResponse, error) {
	var out conference_dto.ParticipantResponse
	if err := c.do(ctx, http.MethodPut, conferencePath(conferenceID, "/participant"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func conferencePath(id, suffix string) string {
	return "/api/v1/conferences/" + url.PathEscape(id) + suffix
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope dtos.Response[jsoniter.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "undecodable response: " + err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest || envelope.Failed() {
		apiErr := &APIError{Status: resp.StatusCode, Message: envelope.Message}
		if envelope.Failed() {
			apiErr.Message = envelope.Errors.Message
			apiErr.Field = envelope.Errors.Field
		}
		return apiErr
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
