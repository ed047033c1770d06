package meetings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	config "github.com/tutorhive/tutorhive/configs"
	"github.com/tutorhive/tutorhive/services"
)

// Client provisions meeting rooms with the video provider. Sessions persist
// only join URLs; the host URL for a room is derived on demand so host
// credentials never sit in the database.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: config.Config("MEETINGS_API_BASE_URL"),
		apiKey:  config.Config("MEETINGS_API_KEY"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

type createMeetingPayload struct {
	SessionID string `json:"session_id"`
}

type meetingResponse struct {
	HostURL string `json:"host_url"`
	JoinURL string `json:"join_url"`
}

func (c *Client) CreateMeeting(sessionID uuid.UUID) (*services.Meeting, error) {
	body, _ := json.Marshal(createMeetingPayload{SessionID: sessionID.String()})

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/meetings", c.baseURL), bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create meeting: %s", string(respBody))
	}

	var out meetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &services.Meeting{HostURL: out.HostURL, JoinURL: out.JoinURL}, nil
}

func (c *Client) GetHostURL(joinURL string) (string, error) {
	req, err := http.NewRequest("GET",
		fmt.Sprintf("%s/v1/meetings/host?join_url=%s", c.baseURL, url.QueryEscape(joinURL)), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to resolve host url: %s", string(respBody))
	}

	var out meetingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.HostURL, nil
}
