package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	config "github.com/tutorhive/tutorhive/configs"
	"github.com/tutorhive/tutorhive/services"
)

// Client talks to the payment platform's refund API. The engine only ever
// asks it to accept a refund request; settlement happens on the platform's
// side and is reported through its own channels.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewClient() *Client {
	return &Client{
		baseURL: config.Config("PAYMENTS_API_BASE_URL"),
		apiKey:  config.Config("PAYMENTS_API_KEY"),
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

type refundRequestPayload struct {
	SessionID string  `json:"session_id"`
	Amount    float64 `json:"amount"`
}

type refundResponse struct {
	Reference string `json:"reference"`
}

// RequestRefund submits a refund request and returns the platform's
// acknowledgement reference. A non-2xx answer is a synchronous rejection.
func (c *Client) RequestRefund(sessionID uuid.UUID, amount float64) (*services.RefundHandle, error) {
	body, _ := json.Marshal(refundRequestPayload{SessionID: sessionID.String(), Amount: amount})

	req, err := http.NewRequest("POST", fmt.Sprintf("%s/v1/refunds", c.baseURL), bytes.NewBuffer(body))
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

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("refund request rejected: %s", string(respBody))
	}

	var out refundResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &services.RefundHandle{Reference: out.Reference}, nil
}
