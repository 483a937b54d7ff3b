package master

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ariefcatur/go-diner-live.git/internal/diner"
)

// HTTPGenerator memanggil service generasi balasan eksternal.
// Kualitas isi balasan bukan urusan core; yang penting timeout
// dihormati supaya THINKING tidak pernah macet.
type HTTPGenerator struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPGenerator(baseURL string) *HTTPGenerator {
	return &HTTPGenerator{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	RoomID string           `json:"room_id"`
	Recent []diner.ChatNote `json:"recent"`
}

type generateResponse struct {
	Respond bool   `json:"respond"`
	Reply   string `json:"reply"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, roomID string, recent []diner.ChatNote) (string, bool, error) {
	body, err := json.Marshal(generateRequest{RoomID: roomID, Recent: recent})
	if err != nil {
		return "", false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/reply", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("reply service: status %d", resp.StatusCode)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, err
	}
	return out.Reply, out.Respond, nil
}
