package appid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// The IAM grant used to trade the service API key for a management token.
const apiKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"

// ManagementTokenSource caches the bearer token for the App ID management
// API. The token carries no expiry tracking: staleness is only ever observed
// as a 401 from a management call, at which point Refresh fetches a
// replacement. Racing refreshes are harmless, the last write wins.
type ManagementTokenSource struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

func NewManagementTokenSource(endpoint, apiKey string, httpClient *http.Client) *ManagementTokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ManagementTokenSource{endpoint: endpoint, apiKey: apiKey, httpClient: httpClient}
}

// Token returns the cached management token, empty until the first Refresh.
func (m *ManagementTokenSource) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Refresh exchanges the configured API key for a fresh management token and
// overwrites the cache.
func (m *ManagementTokenSource) Refresh(ctx context.Context) error {
	form := url.Values{
		"grant_type": {apiKeyGrantType},
		"apikey":     {m.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("could not retrieve App ID management access token, %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not retrieve App ID management access token, %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		AccessToken string `json:"access_token"`
		ErrorCode   string `json:"errorCode"`
	}
	// Decode failures fall through to the missing-token error below.
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if body.AccessToken == "" {
		if body.ErrorCode != "" {
			return fmt.Errorf("could not retrieve App ID management access token, %s", body.ErrorCode)
		}
		return errors.New("could not retrieve App ID management access token")
	}

	m.mu.Lock()
	m.token = body.AccessToken
	m.mu.Unlock()
	return nil
}
