// Package appid implements the relying-party side of the IBM Cloud App ID
// protocol: the authorization-code exchange, token introspection, and role
// lookup through the management API with its reactively refreshed IAM token.
package appid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// Config carries the provider settings, fixed for the process lifetime.
type Config struct {
	ClientID         string
	ClientSecret     string
	RedirectURI      string
	OAuthServerURL   string // e.g. https://eu-gb.appid.cloud.ibm.com/oauth/v4/<tenant>
	ManagementURL    string
	IAMTokenEndpoint string
	IAMAPIKey        string
}

// Client talks to a single App ID service instance.
type Client struct {
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
	mgmtToken  *ManagementTokenSource
}

// NewClient builds a Client. httpClient should carry a bounded timeout; nil
// falls back to http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"openid"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.OAuthServerURL + "/authorization",
				TokenURL:  cfg.OAuthServerURL + "/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
		mgmtToken:  NewManagementTokenSource(cfg.IAMTokenEndpoint, cfg.IAMAPIKey, httpClient),
	}
}

// AuthCodeURL returns the provider's authorization endpoint URL the browser
// is redirected to at the start of the authorization-code flow.
func (c *Client) AuthCodeURL() string {
	return c.oauth.AuthCodeURL("")
}

// Tokens is the pair returned by a successful code exchange.
type Tokens struct {
	AccessToken string
	IDToken     string
}

// Exchange trades an authorization code for tokens at the provider's token
// endpoint, authenticating with basic client credentials. Failures come back
// as the human-readable strings the session error flow expects.
func (c *Client) Exchange(ctx context.Context, code string) (Tokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	// App ID wants the client_id in the form body as well as in the
	// Authorization header.
	tok, err := c.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("client_id", c.cfg.ClientID))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorDescription != "" {
			return Tokens{}, fmt.Errorf("could not retrieve user tokens, %s", retrieveErr.ErrorDescription)
		}
		return Tokens{}, fmt.Errorf("could not retrieve user tokens, %v", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" || tok.AccessToken == "" {
		return Tokens{}, errors.New("did not receive 'id_token' and/or 'access_token'")
	}
	return Tokens{AccessToken: tok.AccessToken, IDToken: idToken}, nil
}

// Introspection is the provider's verdict on a bearer token.
type Introspection struct {
	Active           bool
	ErrorDescription string
}

// Introspect asks the provider whether the token is still active.
func (c *Client) Introspect(ctx context.Context, token string) (Introspection, error) {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.OAuthServerURL+"/introspect", strings.NewReader(form.Encode()))
	if err != nil {
		return Introspection{}, fmt.Errorf("building introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Introspection{}, fmt.Errorf("introspecting token: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Active           bool   `json:"active"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Introspection{}, fmt.Errorf("decoding introspection response: %w", err)
	}
	return Introspection{Active: body.Active, ErrorDescription: body.ErrorDescription}, nil
}
