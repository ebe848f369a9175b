package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables carrying the App ID service instance credentials.
// All six are required; the process refuses to start without them.
const (
	clientIDVar       = "APPID_CLIENT_ID"
	clientSecretVar   = "APPID_CLIENT_SECRET"
	redirectURIVar    = "APPID_REDIRECT_URI"
	oauthServerURLVar = "APPID_OAUTH_SERVER_URL"
	sessionSecretVar  = "SESSION_SECRET_KEY"
	iamAPIKeyVar      = "IBM_CLOUD_APIKEY"
)

const defaultIAMTokenEndpoint = "https://iam.cloud.ibm.com/identity/token"

type AppIDConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetOAuthServerURL() string
	GetManagementURL() string
	GetSessionSecret() string
	GetIAMTokenEndpoint() string
	GetIAMAPIKey() string
}

type AppID struct{}

var _ AppIDConfig = AppID{}

func (AppID) GetClientID() string {
	return os.Getenv(clientIDVar)
}

func (AppID) GetClientSecret() string {
	return os.Getenv(clientSecretVar)
}

func (AppID) GetRedirectURI() string {
	return os.Getenv(redirectURIVar)
}

func (AppID) GetOAuthServerURL() string {
	return strings.TrimSuffix(os.Getenv(oauthServerURLVar), "/")
}

// GetManagementURL derives the management API base from the OAuth server URL.
// App ID exposes both APIs on the same host, distinguished only by the
// "oauth" / "management" path segment.
func (a AppID) GetManagementURL() string {
	return strings.Replace(a.GetOAuthServerURL(), "oauth", "management", 1)
}

func (AppID) GetSessionSecret() string {
	return os.Getenv(sessionSecretVar)
}

// GetIAMTokenEndpoint is overridable so tests can point the management-token
// refresh at a local server.
func (AppID) GetIAMTokenEndpoint() string {
	return GetEnv("IAM_TOKEN_ENDPOINT", defaultIAMTokenEndpoint)
}

func (AppID) GetIAMAPIKey() string {
	return os.Getenv(iamAPIKeyVar)
}

// Validate reports the first required App ID environment variable that is
// missing.
func (AppID) Validate() error {
	required := []string{
		clientIDVar,
		clientSecretVar,
		redirectURIVar,
		oauthServerURLVar,
		sessionSecretVar,
		iamAPIKeyVar,
	}
	for _, envVar := range required {
		if os.Getenv(envVar) == "" {
			return fmt.Errorf("[config Validate] required environment variable %s is not set", envVar)
		}
	}
	return nil
}
