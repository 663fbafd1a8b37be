package gcal

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// OAuthScopes contains only Calendar scopes
var OAuthScopes = []string{
	calendar.CalendarScope,
}

// LoadOAuthConfig loads the OAuth2 client configuration from inline JSON or a credentials file
func LoadOAuthConfig(credentialsFile, credentialsJSON string) (*oauth2.Config, error) {
	// Inline JSON first (useful for container deployments)
	if credentialsJSON != "" {
		config, err := google.ConfigFromJSON([]byte(credentialsJSON), OAuthScopes...)
		if err == nil {
			return config, nil
		}
	}

	// Try specified file
	if credentialsFile != "" {
		if config, err := loadConfigFromFile(credentialsFile); err == nil {
			return config, nil
		}
	}

	// Try default credentials.json in current directory
	if config, err := loadConfigFromFile("./credentials.json"); err == nil {
		return config, nil
	}

	return nil, fmt.Errorf("no credentials file found - please provide credentials.json or set GOOGLE_CREDENTIALS_JSON env var")
}

// loadConfigFromFile attempts to load OAuth config from a file
func loadConfigFromFile(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return google.ConfigFromJSON(data, OAuthScopes...)
}
