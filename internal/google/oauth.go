package google

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Built-in installed-app OAuth client. Overridable via environment for
// users who prefer their own Google Cloud project.
const (
	defaultClientID     = "743518833190-8o1bhpm2jgfjtsvsbealuqdbqknueoua.apps.googleusercontent.com"
	defaultClientSecret = "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"
)

var accountNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAccountName rejects account names that cannot safely appear
// in a token file name.
func validateAccountName(account string) error {
	if account == "" {
		return fmt.Errorf("account name must not be empty")
	}
	if !accountNameRe.MatchString(account) {
		return fmt.Errorf("invalid account name %q: only letters, digits, hyphen and underscore are allowed", account)
	}
	return nil
}

func tokenCacheDir() string {
	return filepath.Join(userCacheDir(), "mailfold")
}

// getTokenFilePath returns the token file location for an account.
func getTokenFilePath(account string) string {
	return filepath.Join(tokenCacheDir(), "google-"+account+".token")
}

// HasTokenForAccount checks if a cached OAuth token exists for the
// specified account.
func HasTokenForAccount(account string) bool {
	if err := validateAccountName(account); err != nil {
		return false
	}
	_, err := os.ReadFile(getTokenFilePath(account))
	return err == nil
}

// HasToken checks if a cached OAuth token exists for the default account.
func HasToken() bool {
	return HasTokenForAccount("default")
}

// MigrateDefaultToken moves a pre-multi-account token file
// (google.token) to the per-account naming scheme
// (google-default.token). Safe to call when there is nothing to
// migrate.
func MigrateDefaultToken() error {
	oldFile := filepath.Join(tokenCacheDir(), "google.token")
	newFile := getTokenFilePath("default")

	data, err := os.ReadFile(oldFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read legacy token file: %w", err)
	}

	if _, err := os.Stat(newFile); err == nil {
		// Both exist; the per-account file wins.
		return os.Remove(oldFile)
	}

	if err := os.WriteFile(newFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write migrated token file: %w", err)
	}
	return os.Remove(oldFile)
}

// GetAuthURL returns the OAuth URL for user authorization. The URL is
// account-independent; the account chosen at SaveTokenForAccount time
// decides where the exchanged token is cached.
func GetAuthURL() string {
	conf := getOAuthConfig()
	return conf.AuthCodeURL("state")
}

// SaveTokenForAccount exchanges an authorization code for tokens and
// caches them for the specified account.
func SaveTokenForAccount(ctx context.Context, account, authCode string) error {
	if err := validateAccountName(account); err != nil {
		return err
	}

	conf := getOAuthConfig()
	t, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	if err := os.MkdirAll(tokenCacheDir(), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tokenData := t.AccessToken + " " + t.RefreshToken
	if err := os.WriteFile(getTokenFilePath(account), []byte(tokenData), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// SaveToken exchanges an authorization code for tokens and saves them
// for the default account.
func SaveToken(ctx context.Context, authCode string) error {
	return SaveTokenForAccount(ctx, "default", authCode)
}

// GetAuthenticationErrorMessage returns a user-facing message
// explaining how to authenticate the given account.
func GetAuthenticationErrorMessage(account string) string {
	return fmt.Sprintf("no valid Google OAuth token found for account %q. "+
		"Run 'mailfold auth --account %s' to authorize access", account, account)
}

// getOAuthConfig returns the OAuth2 configuration. The gmail.modify
// scope covers label management and message label changes without
// granting send or permanent-delete access.
func getOAuthConfig() *oauth2.Config {
	const OOB = "urn:ietf:wg:oauth:2.0:oob"

	clientID := os.Getenv("MAILFOLD_GOOGLE_CLIENT_ID")
	if clientID == "" {
		clientID = defaultClientID
	}
	clientSecret := os.Getenv("MAILFOLD_GOOGLE_CLIENT_SECRET")
	if clientSecret == "" {
		clientSecret = defaultClientSecret
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  OOB,
		Scopes:       DefaultOAuthScopes,
	}
}

// GetTokenSourceForAccount returns an OAuth2 token source backed by the
// cached token for the specified account.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}

	conf := getOAuthConfig()

	slurp, err := os.ReadFile(getTokenFilePath(account))
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s", account)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format for account %s", account)
	}

	// Expiry in the past forces an immediate refresh on first use.
	ts := conf.TokenSource(ctx, &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	})

	if _, err := ts.Token(); err != nil {
		slog.Debug("cached token invalid", "account", account, "error", err)
		return nil, fmt.Errorf("cached token for account %s is invalid: %w", account, err)
	}

	return ts, nil
}

// GetTokenSource returns an OAuth2 token source for the default account.
func GetTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	return GetTokenSourceForAccount(ctx, "default")
}

// GetHTTPClientForAccount returns an HTTP client configured with OAuth2
// authentication for the specified account. The client is configured to
// use HTTP/1.1 to avoid HTTP/2 protocol errors against the Google APIs.
func GetHTTPClientForAccount(ctx context.Context, account string) (*http.Client, error) {
	ts, err := GetTokenSourceForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client, nil
}

// GetHTTPClient returns an OAuth2 HTTP client for the default account.
func GetHTTPClient(ctx context.Context) (*http.Client, error) {
	return GetHTTPClientForAccount(ctx, "default")
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
