package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const DatastoreScope = "https://www.googleapis.com/auth/datastore"

// ServiceAccount is a parsed service-account credential file.
type ServiceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`

	raw []byte
}

// LoadServiceAccount reads and validates the credential file at path.
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: credentials path is empty", ErrConfiguration)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials %s: %v", ErrConfiguration, path, err)
	}
	return ParseServiceAccount(raw)
}

func ParseServiceAccount(raw []byte) (*ServiceAccount, error) {
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("%w: parse credentials: %v", ErrConfiguration, err)
	}
	if sa.ProjectID == "" {
		return nil, fmt.Errorf("%w: credentials have no project_id", ErrConfiguration)
	}
	if sa.ClientEmail == "" {
		return nil, fmt.Errorf("%w: credentials have no client_email", ErrConfiguration)
	}
	sa.raw = raw
	return &sa, nil
}

// TokenProvider exchanges the service-account key for bearer tokens. Tokens are
// cached and refreshed shortly before they expire.
type TokenProvider struct {
	src   oauth2.TokenSource
	email string
}

var _ oauth2.TokenSource = (*TokenProvider)(nil)

// NewTokenProvider builds a provider for sa. ctx is used for the token exchange
// requests and must outlive the provider.
func NewTokenProvider(ctx context.Context, sa *ServiceAccount) (*TokenProvider, error) {
	if sa == nil {
		return nil, fmt.Errorf("%w: service account is nil", ErrConfiguration)
	}

	conf, err := google.JWTConfigFromJSON(sa.raw, DatastoreScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return &TokenProvider{
		src:   conf.TokenSource(ctx),
		email: sa.ClientEmail,
	}, nil
}

func (p *TokenProvider) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		log.Error().Err(err).Str("client_email", p.email).Msg("docstore: token exchange failed")

		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil &&
			rerr.Response.StatusCode < 500 && rerr.Response.StatusCode != 429 {
			// ключ отозван или неверный, повтор не поможет
			return nil, fmt.Errorf("%w: token exchange rejected: %v", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("%w: token exchange: %v", ErrUnavailable, err)
	}
	return tok, nil
}
