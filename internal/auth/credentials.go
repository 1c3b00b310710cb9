// Package auth supplies access credentials for the catalog API. Tokens are
// loaded from disk, refreshed by golang.org/x/oauth2 when they expire and
// written back so later runs start with a fresh token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const (
	Scope           = "https://www.googleapis.com/auth/photoslibrary.readonly"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
	defaultAuthURL  = "https://accounts.google.com/o/oauth2/auth"
)

var ErrNoToken = errors.New("no stored token")

type Credential struct {
	AccessToken string
	TokenType   string
	Expiry      time.Time
}

// Provider hands out a credential that is valid for at least the duration of
// one request.
type Provider struct {
	ts oauth2.TokenSource
}

func (p *Provider) Credential(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	tok, err := p.ts.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("obtain access token: %w", err)
	}
	typ := tok.Type()
	return Credential{AccessToken: tok.AccessToken, TokenType: typ, Expiry: tok.Expiry}, nil
}

func NewStatic(accessToken string) *Provider {
	return &Provider{ts: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})}
}

// NewFromFiles builds a refreshing provider from OAuth client secrets and a
// previously stored token. Obtaining the first token interactively is not
// handled here.
func NewFromFiles(ctx context.Context, credentialsFile, tokenFile string) (*Provider, error) {
	conf, err := LoadClientConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found, authorize once and store the token there", ErrNoToken, tokenFile)
		}
		return nil, err
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("%w: token in %s is expired and has no refresh token", ErrNoToken, tokenFile)
	}

	base := conf.TokenSource(ctx, tok)
	return &Provider{ts: oauth2.ReuseTokenSource(tok, &persistingSource{
		base: base,
		path: tokenFile,
		last: tok.AccessToken,
	})}, nil
}

// persistingSource saves every newly minted token to disk.
type persistingSource struct {
	mu   sync.Mutex
	base oauth2.TokenSource
	path string
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			slog.Warn("Failed to persist refreshed token", "path", s.path, "error", err)
		} else {
			slog.Info("Token refreshed", "path", s.path, "expiry", tok.Expiry)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}

type clientSecrets struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	AuthURI      string   `json:"auth_uri"`
	TokenURI     string   `json:"token_uri"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadClientConfig reads a Google client secrets file ("installed" or "web").
func LoadClientConfig(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	var file struct {
		Installed *clientSecrets `json:"installed"`
		Web       *clientSecrets `json:"web"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse client secrets %s: %w", path, err)
	}
	cs := file.Installed
	if cs == nil {
		cs = file.Web
	}
	if cs == nil || cs.ClientID == "" {
		return nil, fmt.Errorf("client secrets %s: missing installed or web client", path)
	}

	conf := &oauth2.Config{
		ClientID:     cs.ClientID,
		ClientSecret: cs.ClientSecret,
		Scopes:       []string{Scope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  defaultAuthURL,
			TokenURL: defaultTokenURL,
		},
	}
	if cs.AuthURI != "" {
		conf.Endpoint.AuthURL = cs.AuthURI
	}
	if cs.TokenURI != "" {
		conf.Endpoint.TokenURL = cs.TokenURI
	}
	if len(cs.RedirectURIs) > 0 {
		conf.RedirectURL = cs.RedirectURIs[0]
	}
	return conf, nil
}

// storedToken accepts both the oauth2.Token layout and the layout written by
// Google's Python client ("token", "expiry").
type storedToken struct {
	AccessToken  string    `json:"access_token,omitempty"`
	Token        string    `json:"token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", path, err)
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	return tok, nil
}

func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
