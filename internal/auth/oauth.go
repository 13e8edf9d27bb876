package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"

	googleUserInfoURL   = "https://openidconnect.googleapis.com/v1/userinfo"
	facebookUserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)"
)

var ErrUnknownProvider = errors.New("auth: unknown social login provider")

// SocialProfile is the identity a provider vouches for after a successful code exchange.
type SocialProfile struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
}

type ProviderConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

type Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

func NewProvider(cfg ProviderConfig) *Provider {
	return &Provider{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		userInfoURL: cfg.UserInfoURL,
	}
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *Provider {
	return NewProvider(ProviderConfig{
		Name:         ProviderGoogle,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoints.Google,
		UserInfoURL:  googleUserInfoURL,
	})
}

func NewFacebookProvider(clientID, clientSecret, redirectURL string) *Provider {
	return NewProvider(ProviderConfig{
		Name:         ProviderFacebook,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"email", "public_profile"},
		Endpoint:     endpoints.Facebook,
		UserInfoURL:  facebookUserInfoURL,
	})
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

func (p *Provider) Exchange(ctx context.Context, code string) (SocialProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return SocialProfile{}, fmt.Errorf("auth: exchanging %s code: %w", p.name, err)
	}

	resp, err := p.config.Client(ctx, token).Get(p.userInfoURL)
	if err != nil {
		return SocialProfile{}, fmt.Errorf("auth: calling %s user info: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SocialProfile{}, fmt.Errorf("auth: %s user info returned status %d", p.name, resp.StatusCode)
	}

	var info struct {
		Sub     string          `json:"sub"`
		ID      string          `json:"id"`
		Email   string          `json:"email"`
		Name    string          `json:"name"`
		Picture json.RawMessage `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SocialProfile{}, fmt.Errorf("auth: decoding %s user info: %w", p.name, err)
	}

	profile := SocialProfile{
		Provider: p.name,
		Subject:  info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  pictureURL(info.Picture),
	}
	if profile.Subject == "" {
		profile.Subject = info.ID
	}
	if profile.Subject == "" || profile.Email == "" {
		return SocialProfile{}, fmt.Errorf("auth: %s returned a profile without id or email", p.name)
	}
	return profile, nil
}

// pictureURL accepts Google's plain string and Facebook's {"data":{"url":...}} shape.
func pictureURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var fb struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &fb); err == nil {
		return fb.Data.URL
	}
	return ""
}

// Providers indexes the configured social login providers by name.
type Providers map[string]*Provider

func (ps Providers) Get(name string) (*Provider, error) {
	p, ok := ps[name]
	if !ok || p == nil {
		return nil, ErrUnknownProvider
	}
	return p, nil
}
