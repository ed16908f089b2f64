package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

const (
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// OAuthProfile is the identity a provider vouches for.
type OAuthProfile struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	Avatar     string
}

// OAuthProvider wraps an oauth2 config and the provider's userinfo endpoint.
type OAuthProvider struct {
	Name        string
	Config      *oauth2.Config
	UserInfoURL string
	decode      func(*json.Decoder) (OAuthProfile, error)
}

// NewGoogleProvider returns nil when the client id is not configured.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	if clientID == "" {
		return nil
	}
	return &OAuthProvider{
		Name: ProviderGoogle,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo?alt=json",
		decode: func(dec *json.Decoder) (OAuthProfile, error) {
			var info struct {
				ID      string `json:"id"`
				Email   string `json:"email"`
				Name    string `json:"name"`
				Picture string `json:"picture"`
			}
			if err := dec.Decode(&info); err != nil {
				return OAuthProfile{}, err
			}
			return OAuthProfile{ProviderID: info.ID, Email: info.Email, Name: info.Name, Avatar: info.Picture}, nil
		},
	}
}

// NewFacebookProvider returns nil when the client id is not configured.
func NewFacebookProvider(clientID, clientSecret, redirectURL string) *OAuthProvider {
	if clientID == "" {
		return nil
	}
	return &OAuthProvider{
		Name: ProviderFacebook,
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)",
		decode: func(dec *json.Decoder) (OAuthProfile, error) {
			var info struct {
				ID      string `json:"id"`
				Email   string `json:"email"`
				Name    string `json:"name"`
				Picture struct {
					Data struct {
						URL string `json:"url"`
					} `json:"data"`
				} `json:"picture"`
			}
			if err := dec.Decode(&info); err != nil {
				return OAuthProfile{}, err
			}
			return OAuthProfile{ProviderID: info.ID, Email: info.Email, Name: info.Name, Avatar: info.Picture.Data.URL}, nil
		},
	}
}

// AuthCodeURL is where the browser is sent to start the flow.
func (p *OAuthProvider) AuthCodeURL(state string) string {
	return p.Config.AuthCodeURL(state)
}

// Exchange trades the callback code for a token and fetches the profile.
func (p *OAuthProvider) Exchange(ctx context.Context, code string) (OAuthProfile, error) {
	if strings.TrimSpace(code) == "" {
		return OAuthProfile{}, fmt.Errorf("%s: missing authorization code", p.Name)
	}
	token, err := p.Config.Exchange(ctx, code)
	if err != nil {
		return OAuthProfile{}, fmt.Errorf("%s token exchange: %w", p.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return OAuthProfile{}, err
	}
	resp, err := p.Config.Client(ctx, token).Do(req)
	if err != nil {
		return OAuthProfile{}, fmt.Errorf("%s userinfo: %w", p.Name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return OAuthProfile{}, fmt.Errorf("%s userinfo: unexpected status %d", p.Name, resp.StatusCode)
	}

	profile, err := p.decode(json.NewDecoder(resp.Body))
	if err != nil {
		return OAuthProfile{}, fmt.Errorf("%s userinfo: %w", p.Name, err)
	}
	if profile.ProviderID == "" {
		return OAuthProfile{}, fmt.Errorf("%s userinfo: missing account id", p.Name)
	}
	profile.Provider = p.Name
	return profile, nil
}

// Providers indexes the configured providers by name.
type Providers map[string]*OAuthProvider

// NewProviders keeps only the non-nil providers.
func NewProviders(list ...*OAuthProvider) Providers {
	out := Providers{}
	for _, p := range list {
		if p != nil {
			out[p.Name] = p
		}
	}
	return out
}

func (ps Providers) Get(name string) (*OAuthProvider, error) {
	p, ok := ps[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}
