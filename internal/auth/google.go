package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	sharedauth "resuradar/internal/shared/auth"
	"resuradar/internal/shared/server/respond"
	"resuradar/internal/shared/telemetry"
	"resuradar/internal/users"
)

const (
	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo?alt=json"
	userInfoTimeout    = 8 * time.Second
)

var errNoProfileID = errors.New("google profile has no id")

// UserStore persists accounts created from Google identities.
type UserStore interface {
	UpsertFromAuth(ctx context.Context, user users.User) (users.User, error)
}

// TokenSigner issues app tokens.
type TokenSigner interface {
	SignJWT(claims sharedauth.Claims) (string, error)
}

// GoogleConfig holds the OAuth client settings.
type GoogleConfig struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	UIRedirectURL string
	// UserInfoURL overrides the Google userinfo endpoint.
	UserInfoURL string
}

// GoogleService handles Google sign-in: direct access-token login and the
// authorization-code redirect flow.
type GoogleService struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	uiRedirect  string
	stateTTL    time.Duration
	stateStore  *stateStore
	users       UserStore
	signer      TokenSigner
}

// NewGoogleService builds a GoogleService.
func NewGoogleService(cfg GoogleConfig, userStore UserStore, signer TokenSigner) *GoogleService {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	return &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: userInfoURL,
		uiRedirect:  cfg.UIRedirectURL,
		stateTTL:    5 * time.Minute,
		stateStore:  newStateStore(),
		users:       userStore,
		signer:      signer,
	}
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/google", s.tokenLogin)
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

type tokenLoginRequest struct {
	Token string `json:"token"`
}

func (s *GoogleService) tokenLogin(c *gin.Context) {
	var req tokenLoginRequest
	_ = c.ShouldBindJSON(&req)
	accessToken := strings.TrimSpace(req.Token)
	if accessToken == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "Google access token is required", nil)
		return
	}

	ctx := c.Request.Context()
	info, err := s.fetchUserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		telemetry.Warn("auth.google_failed", map[string]any{
			"request_id": c.GetString("requestId"),
			"error":      err.Error(),
		})
		respond.Error(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired Google token", nil)
		return
	}

	user, token, err := s.login(ctx, info)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to sign in", nil)
		return
	}

	respond.OK(c, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":      user.ID,
			"email":   user.Email,
			"name":    user.Name,
			"picture": user.Picture,
		},
	})
}

func (s *GoogleService) start(c *gin.Context) {
	if s.oauthConfig.ClientID == "" || s.oauthConfig.ClientSecret == "" || s.oauthConfig.RedirectURL == "" {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state, time.Now().Add(s.stateTTL))

	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline))
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	if !s.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	info, err := s.fetchUserInfo(ctx, s.oauthConfig.TokenSource(ctx, token))
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}

	_, appToken, err := s.login(ctx, info)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	redirectURL, err := appendToken(s.uiRedirect, appToken)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}

	c.Redirect(http.StatusFound, redirectURL)
}

// login upserts the account for a verified profile and issues an app token.
func (s *GoogleService) login(ctx context.Context, info googleUserInfo) (users.User, string, error) {
	user, err := s.users.UpsertFromAuth(ctx, users.User{
		GoogleID: info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	})
	if err != nil {
		return users.User{}, "", fmt.Errorf("upsert user: %w", err)
	}
	token, err := s.signer.SignJWT(sharedauth.Claims{
		Email:            user.Email,
		Name:             user.Name,
		Picture:          user.Picture,
		RegisteredClaims: jwt.RegisteredClaims{Subject: user.ID},
	})
	if err != nil {
		return users.User{}, "", fmt.Errorf("sign token: %w", err)
	}
	return user, token, nil
}

type googleUserInfo struct {
	Sub     string `json:"sub"`
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, src oauth2.TokenSource) (googleUserInfo, error) {
	client := oauth2.NewClient(ctx, src)
	client.Timeout = userInfoTimeout

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return googleUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}

	// v1 responses carry "id"; OpenID responses carry "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	if info.Sub == "" {
		return googleUserInfo{}, errNoProfileID
	}
	return info, nil
}

type stateStore struct {
	items map[string]time.Time
	mu    sync.Mutex
}

func newStateStore() *stateStore {
	return &stateStore{items: make(map[string]time.Time)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.items {
		if now.After(v) {
			delete(s.items, k)
		}
	}
	s.items[state] = exp
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	exp, ok := s.items[state]
	if ok {
		delete(s.items, state)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	return !time.Now().After(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
