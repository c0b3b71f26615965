package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// SupabaseConfig locates the identity service.
type SupabaseConfig struct {
	// URL is the project URL, e.g. "https://abc.supabase.co".
	URL string

	// AnonKey is the project's public API key, sent as the apikey header.
	AnonKey string

	// Timeout bounds a single validation call.
	Timeout time.Duration
}

// SupabaseValidator validates bearer tokens against the Supabase auth API.
type SupabaseValidator struct {
	config     SupabaseConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewSupabaseValidator creates a validator. A zero Timeout means 10 seconds.
func NewSupabaseValidator(config SupabaseConfig, logger *zap.Logger) *SupabaseValidator {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &SupabaseValidator{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Validate implements Validator.
func (v *SupabaseValidator) Validate(ctx context.Context, header string) (*Principal, error) {
	token, err := ParseBearer(header)
	if err != nil {
		return nil, err
	}

	user, err := v.fetchUser(ctx, token)
	if err != nil {
		v.logger.Debug("credential rejected", zap.Error(err))
		return nil, llm.Unauthenticated(err)
	}

	return &Principal{ID: user.ID, Email: user.Email}, nil
}

func (v *SupabaseValidator) fetchUser(ctx context.Context, token string) (*supabaseUser, error) {
	url := strings.TrimRight(v.config.URL, "/") + "/auth/v1/user"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.config.AnonKey)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("identity service returned %d: %s", resp.StatusCode, string(body))
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return nil, errors.New("identity service returned a user without an id")
	}

	return &user, nil
}
