// Package auth exchanges OAuth2 authorization codes and refresh tokens with the
// CRM identity endpoint. It keeps no token state: every call is one exchange.
package auth

import (
	"context"
	"net/http"

	"github.com/ajitpratap0/sfbridge/pkg/clients"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/logger"
	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/ajitpratap0/sfbridge/pkg/observability"
	stringpool "github.com/ajitpratap0/sfbridge/pkg/strings"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	authorizePath = "/services/oauth2/authorize"
	tokenPath     = "/services/oauth2/token"
)

// Config identifies the connected app
type Config struct {
	ClientID     string
	ClientSecret string
	LoginURL     string
	Scopes       []string
}

// TokenResult is the outcome of a successful exchange, in the field names the
// CRM uses.
type TokenResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	InstanceURL  string `json:"instance_url"`
	ID           string `json:"id,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	IssuedAt     string `json:"issued_at,omitempty"`
	Signature    string `json:"signature,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// TokenBroker performs the authorization-code and refresh-token grants
type TokenBroker struct {
	config     Config
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTokenBroker creates a broker for the connected app described by config.
// httpClient is used for token requests; nil selects http.DefaultClient.
func NewTokenBroker(config Config, httpClient *http.Client, log *zap.Logger) *TokenBroker {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	base := stringpool.NewURLBuilder(config.LoginURL)
	loginURL := base.String()
	base.Close()
	config.LoginURL = loginURL

	return &TokenBroker{
		config: config,
		oauth: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       config.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   loginURL + authorizePath,
				TokenURL:  loginURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
		logger:     log.With(zap.String("component", "token_broker")),
	}
}

// BuildAuthorizationURL returns the consent URL the caller should redirect the
// user to. It performs no network call and is identical for identical input.
func (b *TokenBroker) BuildAuthorizationURL(redirectURI string) (string, error) {
	if redirectURI == "" {
		return "", errors.New(errors.ErrorTypeValidation, "redirect_uri is required")
	}

	ub := stringpool.NewURLBuilder(b.oauth.Endpoint.AuthURL)
	defer ub.Close()

	ub.AddParam("response_type", "code")
	if len(b.config.Scopes) > 0 {
		ub.AddParam("scope", stringpool.JoinPooled(b.config.Scopes, " "))
	}
	ub.AddParam("client_id", b.config.ClientID)
	ub.AddParam("redirect_uri", redirectURI)

	return ub.String(), nil
}

// ExchangeCode trades an authorization code for tokens
func (b *TokenBroker) ExchangeCode(ctx context.Context, redirectURI, code string) (*TokenResult, error) {
	if redirectURI == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "redirect_uri is required")
	}
	if code == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "code is required")
	}

	ctx, span := observability.StartSpan(ctx, "oauth.exchange_code")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	cfg := *b.oauth
	cfg.RedirectURL = redirectURI

	var token *oauth2.Token
	token, err = cfg.Exchange(b.requestContext(ctx, "exchange_code"), code)
	if err != nil {
		err = classifyTokenError(err, "authorization code exchange failed")
		b.logger.With(logger.ContextFields(ctx)...).Warn("authorization code exchange failed",
			zap.String("redirect_uri", redirectURI),
			zap.Error(err))
		return nil, err
	}

	result := toResult(token)
	b.logger.Info("authorization code exchanged",
		zap.String("instance_url", result.InstanceURL),
		zap.String("access_token", logger.Redact(result.AccessToken)))
	return result, nil
}

// RefreshToken obtains a new access token from a refresh token. The refresh
// token is echoed back when the endpoint does not rotate it.
func (b *TokenBroker) RefreshToken(ctx context.Context, refreshToken string) (*TokenResult, error) {
	if refreshToken == "" {
		return nil, errors.New(errors.ErrorTypeValidation, "refresh_token is required")
	}

	ctx, span := observability.StartSpan(ctx, "oauth.refresh_token")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	seed := &oauth2.Token{RefreshToken: refreshToken}

	var token *oauth2.Token
	token, err = b.oauth.TokenSource(b.requestContext(ctx, "refresh_token"), seed).Token()
	if err != nil {
		err = classifyTokenError(err, "refresh token exchange failed")
		b.logger.With(logger.ContextFields(ctx)...).Warn("refresh token exchange failed", zap.Error(err))
		return nil, err
	}

	result := toResult(token)
	if result.RefreshToken == "" {
		result.RefreshToken = refreshToken
	}
	span.SetAttributes(attribute.String("instance_url", result.InstanceURL))
	return result, nil
}

func (b *TokenBroker) requestContext(ctx context.Context, operation string) context.Context {
	ctx = clients.WithOperation(ctx, metrics.TargetOAuth, operation)
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// classifyTokenError separates rejections reported by the identity endpoint
// from transport failures.
func classifyTokenError(err error, message string) *errors.Error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if rerr.ErrorCode != "" {
			e := errors.New(errors.ErrorTypeAuthentication, message+": "+describeRejection(rerr)).
				WithDetail("error", rerr.ErrorCode)
			if rerr.ErrorDescription != "" {
				e.WithDetail("error_description", rerr.ErrorDescription)
			}
			if rerr.Response != nil {
				e.WithDetail("status", rerr.Response.StatusCode)
			}
			return e
		}

		e := errors.Wrap(err, errors.ErrorTypeConnection, message)
		if rerr.Response != nil {
			e.WithDetail("status", rerr.Response.StatusCode)
		}
		return e
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, message)
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, message)
}

func describeRejection(rerr *oauth2.RetrieveError) string {
	if rerr.ErrorDescription != "" {
		return stringpool.Concat(rerr.ErrorCode, ": ", rerr.ErrorDescription)
	}
	return rerr.ErrorCode
}

func toResult(token *oauth2.Token) *TokenResult {
	return &TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		InstanceURL:  extraString(token, "instance_url"),
		ID:           extraString(token, "id"),
		IssuedAt:     extraString(token, "issued_at"),
		Signature:    extraString(token, "signature"),
		Scope:        extraString(token, "scope"),
	}
}

func extraString(token *oauth2.Token, key string) string {
	switch v := token.Extra(key).(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return stringpool.ValueToString(v)
	}
}
