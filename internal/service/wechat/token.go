package wechat

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/kapu/greeting-push-go/internal/apiclient"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/util"
)

// ErrTokenUnavailable is returned when the platform does not hand out an access token.
var ErrTokenUnavailable = stderrors.New("wechat access token unavailable")

// TokenProvider exchanges the official account's app credentials for an
// access token. It keeps nothing between calls; wrap it with
// oauth2.ReuseTokenSource to reuse a token within a run.
type TokenProvider struct {
	api       *apiclient.Client
	baseURL   string
	appID     string
	appSecret string
	logger    *zap.Logger
}

func NewTokenProvider(api *apiclient.Client, baseURL, appID, appSecret string, logger *zap.Logger) *TokenProvider {
	if baseURL == "" {
		baseURL = constants.APIConfig.WeChatBaseURL
	}
	return &TokenProvider{
		api:       api,
		baseURL:   strings.TrimRight(baseURL, "/"),
		appID:     appID,
		appSecret: appSecret,
		logger:    logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

// FetchAccessToken returns a fresh token, or None when the request fails or
// the response has no token.
func (p *TokenProvider) FetchAccessToken(ctx context.Context) domain.Optional[string] {
	token, err := p.fetch(ctx)
	if err != nil {
		return domain.None[string]()
	}
	return domain.Some(token.AccessToken)
}

// TokenSource binds the provider to ctx so it satisfies oauth2.TokenSource.
func (p *TokenProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &contextTokenSource{ctx: ctx, provider: p}
}

type contextTokenSource struct {
	ctx      context.Context
	provider *TokenProvider
}

func (s *contextTokenSource) Token() (*oauth2.Token, error) {
	return s.provider.fetch(s.ctx)
}

func (p *TokenProvider) fetch(ctx context.Context) (*oauth2.Token, error) {
	params := url.Values{}
	params.Set("grant_type", "client_credential")
	params.Set("appid", p.appID)
	params.Set("secret", p.appSecret)

	var resp tokenResponse
	if err := p.api.GetJSON(ctx, p.baseURL+"/cgi-bin/token", params, &resp); err != nil {
		p.logger.Error("Access token request failed",
			zap.String("app_id", util.MaskSecret(p.appID)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}

	if resp.AccessToken == "" {
		p.logger.Error("Failed to obtain access token, check app_id and app_secret",
			zap.String("app_id", util.MaskSecret(p.appID)),
			zap.Int("errcode", resp.ErrCode),
			zap.String("errmsg", resp.ErrMsg),
		)
		return nil, fmt.Errorf("%w: errcode=%d errmsg=%s", ErrTokenUnavailable, resp.ErrCode, resp.ErrMsg)
	}

	token := &oauth2.Token{
		AccessToken: resp.AccessToken,
		TokenType:   "Bearer",
	}
	if resp.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	p.logger.Debug("Access token obtained", zap.Int("expires_in", resp.ExpiresIn))
	return token, nil
}
