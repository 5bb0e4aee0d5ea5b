package wechat

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/kapu/greeting-push-go/internal/apiclient"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/service/dispatch"
	"github.com/kapu/greeting-push-go/pkg/errors"
)

const ChannelName = "wechat_template"

// TemplateChannel sends the structured fields as an official-account
// template message.
type TemplateChannel struct {
	api        *apiclient.Client
	tokens     oauth2.TokenSource
	baseURL    string
	templateID string
	targetURL  string
	logger     *zap.Logger
}

type TemplateConfig struct {
	BaseURL    string
	TemplateID string
	TargetURL  string
}

func NewTemplateChannel(api *apiclient.Client, tokens oauth2.TokenSource, cfg TemplateConfig, logger *zap.Logger) *TemplateChannel {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = constants.APIConfig.WeChatBaseURL
	}
	targetURL := cfg.TargetURL
	if targetURL == "" {
		targetURL = constants.MessageDefaults.TemplateTargetURL
	}
	return &TemplateChannel{
		api:        api,
		tokens:     tokens,
		baseURL:    strings.TrimRight(baseURL, "/"),
		templateID: cfg.TemplateID,
		targetURL:  targetURL,
		logger:     logger,
	}
}

func (c *TemplateChannel) Name() string {
	return ChannelName
}

type templateMessage struct {
	ToUser     string           `json:"touser"`
	TemplateID string           `json:"template_id"`
	URL        string           `json:"url"`
	Data       *domain.FieldSet `json:"data"`
}

type templateResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	MsgID   int64  `json:"msgid"`
}

func (c *TemplateChannel) Send(ctx context.Context, recipient domain.Recipient, content *domain.RenderedContent) error {
	if recipient.WeChatOpenID == "" {
		return fmt.Errorf("%w: recipient has no touser", dispatch.ErrSkipped)
	}

	token, err := c.tokens.Token()
	if err != nil || token == nil || token.AccessToken == "" {
		return dispatch.ErrCredentialUnavailable
	}

	params := url.Values{}
	params.Set("access_token", token.AccessToken)

	msg := templateMessage{
		ToUser:     recipient.WeChatOpenID,
		TemplateID: c.templateID,
		URL:        c.targetURL,
		Data:       content.Fields,
	}

	var resp templateResponse
	if err := c.api.PostJSON(ctx, c.baseURL+"/cgi-bin/message/template/send", params, msg, &resp); err != nil {
		return err
	}

	c.logger.Info("Template message response",
		zap.String("recipient", recipient.Key()),
		zap.Int("errcode", resp.ErrCode),
		zap.String("errmsg", resp.ErrMsg),
		zap.Int64("msgid", resp.MsgID),
	)

	if resp.ErrCode != 0 {
		return errors.NewAPIError(
			fmt.Sprintf("template message rejected: %d %s", resp.ErrCode, resp.ErrMsg),
			200,
			map[string]any{
				"errcode": resp.ErrCode,
				"errmsg":  resp.ErrMsg,
			},
		)
	}

	return nil
}
