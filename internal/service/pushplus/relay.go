package pushplus

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/apiclient"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
)

const ChannelName = "pushplus"

// Relay posts the HTML greeting to the pushplus relay service.
type Relay struct {
	api     *apiclient.Client
	baseURL string
	token   string
	title   string
	logger  *zap.Logger
}

func NewRelay(api *apiclient.Client, baseURL, token, title string, logger *zap.Logger) *Relay {
	if baseURL == "" {
		baseURL = constants.APIConfig.PushPlusBaseURL
	}
	if title == "" {
		title = constants.MessageDefaults.PushPlusTitle
	}
	return &Relay{
		api:     api,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		title:   title,
		logger:  logger,
	}
}

func (r *Relay) Name() string {
	return ChannelName
}

type sendRequest struct {
	Token   string `json:"token"`
	Title   string `json:"title"`
	Content string `json:"content"`
	To      string `json:"to"`
}

type sendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// Send succeeds on any 2xx response. An empty "to" lets pushplus deliver
// to the token owner.
func (r *Relay) Send(ctx context.Context, recipient domain.Recipient, content *domain.RenderedContent) error {
	req := sendRequest{
		Token:   r.token,
		Title:   r.title,
		Content: content.HTML(),
		To:      recipient.PushPlusTo,
	}

	var resp sendResponse
	if err := r.api.PostJSON(ctx, r.baseURL+"/send", nil, req, &resp); err != nil {
		return err
	}

	r.logger.Info("Pushplus response",
		zap.String("recipient", recipient.Key()),
		zap.Int("code", resp.Code),
		zap.String("msg", resp.Msg),
	)
	return nil
}
