package epidemic

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/apiclient"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
)

// Client looks up current case counts per city.
type Client struct {
	api     *apiclient.Client
	baseURL string
	logger  *zap.Logger
}

func NewClient(api *apiclient.Client, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = constants.APIConfig.EpidemicBaseURL
	}
	return &Client{
		api:     api,
		baseURL: baseURL,
		logger:  logger,
	}
}

type areaResponse struct {
	Results []struct {
		ProvinceName string `json:"provinceName"`
		Cities       []struct {
			CityName              string `json:"cityName"`
			CurrentConfirmedCount int    `json:"currentConfirmedCount"`
			SuspectedCount        int    `json:"suspectedCount"`
		} `json:"cities"`
	} `json:"results"`
}

// NormalizeProvince appends the province suffix when it is missing.
func NormalizeProvince(province string) string {
	province = strings.TrimSpace(province)
	if strings.HasSuffix(province, constants.MessageDefaults.ProvinceSuffix) {
		return province
	}
	return province + constants.MessageDefaults.ProvinceSuffix
}

// FetchEpidemic returns the counts for the city whose name matches exactly,
// or None on any failure or when no city matches.
func (c *Client) FetchEpidemic(ctx context.Context, province, city string) domain.Optional[domain.EpidemicSnapshot] {
	normalized := NormalizeProvince(province)

	params := url.Values{}
	params.Set("latest", "1")
	params.Set("province", normalized)

	var resp areaResponse
	if err := c.api.GetJSON(ctx, c.baseURL, params, &resp); err != nil {
		c.logger.Warn("Epidemic request failed",
			zap.String("province", normalized),
			zap.String("city", city),
			zap.Error(err),
		)
		return domain.None[domain.EpidemicSnapshot]()
	}

	if len(resp.Results) == 0 {
		c.logger.Warn("Epidemic API returned no results", zap.String("province", normalized))
		return domain.None[domain.EpidemicSnapshot]()
	}

	for _, entry := range resp.Results[0].Cities {
		if entry.CityName == city {
			return domain.Some(domain.EpidemicSnapshot{
				CityName:         entry.CityName,
				CurrentConfirmed: entry.CurrentConfirmedCount,
				Suspected:        entry.SuspectedCount,
			})
		}
	}

	c.logger.Info("No epidemic data for city",
		zap.String("province", normalized),
		zap.String("city", city),
	)
	return domain.None[domain.EpidemicSnapshot]()
}
