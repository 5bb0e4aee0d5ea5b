package weather

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/apiclient"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
)

// Client queries the speech-platform weather API for current conditions.
type Client struct {
	api     *apiclient.Client
	baseURL string
	logger  *zap.Logger
}

func NewClient(api *apiclient.Client, baseURL string, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = constants.APIConfig.WeatherBaseURL
	}
	return &Client{
		api:     api,
		baseURL: baseURL,
		logger:  logger,
	}
}

type weatherResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		List []weatherEntry `json:"list"`
	} `json:"data"`
}

type weatherEntry struct {
	City       string `json:"city"`
	Province   string `json:"province"`
	Weather    string `json:"weather"`
	Temp       number `json:"temp"`
	Low        number `json:"low"`
	High       number `json:"high"`
	Humidity   string `json:"humidity"`
	Wind       string `json:"wind"`
	PM25       number `json:"pm25"`
	AirQuality string `json:"airQuality"`
}

// FetchWeather returns today's snapshot for city, or None when the API is
// unreachable, reports a non-zero code, or has no entry for the city.
func (c *Client) FetchWeather(ctx context.Context, city string) domain.Optional[domain.WeatherSnapshot] {
	params := url.Values{}
	params.Set("city", city)
	params.Set("openId", constants.WeatherClientParams.OpenID)
	params.Set("clientType", constants.WeatherClientParams.ClientType)
	params.Set("sign", constants.WeatherClientParams.Sign)

	var resp weatherResponse
	if err := c.api.GetJSON(ctx, c.baseURL, params, &resp); err != nil {
		c.logger.Warn("Weather request failed",
			zap.String("city", city),
			zap.Error(err),
		)
		return domain.None[domain.WeatherSnapshot]()
	}

	if resp.Code != 0 {
		c.logger.Warn("Weather API returned error code",
			zap.String("city", city),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg),
		)
		return domain.None[domain.WeatherSnapshot]()
	}

	if len(resp.Data.List) == 0 {
		c.logger.Warn("Weather API returned no data", zap.String("city", city))
		return domain.None[domain.WeatherSnapshot]()
	}

	entry := resp.Data.List[0]
	snapshot := domain.WeatherSnapshot{
		City:       entry.City,
		Province:   entry.Province,
		Condition:  entry.Weather,
		Temp:       float64(entry.Temp),
		Low:        float64(entry.Low),
		High:       float64(entry.High),
		Humidity:   entry.Humidity,
		Wind:       entry.Wind,
		PM25:       float64(entry.PM25),
		AirQuality: entry.AirQuality,
	}
	if snapshot.City == "" {
		snapshot.City = city
	}

	c.logger.Debug("Weather fetched",
		zap.String("city", snapshot.City),
		zap.String("province", snapshot.Province),
		zap.String("weather", snapshot.Condition),
	)

	return domain.Some(snapshot)
}

// number accepts both JSON numbers and numeric strings; the API is not
// consistent between cities.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "℃"))
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q: %w", s, err)
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}
