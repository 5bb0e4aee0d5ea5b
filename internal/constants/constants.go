package constants

import "time"

var APIConfig = struct {
	WeatherBaseURL  string
	EpidemicBaseURL string
	WeChatBaseURL   string
	PushPlusBaseURL string
	Timeout         time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}{
	WeatherBaseURL:  "https://autodev.openspeech.cn/csp/api/v2.1/weather",
	EpidemicBaseURL: "https://lab.isaaclin.cn/nCoV/api/area",
	WeChatBaseURL:   "https://api.weixin.qq.com",
	PushPlusBaseURL: "https://www.pushplus.plus",
	Timeout:         10 * time.Second,
	RateLimitRPS:    2,
	RateLimitBurst:  2,
}

// WeatherClientParams identify this client to the speech-platform weather API.
var WeatherClientParams = struct {
	OpenID     string
	ClientType string
	Sign       string
}{
	OpenID:     "aiuicus",
	ClientType: "windows",
	Sign:       "windows",
}

var Greetings = struct {
	Lover   string
	Default string
}{
	Lover:   "早安，我爱你",
	Default: "早安",
}

var MessageDefaults = struct {
	PushPlusTitle     string
	TemplateTargetURL string
	ProvinceSuffix    string
	DateLayout        string
}{
	PushPlusTitle:     "早安，午安，晚安",
	TemplateTargetURL: "https://weixin.qq.com/download",
	ProvinceSuffix:    "省",
	DateLayout:        "2006年01月02日",
}

var Colors = struct {
	Greetings string
	Today     string
	City      string
	Weather   string
	Temp      string
	Low       string
	High      string
	TempText  string
	LowText   string
	HighText  string
	Humidity  string
	Wind      string
	Epidemic  string
	Birthday  string
	LoveDate  string
	PM25Tier1 string
	PM25Tier2 string
	PM25Tier3 string
	PM25Tier4 string
}{
	Greetings: "#FF6347",
	Today:     "#c3e88d",
	City:      "#c3e88d",
	Weather:   "#FF8C00",
	Temp:      "#FF8C00",
	Low:       "#00FFFF",
	High:      "#CC3300",
	TempText:  "#FF9900",
	LowText:   "#009900",
	HighText:  "#E53333",
	Humidity:  "#6600FF",
	Wind:      "#663300",
	Epidemic:  "#FF0000",
	Birthday:  "#F08080",
	LoveDate:  "#FFC0CB",
	PM25Tier1: "#DAF7A6",
	PM25Tier2: "#FFC300",
	PM25Tier3: "#FF5733",
	PM25Tier4: "#C70039",
}

// PM25Thresholds are inclusive upper bounds of tiers 1-3; anything above is tier 4.
var PM25Thresholds = struct {
	Tier1 int
	Tier2 int
	Tier3 int
}{
	Tier1: 35,
	Tier2: 75,
	Tier3: 115,
}

var LedgerConfig = struct {
	KeyPrefix string
	TTL       time.Duration
}{
	KeyPrefix: "greeting:delivered:",
	TTL:       36 * time.Hour, // covers a full day plus scheduler drift
}

var RunConfig = struct {
	Timeout        time.Duration
	PreviewLength  int
	ResponseLength int
}{
	Timeout:        5 * time.Minute,
	PreviewLength:  200,
	ResponseLength: 300,
}
