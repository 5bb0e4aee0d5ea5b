package domain

// WeatherSnapshot is the current weather for one city as reported by the
// weather API. Temperatures are in Celsius.
type WeatherSnapshot struct {
	City       string  `json:"city"`
	Province   string  `json:"province"`
	Condition  string  `json:"weather"`
	Temp       float64 `json:"temp"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Humidity   string  `json:"humidity"`
	Wind       string  `json:"wind"`
	PM25       float64 `json:"pm25"`
	AirQuality string  `json:"airQuality"`
}

// EpidemicSnapshot holds the latest case counts of one city.
type EpidemicSnapshot struct {
	CityName         string `json:"cityName"`
	CurrentConfirmed int    `json:"currentConfirmedCount"`
	Suspected        int    `json:"suspectedCount"`
}
