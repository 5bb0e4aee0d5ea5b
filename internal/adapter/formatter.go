package adapter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/util"
)

// GreetingFormatter renders the daily greeting for one recipient as HTML
// fragments and the matching structured fields.
type GreetingFormatter struct {
	location *time.Location
	clock    func() time.Time
}

// NewGreetingFormatter creates a formatter that computes dates in location.
// The embedded templates are parsed here so a broken template fails at startup.
func NewGreetingFormatter(location *time.Location) (*GreetingFormatter, error) {
	if location == nil {
		location = util.LoadLocation(util.DefaultTimeZone)
	}
	if err := loadFormatterTemplates(); err != nil {
		return nil, fmt.Errorf("failed to parse greeting templates: %w", err)
	}
	return &GreetingFormatter{
		location: location,
		clock:    time.Now,
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (f *GreetingFormatter) WithClock(clock func() time.Time) *GreetingFormatter {
	if clock != nil {
		f.clock = clock
	}
	return f
}

type contentWriter struct {
	content *domain.RenderedContent
	err     error
}

func (w *contentWriter) fragment(name string, data any) {
	if w.err != nil {
		return
	}
	html, err := executeFormatterTemplate(name, data)
	if err != nil {
		w.err = fmt.Errorf("render %s: %w", name, err)
		return
	}
	w.content.Fragments = append(w.content.Fragments, html)
}

func (w *contentWriter) field(name domain.FieldName, value, color string) {
	w.content.Fields.Set(name, value, color)
}

// Build assembles the greeting. "Now" is read once and reused for every
// date in the message. Missing weather or epidemic data only drops the
// corresponding sections.
func (f *GreetingFormatter) Build(
	recipient domain.Recipient,
	weather domain.Optional[domain.WeatherSnapshot],
	epidemic domain.Optional[domain.EpidemicSnapshot],
) (*domain.RenderedContent, error) {
	now := f.clock().In(f.location)
	w := &contentWriter{content: domain.NewRenderedContent()}

	greetings := constants.Greetings.Default
	if recipient.HasLoveDate() {
		greetings = constants.Greetings.Lover
	}
	w.fragment("greeting", map[string]any{"Greetings": greetings})
	w.field(domain.FieldGreetings, greetings, constants.Colors.Greetings)

	today := now.Format(constants.MessageDefaults.DateLayout)
	weekday := strconv.Itoa(util.MondayIndex(now))
	w.fragment("date", map[string]any{
		"Today":      today,
		"Weekday":    weekday,
		"TodayColor": constants.Colors.Today,
	})
	w.field(domain.FieldToday, today, constants.Colors.Today)
	w.field(domain.FieldWeekday, weekday, constants.Colors.Today)

	if snapshot, ok := weather.Get(); ok {
		f.writeWeather(w, snapshot)

		if counts, ok := epidemic.Get(); ok {
			current := strconv.Itoa(counts.CurrentConfirmed)
			suspected := strconv.Itoa(counts.Suspected)
			w.fragment("epidemic_header", nil)
			w.fragment("epidemic_counts", map[string]any{
				"CurrentConfirmed": current,
				"Suspected":        suspected,
				"Color":            constants.Colors.Epidemic,
			})
			w.field(domain.FieldCurrentConfirmed, current, constants.Colors.Epidemic)
			w.field(domain.FieldSuspected, suspected, constants.Colors.Epidemic)
		}
	}

	if recipient.HasBirthday() {
		days := strconv.Itoa(DaysUntilBirthday(recipient.Birthday, now))
		w.fragment("birthday", map[string]any{
			"Name":  recipient.Name,
			"Days":  days,
			"Color": constants.Colors.Birthday,
		})
		w.field(domain.FieldBirthday, days, constants.Colors.Birthday)
		w.field(domain.FieldRecipientName, recipient.Name, constants.Colors.Birthday)
	}

	if recipient.HasLoveDate() {
		days := strconv.Itoa(DaysTogether(recipient.LoveDate, now))
		w.fragment("love_days", map[string]any{
			"Days":  days,
			"Color": constants.Colors.LoveDate,
		})
		w.field(domain.FieldLoveDate, days, constants.Colors.LoveDate)
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.content, nil
}

func (f *GreetingFormatter) writeWeather(w *contentWriter, snapshot domain.WeatherSnapshot) {
	w.fragment("weather_condition", map[string]any{
		"City":      snapshot.City,
		"Condition": snapshot.Condition,
	})
	w.field(domain.FieldCity, snapshot.City, constants.Colors.City)
	w.field(domain.FieldWeather, snapshot.Condition, constants.Colors.Weather)

	temp := formatReading(snapshot.Temp)
	low := formatReading(snapshot.Low)
	high := formatReading(snapshot.High)
	w.fragment("weather_temperature", map[string]any{
		"Temp":      temp,
		"Low":       low,
		"High":      high,
		"TempColor": constants.Colors.TempText,
		"LowColor":  constants.Colors.LowText,
		"HighColor": constants.Colors.HighText,
	})
	w.field(domain.FieldTemp, temp, constants.Colors.Temp)
	w.field(domain.FieldLow, low, constants.Colors.Low)
	w.field(domain.FieldHigh, high, constants.Colors.High)

	w.fragment("weather_humidity", map[string]any{
		"Humidity": snapshot.Humidity,
		"Wind":     snapshot.Wind,
	})
	w.field(domain.FieldHumidity, snapshot.Humidity, constants.Colors.Humidity)
	w.field(domain.FieldWind, snapshot.Wind, constants.Colors.Wind)

	pm25 := formatReading(snapshot.PM25)
	pm25Color := PM25Color(snapshot.PM25)
	w.fragment("weather_air", map[string]any{
		"PM25":       pm25,
		"AirQuality": snapshot.AirQuality,
		"PM25Color":  pm25Color,
	})
	w.field(domain.FieldPM25, pm25, pm25Color)
	w.field(domain.FieldAirQuality, snapshot.AirQuality, pm25Color)
}

// PM25Color maps a PM2.5 reading to its tier color. Tier bounds are
// inclusive and compared against the unrounded reading.
func PM25Color(pm25 float64) string {
	switch {
	case pm25 <= float64(constants.PM25Thresholds.Tier1):
		return constants.Colors.PM25Tier1
	case pm25 <= float64(constants.PM25Thresholds.Tier2):
		return constants.Colors.PM25Tier2
	case pm25 <= float64(constants.PM25Thresholds.Tier3):
		return constants.Colors.PM25Tier3
	default:
		return constants.Colors.PM25Tier4
	}
}

// DaysUntilBirthday counts calendar days from now's date to the next
// occurrence of the birthday, 0 when it is today. A Feb 29 birthday is
// observed on Feb 28 in non-leap years.
func DaysUntilBirthday(birthday domain.Date, now time.Time) int {
	today := util.DateOf(now)
	next := birthdayIn(birthday, today.Year())
	if next.Before(today) {
		next = birthdayIn(birthday, today.Year()+1)
	}
	return util.DaysBetween(today, next)
}

func birthdayIn(birthday domain.Date, year int) time.Time {
	day := birthday.Day
	if birthday.Month == time.February && day == 29 && !util.IsLeapYear(year) {
		day = 28
	}
	return time.Date(year, birthday.Month, day, 0, 0, 0, 0, time.UTC)
}

// DaysTogether counts whole calendar days since the love date, never negative.
func DaysTogether(loveDate domain.Date, now time.Time) int {
	days := util.DaysBetween(loveDate.Time(), now)
	if days < 0 {
		return 0
	}
	return days
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
