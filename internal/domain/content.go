package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FieldName is a key of the structured greeting, used as template-message data keys.
type FieldName string

const (
	FieldGreetings        FieldName = "greetings"
	FieldToday            FieldName = "today"
	FieldWeekday          FieldName = "weekday"
	FieldCity             FieldName = "city"
	FieldWeather          FieldName = "weather"
	FieldTemp             FieldName = "temp"
	FieldLow              FieldName = "low"
	FieldHigh             FieldName = "high"
	FieldHumidity         FieldName = "humidity"
	FieldWind             FieldName = "wind"
	FieldPM25             FieldName = "pm25"
	FieldAirQuality       FieldName = "airQuality"
	FieldCurrentConfirmed FieldName = "currentConfirmedCount"
	FieldSuspected        FieldName = "suspectedCount"
	FieldBirthday         FieldName = "birthday"
	FieldRecipientName    FieldName = "name"
	FieldLoveDate         FieldName = "love_date"
)

// Field is one value of the structured greeting and the color it is shown in.
type Field struct {
	Value string `json:"value"`
	Color string `json:"color"`
}

// FieldSet is an insertion-ordered mapping of field names to fields.
type FieldSet struct {
	names  []FieldName
	fields map[FieldName]Field
}

func NewFieldSet() *FieldSet {
	return &FieldSet{fields: make(map[FieldName]Field)}
}

// Set stores the field; re-setting an existing name keeps its original position.
func (s *FieldSet) Set(name FieldName, value, color string) {
	if _, exists := s.fields[name]; !exists {
		s.names = append(s.names, name)
	}
	s.fields[name] = Field{Value: value, Color: color}
}

func (s *FieldSet) Get(name FieldName) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

func (s *FieldSet) Has(name FieldName) bool {
	_, ok := s.fields[name]
	return ok
}

func (s *FieldSet) Len() int {
	return len(s.names)
}

// Names returns the field names in insertion order.
func (s *FieldSet) Names() []FieldName {
	out := make([]FieldName, len(s.names))
	copy(out, s.names)
	return out
}

// MarshalJSON writes the fields as a JSON object in insertion order.
func (s *FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range s.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(name))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(s.fields[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RenderedContent is the greeting for one recipient: HTML fragments in
// display order plus the same data as structured fields.
type RenderedContent struct {
	Fragments []string
	Fields    *FieldSet
}

func NewRenderedContent() *RenderedContent {
	return &RenderedContent{Fields: NewFieldSet()}
}

func (c *RenderedContent) HTML() string {
	return strings.Join(c.Fragments, "")
}
