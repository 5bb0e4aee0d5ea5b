package domain

import "strings"

// Recipient is one configured person who receives the daily greeting.
type Recipient struct {
	Name         string `json:"name"`
	City         string `json:"city"`
	Birthday     Date   `json:"birthday"`
	LoveDate     Date   `json:"love_date"`
	WeChatOpenID string `json:"touser"`
	PushPlusTo   string `json:"to"`
}

func (r *Recipient) HasBirthday() bool {
	return !r.Birthday.IsZero()
}

func (r *Recipient) HasLoveDate() bool {
	return !r.LoveDate.IsZero()
}

// Key identifies the recipient in logs and in the delivery ledger.
func (r *Recipient) Key() string {
	parts := []string{strings.TrimSpace(r.Name)}
	if r.WeChatOpenID != "" {
		parts = append(parts, r.WeChatOpenID)
	}
	if r.PushPlusTo != "" {
		parts = append(parts, r.PushPlusTo)
	}
	return strings.Join(parts, ":")
}
