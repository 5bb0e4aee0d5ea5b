package recipient

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/domain"
)

// Repository reads the recipient list from the greeting_recipients table.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// FindEnabled returns every enabled recipient in insertion order.
func (r *Repository) FindEnabled(ctx context.Context) ([]domain.Recipient, error) {
	query := `
		SELECT name, city, birthday, love_date, wechat_openid, pushplus_to
		FROM greeting_recipients
		WHERE enabled = TRUE
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var recipients []domain.Recipient
	for rows.Next() {
		var (
			name         string
			city         string
			birthday     sql.NullTime
			loveDate     sql.NullTime
			wechatOpenID sql.NullString
			pushPlusTo   sql.NullString
		)

		if err := rows.Scan(&name, &city, &birthday, &loveDate, &wechatOpenID, &pushPlusTo); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}

		rec := domain.Recipient{
			Name:         name,
			City:         city,
			WeChatOpenID: wechatOpenID.String,
			PushPlusTo:   pushPlusTo.String,
		}
		if birthday.Valid {
			rec.Birthday = domain.DateFromTime(birthday.Time)
		}
		if loveDate.Valid {
			rec.LoveDate = domain.DateFromTime(loveDate.Time)
		}
		recipients = append(recipients, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}

	r.logger.Info("Recipients loaded from PostgreSQL", zap.Int("count", len(recipients)))
	return recipients, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS greeting_recipients (
		id            SERIAL PRIMARY KEY,
		name          TEXT NOT NULL UNIQUE,
		city          TEXT NOT NULL,
		birthday      DATE,
		love_date     DATE,
		wechat_openid TEXT,
		pushplus_to   TEXT,
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// EnsureSchema creates the recipient table when it does not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create greeting_recipients: %w", err)
	}
	return nil
}

// Upsert inserts or updates recipients by name in a single transaction and
// re-enables any that were disabled.
func (r *Repository) Upsert(ctx context.Context, recipients []domain.Recipient) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recipients {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO greeting_recipients (name, city, birthday, love_date, wechat_openid, pushplus_to, enabled)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (name) DO UPDATE SET
				city = EXCLUDED.city,
				birthday = EXCLUDED.birthday,
				love_date = EXCLUDED.love_date,
				wechat_openid = EXCLUDED.wechat_openid,
				pushplus_to = EXCLUDED.pushplus_to,
				enabled = TRUE,
				updated_at = NOW()
		`, rec.Name, rec.City, nullDate(rec.Birthday), nullDate(rec.LoveDate),
			nullString(rec.WeChatOpenID), nullString(rec.PushPlusTo))
		if err != nil {
			return fmt.Errorf("failed to upsert recipient %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recipients: %w", err)
	}

	r.logger.Info("Recipients imported", zap.Int("count", len(recipients)))
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d domain.Date) sql.NullTime {
	if d.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: d.Time(), Valid: true}
}
