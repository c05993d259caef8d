package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/model"
)

const oauthTokenColumns = `id, user_id, platform, access_token, refresh_token, expires_at, scopes, account_id, page_id, page_name, token_type, created_at, updated_at`

type OAuthTokenRepository struct{ db *sql.DB }

func NewOAuthTokenRepository(db *sql.DB) *OAuthTokenRepository { return &OAuthTokenRepository{db: db} }

// EnsureOAuthTokenSchema creates oauth_tokens if missing and backfills columns
// added after the first release.
func EnsureOAuthTokenSchema(db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS oauth_tokens (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		platform VARCHAR(64) NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NULL,
		scopes TEXT NOT NULL DEFAULT '',
		account_id VARCHAR(128) NULL,
		page_id VARCHAR(128) NULL,
		page_name VARCHAR(255) NULL,
		token_type VARCHAR(32) NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, platform)
	)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create oauth_tokens: %w", err)
	}
	return addMissingColumns(db, []columnCheck{
		{table: "oauth_tokens", column: "account_id", ddl: `ALTER TABLE oauth_tokens ADD COLUMN account_id VARCHAR(128) NULL`},
	})
}

func (r *OAuthTokenRepository) UpsertToken(ctx context.Context, t *model.OAuthToken) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	q := `INSERT INTO oauth_tokens (user_id, platform, access_token, refresh_token, expires_at, scopes, account_id, page_id, page_name, token_type, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			account_id=COALESCE(EXCLUDED.account_id, oauth_tokens.account_id),
			page_id=EXCLUDED.page_id,
			page_name=EXCLUDED.page_name,
			token_type=EXCLUDED.token_type,
			updated_at=EXCLUDED.updated_at
		  RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		t.UserID, t.Platform, t.AccessToken, t.RefreshToken, nullTime(t.ExpiresAt), t.Scopes,
		nullString(t.AccountID), nullString(t.PageID), nullString(t.PageName), nullString(t.TokenType),
		t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
}

// GetToken returns (nil, nil) when no credential is stored for the account.
func (r *OAuthTokenRepository) GetToken(ctx context.Context, userID, platform string) (*model.OAuthToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+oauthTokenColumns+` FROM oauth_tokens WHERE user_id=$1 AND platform=$2`, userID, platform)
	tok, err := scanOAuthToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tok, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOAuthToken(row rowScanner) (*model.OAuthToken, error) {
	tok := &model.OAuthToken{}
	var exp sql.NullTime
	var refresh, accountID, pageID, pageName, tokenType sql.NullString
	if err := row.Scan(&tok.ID, &tok.UserID, &tok.Platform, &tok.AccessToken, &refresh, &exp, &tok.Scopes, &accountID, &pageID, &pageName, &tokenType, &tok.CreatedAt, &tok.UpdatedAt); err != nil {
		return nil, err
	}
	tok.RefreshToken = refresh.String
	tok.ExpiresAt = timePtr(exp)
	tok.AccountID = stringPtr(accountID)
	tok.PageID = stringPtr(pageID)
	tok.PageName = stringPtr(pageName)
	tok.TokenType = stringPtr(tokenType)
	return tok, nil
}
