package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"social-publisher/domain/model"
)

type OAuthTokenRepositoryMSSQL struct{ db *sql.DB }

func NewOAuthTokenRepositoryMSSQL(db *sql.DB) *OAuthTokenRepositoryMSSQL {
	return &OAuthTokenRepositoryMSSQL{db: db}
}

// EnsureOAuthTokenSchemaMSSQL creates the oauth_tokens table for SQL Server if it does not exist.
func EnsureOAuthTokenSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.oauth_tokens') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[oauth_tokens] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        user_id NVARCHAR(128) NOT NULL,
        platform NVARCHAR(64) NOT NULL,
        access_token NVARCHAR(MAX) NOT NULL,
        refresh_token NVARCHAR(MAX) NULL,
        expires_at DATETIME2 NULL,
        scopes NVARCHAR(MAX) NOT NULL,
        account_id NVARCHAR(128) NULL,
        page_id NVARCHAR(128) NULL,
        page_name NVARCHAR(255) NULL,
        token_type NVARCHAR(32) NULL,
        created_at DATETIME2 NOT NULL,
        updated_at DATETIME2 NOT NULL
    );
    CREATE UNIQUE INDEX UX_oauth_tokens_user_platform ON dbo.[oauth_tokens](user_id, platform);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create oauth_tokens (mssql): %w", err)
	}
	alter := `IF COL_LENGTH('dbo.oauth_tokens', 'account_id') IS NULL
    ALTER TABLE dbo.[oauth_tokens] ADD account_id NVARCHAR(128) NULL;`
	if _, err := db.Exec(alter); err != nil {
		return fmt.Errorf("add oauth_tokens.account_id (mssql): %w", err)
	}
	return nil
}

func (r *OAuthTokenRepositoryMSSQL) UpsertToken(ctx context.Context, t *model.OAuthToken) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	// MERGE upsert by (user_id, platform)
	q := `MERGE dbo.[oauth_tokens] AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    access_token=@p3,
    refresh_token=@p4,
    expires_at=@p5,
    scopes=@p6,
    account_id=COALESCE(@p7, target.account_id),
    page_id=@p8,
    page_name=@p9,
    token_type=@p10,
    updated_at=@p12
WHEN NOT MATCHED THEN
    INSERT (user_id, platform, access_token, refresh_token, expires_at, scopes, account_id, page_id, page_name, token_type, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10,@p11,@p12)
OUTPUT inserted.id;`
	return r.db.QueryRowContext(ctx, q,
		t.UserID, t.Platform,
		t.AccessToken,
		t.RefreshToken,
		nullTime(t.ExpiresAt),
		t.Scopes,
		nullString(t.AccountID),
		nullString(t.PageID),
		nullString(t.PageName),
		nullString(t.TokenType),
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
}

func (r *OAuthTokenRepositoryMSSQL) GetToken(ctx context.Context, userID, platform string) (*model.OAuthToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+oauthTokenColumns+` FROM dbo.[oauth_tokens] WHERE user_id=@p1 AND platform=@p2`, userID, platform)
	tok, err := scanOAuthToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tok, err
}
