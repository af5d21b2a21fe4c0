package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"jobchat/internal/migrations"
	"jobchat/internal/models"
	"jobchat/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the local sqlite state file. It stores the last device
// registration outcome and unsent drafts.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
	now       func() time.Time
}

// New opens (creating if needed) the state database at dbPath and applies any
// pending migrations. A non-empty encryptionSecret enables at-rest encryption
// of push tokens and drafts.
func New(dbPath, encryptionSecret string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	encryptor, err := newEncryptor(encryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, closeWith(db, fmt.Errorf("failed to ping database: %w", err))
	}

	if _, err := migrations.Apply(context.Background(), db); err != nil {
		return nil, closeWith(db, fmt.Errorf("failed to initialize schema: %w", err))
	}

	return &Database{db: db, encryptor: encryptor, now: time.Now}, nil
}

func closeWith(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (close error: %v)", err, closeErr)
	}
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Encrypted reports whether values are sealed at rest
func (d *Database) Encrypted() bool {
	return d.encryptor.enabled()
}

func (d *Database) LoadRegistration(ctx context.Context) (*models.DeviceRegistration, error) {
	var (
		reg            models.DeviceRegistration
		encryptedToken string
		status         string
		found          = true
	)

	err := withRetry(ctx, "load registration", func() error {
		err := d.db.QueryRowContext(ctx, SelectRegistrationQuery).Scan(
			&encryptedToken,
			&reg.Platform,
			&status,
			&reg.Message,
			&reg.Attempts,
			&reg.UpdatedAt,
		)
		if err == sql.ErrNoRows {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	reg.Status = models.RegistrationStatus(status)
	reg.Token, err = d.encryptor.Decrypt(encryptedToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt push token: %w", err)
	}
	return &reg, nil
}

func (d *Database) SaveRegistration(ctx context.Context, reg *models.DeviceRegistration) error {
	encryptedToken, err := d.encryptor.Encrypt(reg.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt push token: %w", err)
	}

	updatedAt := reg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = d.now()
	}

	return withRetry(ctx, "save registration", func() error {
		_, err := d.db.ExecContext(ctx, UpsertRegistrationQuery,
			encryptedToken,
			reg.Platform,
			string(reg.Status),
			reg.Message,
			reg.Attempts,
			updatedAt.UTC(),
		)
		return err
	})
}

func (d *Database) ClearRegistration(ctx context.Context) error {
	return withRetry(ctx, "clear registration", func() error {
		_, err := d.db.ExecContext(ctx, DeleteRegistrationQuery)
		return err
	})
}

func (d *Database) LoadDraft(ctx context.Context, chatID string) (string, error) {
	key, err := d.encryptor.EncryptForLookup(chatID)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt chat key: %w", err)
	}

	var encrypted string
	err = withRetry(ctx, "load draft", func() error {
		err := d.db.QueryRowContext(ctx, SelectDraftQuery, key).Scan(&encrypted)
		if err == sql.ErrNoRows {
			encrypted = ""
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}

	draft, err := d.encryptor.Decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt draft: %w", err)
	}
	return draft, nil
}

// SaveDraft stores draft for chatID; an empty draft deletes the row.
func (d *Database) SaveDraft(ctx context.Context, chatID, draft string) error {
	key, err := d.encryptor.EncryptForLookup(chatID)
	if err != nil {
		return fmt.Errorf("failed to encrypt chat key: %w", err)
	}

	if draft == "" {
		return withRetry(ctx, "delete draft", func() error {
			_, err := d.db.ExecContext(ctx, DeleteDraftQuery, key)
			return err
		})
	}

	encrypted, err := d.encryptor.Encrypt(draft)
	if err != nil {
		return fmt.Errorf("failed to encrypt draft: %w", err)
	}
	return withRetry(ctx, "save draft", func() error {
		_, err := d.db.ExecContext(ctx, UpsertDraftQuery, key, encrypted, d.now().UTC())
		return err
	})
}

// CleanupOldDrafts removes drafts not touched for maxAge and returns how many
// were deleted.
func (d *Database) CleanupOldDrafts(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := d.now().Add(-maxAge).UTC()

	var deleted int64
	err := withRetry(ctx, "cleanup drafts", func() error {
		res, err := d.db.ExecContext(ctx, DeleteOldDraftsQuery, cutoff)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// HealthCheck pings the database
func (d *Database) HealthCheck(ctx context.Context) error {
	return withRetry(ctx, "health check", func() error {
		return d.db.PingContext(ctx)
	})
}
