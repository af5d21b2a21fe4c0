package database

// Device registration queries. The table holds a single row with id 1.
const (
	UpsertRegistrationQuery = `
		INSERT INTO device_registration (id, token, platform, status, message, attempts, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			platform = excluded.platform,
			status = excluded.status,
			message = excluded.message,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at
	`

	SelectRegistrationQuery = `
		SELECT token, platform, status, message, attempts, updated_at
		FROM device_registration
		WHERE id = 1
	`

	DeleteRegistrationQuery = `DELETE FROM device_registration WHERE id = 1`
)

// Draft queries. chat_key is the deterministic encryption of the chat id.
const (
	UpsertDraftQuery = `
		INSERT INTO drafts (chat_key, draft, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_key) DO UPDATE SET
			draft = excluded.draft,
			updated_at = excluded.updated_at
	`

	SelectDraftQuery = `SELECT draft FROM drafts WHERE chat_key = ?`

	DeleteDraftQuery = `DELETE FROM drafts WHERE chat_key = ?`

	DeleteOldDraftsQuery = `DELETE FROM drafts WHERE updated_at < ?`
)
