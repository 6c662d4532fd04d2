package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lookoutdev/lookout/internal/domain"
	_ "modernc.org/sqlite"
)

// querier abstracts *sql.DB and *sql.Tx so store methods run unchanged
// inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB // nil for transactional views
	q  querier
}

// NewSQLite creates a new SQLite-backed store.
func NewSQLite(dbPath string) (Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		requirements TEXT,
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		pending_clarification_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'normal',
		text TEXT NOT NULL,
		is_blocking INTEGER NOT NULL DEFAULT 0,
		clarification_status TEXT,
		answer_message_id TEXT,
		listing_id TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_messages_pending ON messages(session_id)
		WHERE kind = 'clarification_question' AND clarification_status = 'pending';

	CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		url TEXT,
		price REAL,
		currency TEXT,
		marketplace TEXT,
		metadata TEXT,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		score INTEGER,
		rationale TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_session ON listings(session_id);

	CREATE TABLE IF NOT EXISTS agent_memory (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		data TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InTx runs fn against a transactional view of the store. SQLITE_BUSY
// conflicts are retried with exponential backoff; anything else bubbles up.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		// Already inside a transaction; reuse it.
		return fn(s)
	}

	const maxRetries = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isSQLiteConflict(err) {
			return err
		}
		if i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Database locked, retrying transaction", "attempt", i+1, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}

func (s *SQLiteStore) runTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txStore := &SQLiteStore{q: tx}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.q.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.q.ExecContext(ctx, query,
		user.UserID, user.Username, user.LastSeenAt.Unix(),
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.q.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// CreateSession persists a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	query := `
	INSERT INTO sessions (id, user_id, title, category, requirements, status, pending_clarification_id, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		session.ID, session.UserID, session.Title, session.Category,
		nullableString(session.Requirements), string(session.Status),
		nullableString(session.PendingClarificationID),
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT id, user_id, title, category, requirements, status, pending_clarification_id, created_at, updated_at
		FROM sessions WHERE id = ?`

	return scanSession(s.q.QueryRowContext(ctx, query, sessionID))
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var sess domain.Session
	var requirements, pendingID sql.NullString
	var status string
	var createdAt, updatedAt int64

	err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Title, &sess.Category,
		&requirements, &status, &pendingID, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Status = domain.SessionStatus(status)
	if requirements.Valid {
		sess.Requirements = &requirements.String
	}
	if pendingID.Valid {
		sess.PendingClarificationID = &pendingID.String
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	return &sess, nil
}

// ListSessionsByUser lists a user's sessions, newest first.
func (s *SQLiteStore) ListSessionsByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	query := `
		SELECT id, user_id, title, category, requirements, status, pending_clarification_id, created_at, updated_at
		FROM sessions WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer closeRows(rows, "sessions")

	var sessions []*domain.Session
	for rows.Next() {
		var sess domain.Session
		var requirements, pendingID sql.NullString
		var status string
		var createdAt, updatedAt int64

		if err := rows.Scan(
			&sess.ID, &sess.UserID, &sess.Title, &sess.Category,
			&requirements, &status, &pendingID, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}

		sess.Status = domain.SessionStatus(status)
		if requirements.Valid {
			sess.Requirements = &requirements.String
		}
		if pendingID.Valid {
			sess.PendingClarificationID = &pendingID.String
		}
		sess.CreatedAt = time.Unix(createdAt, 0)
		sess.UpdatedAt = time.Unix(updatedAt, 0)
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionMeta updates title, category, and requirements.
func (s *SQLiteStore) UpdateSessionMeta(ctx context.Context, sessionID string, title, category, requirements *string) error {
	query := `
		UPDATE sessions SET
			title = COALESCE(?, title),
			category = COALESCE(?, category),
			requirements = COALESCE(?, requirements),
			updated_at = ?
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, query,
		nullableString(title), nullableString(category), nullableString(requirements),
		time.Now().Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session meta: %w", err)
	}
	return requireRow(result, "session", sessionID)
}

// UpdateSessionStatus sets the session status and the pending clarification pointer.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus, pendingClarificationID *string) error {
	query := `UPDATE sessions SET status = ?, pending_clarification_id = ?, updated_at = ? WHERE id = ?`

	result, err := s.q.ExecContext(ctx, query,
		string(status), nullableString(pendingClarificationID), time.Now().Unix(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRow(result, "session", sessionID)
}

// DeleteSession removes a session along with its messages and listings.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	return s.InTx(ctx, func(tx Store) error {
		txs := tx.(*SQLiteStore)
		if _, err := txs.q.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("delete session messages: %w", err)
		}
		if _, err := txs.q.ExecContext(ctx, `DELETE FROM listings WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("delete session listings: %w", err)
		}
		result, err := txs.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return requireRow(result, "session", sessionID)
	})
}

// CreateMessage persists a new message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *domain.Message) error {
	query := `
	INSERT INTO messages (id, session_id, sender, kind, text, is_blocking, clarification_status, answer_message_id, listing_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var clarStatus any
	if msg.ClarificationStatus != "" {
		clarStatus = msg.ClarificationStatus
	}

	_, err := s.q.ExecContext(ctx, query,
		msg.ID, msg.SessionID, msg.Sender, msg.Kind, msg.Text,
		boolToInt(msg.Blocking), clarStatus,
		nullableString(msg.AnswerMessageID), nullableString(msg.ListingID),
		msg.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	query := `
		SELECT id, session_id, sender, kind, text, is_blocking, clarification_status, answer_message_id, listing_id, created_at
		FROM messages WHERE id = ?`

	row := s.q.QueryRowContext(ctx, query, messageID)

	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}
	return msg, nil
}

func scanMessage(scan func(dest ...any) error) (*domain.Message, error) {
	var msg domain.Message
	var blocking int
	var clarStatus, answerID, listingID sql.NullString
	var createdAt int64

	err := scan(
		&msg.ID, &msg.SessionID, &msg.Sender, &msg.Kind, &msg.Text,
		&blocking, &clarStatus, &answerID, &listingID, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	msg.Blocking = blocking != 0
	msg.ClarificationStatus = clarStatus.String
	if answerID.Valid {
		msg.AnswerMessageID = &answerID.String
	}
	if listingID.Valid {
		msg.ListingID = &listingID.String
	}
	msg.CreatedAt = time.Unix(createdAt, 0)

	return &msg, nil
}

// ListMessages returns the most recent limit messages in oldest-first order.
func (s *SQLiteStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, session_id, sender, kind, text, is_blocking, clarification_status, answer_message_id, listing_id, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at DESC, rowid DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Query runs newest-first to apply the window; callers want oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListOpenClarifications returns pending clarification questions, oldest first.
func (s *SQLiteStore) ListOpenClarifications(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	query := `
		SELECT id, session_id, sender, kind, text, is_blocking, clarification_status, answer_message_id, listing_id, created_at
		FROM messages
		WHERE session_id = ? AND kind = ? AND clarification_status = ?
		ORDER BY created_at ASC, rowid ASC`

	rows, err := s.q.QueryContext(ctx, query, sessionID, domain.MessageClarification, domain.ClarificationPending)
	if err != nil {
		return nil, fmt.Errorf("query open clarifications: %w", err)
	}
	defer closeRows(rows, "open clarifications")

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan clarification row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open clarifications: %w", err)
	}
	return messages, nil
}

// UpdateMessageClarification transitions a clarification question's status.
func (s *SQLiteStore) UpdateMessageClarification(ctx context.Context, messageID, status string, answerMessageID *string) error {
	query := `
		UPDATE messages SET
			clarification_status = ?,
			answer_message_id = COALESCE(?, answer_message_id)
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, query, status, nullableString(answerMessageID), messageID)
	if err != nil {
		return fmt.Errorf("update message clarification: %w", err)
	}
	return requireRow(result, "message", messageID)
}

// CreateListing persists a new listing.
func (s *SQLiteStore) CreateListing(ctx context.Context, listing *domain.Listing) error {
	metadata, err := marshalMetadata(listing.Metadata)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO listings (id, session_id, title, url, price, currency, marketplace, metadata, description, status, score, rationale, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var price any
	if listing.Price != nil {
		price = *listing.Price
	}
	var score any
	if listing.Score != nil {
		score = *listing.Score
	}

	_, err = s.q.ExecContext(ctx, query,
		listing.ID, listing.SessionID, listing.Title,
		emptyToNull(listing.URL), price, emptyToNull(listing.Currency), emptyToNull(listing.Marketplace),
		metadata, emptyToNull(listing.Description), listing.Status,
		score, nullableString(listing.Rationale),
		listing.CreatedAt.Unix(), listing.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing by ID.
func (s *SQLiteStore) GetListing(ctx context.Context, listingID string) (*domain.Listing, error) {
	query := listingSelect + ` WHERE id = ?`

	row := s.q.QueryRowContext(ctx, query, listingID)
	listing, err := scanListing(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan listing row: %w", err)
	}
	return listing, nil
}

const listingSelect = `
	SELECT id, session_id, title, url, price, currency, marketplace, metadata, description, status, score, rationale, created_at, updated_at
	FROM listings`

func scanListing(scan func(dest ...any) error) (*domain.Listing, error) {
	var listing domain.Listing
	var url, currency, marketplace, metadata, description, rationale sql.NullString
	var price sql.NullFloat64
	var score sql.NullInt64
	var createdAt, updatedAt int64

	err := scan(
		&listing.ID, &listing.SessionID, &listing.Title,
		&url, &price, &currency, &marketplace, &metadata, &description,
		&listing.Status, &score, &rationale, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	listing.URL = url.String
	listing.Currency = currency.String
	listing.Marketplace = marketplace.String
	listing.Description = description.String
	if price.Valid {
		listing.Price = &price.Float64
	}
	if score.Valid {
		v := int(score.Int64)
		listing.Score = &v
	}
	if rationale.Valid {
		listing.Rationale = &rationale.String
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &listing.Metadata); err != nil {
			return nil, fmt.Errorf("decode listing metadata: %w", err)
		}
	}
	listing.CreatedAt = time.Unix(createdAt, 0)
	listing.UpdatedAt = time.Unix(updatedAt, 0)

	return &listing, nil
}

// ListListings lists a session's listings, best score first.
func (s *SQLiteStore) ListListings(ctx context.Context, sessionID string, activeOnly bool) ([]*domain.Listing, error) {
	query := listingSelect + ` WHERE session_id = ?`
	args := []any{sessionID}
	if activeOnly {
		query += ` AND status = ?`
		args = append(args, domain.ListingActive)
	}
	// Scored listings first, best score on top; unscored ones by recency.
	query += ` ORDER BY score IS NULL, score DESC, created_at DESC, rowid DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer closeRows(rows, "listings")

	var listings []*domain.Listing
	for rows.Next() {
		listing, err := scanListing(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan listing row: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// UpdateListingFields applies a user edit to a listing's descriptive fields.
func (s *SQLiteStore) UpdateListingFields(ctx context.Context, listingID string, edit ListingEdit) error {
	var metadata any
	if edit.Metadata != nil {
		encoded, err := marshalMetadata(edit.Metadata)
		if err != nil {
			return err
		}
		metadata = encoded
	}

	var price any
	if edit.Price != nil {
		price = *edit.Price
	}

	query := `
		UPDATE listings SET
			title = COALESCE(?, title),
			url = COALESCE(?, url),
			price = COALESCE(?, price),
			currency = COALESCE(?, currency),
			marketplace = COALESCE(?, marketplace),
			metadata = COALESCE(?, metadata),
			description = COALESCE(?, description),
			updated_at = ?
		WHERE id = ?`

	result, err := s.q.ExecContext(ctx, query,
		nullableString(edit.Title), nullableString(edit.URL), price,
		nullableString(edit.Currency), nullableString(edit.Marketplace),
		metadata, nullableString(edit.Description),
		time.Now().Unix(), listingID,
	)
	if err != nil {
		return fmt.Errorf("update listing fields: %w", err)
	}
	return requireRow(result, "listing", listingID)
}

// UpdateListingScore sets the evaluation score and rationale.
func (s *SQLiteStore) UpdateListingScore(ctx context.Context, listingID string, score int, rationale string) error {
	query := `UPDATE listings SET score = ?, rationale = ?, updated_at = ? WHERE id = ?`

	result, err := s.q.ExecContext(ctx, query, score, rationale, time.Now().Unix(), listingID)
	if err != nil {
		return fmt.Errorf("update listing score: %w", err)
	}
	return requireRow(result, "listing", listingID)
}

// MarkListingRemoved retires a listing from consideration.
func (s *SQLiteStore) MarkListingRemoved(ctx context.Context, listingID string) error {
	query := `UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`

	result, err := s.q.ExecContext(ctx, query, domain.ListingRemoved, time.Now().Unix(), listingID)
	if err != nil {
		return fmt.Errorf("mark listing removed: %w", err)
	}
	return requireRow(result, "listing", listingID)
}

// GetMemory retrieves an agent memory record by key.
func (s *SQLiteStore) GetMemory(ctx context.Context, key string) (*domain.MemoryRecord, error) {
	query := `SELECT key, kind, data, updated_at FROM agent_memory WHERE key = ?`

	row := s.q.QueryRowContext(ctx, query, key)

	var rec domain.MemoryRecord
	var data string
	var updatedAt int64

	err := row.Scan(&rec.Key, &rec.Kind, &data, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan memory row: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return nil, fmt.Errorf("decode memory payload: %w", err)
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	return &rec, nil
}

// UpsertMemory creates or replaces an agent memory record.
func (s *SQLiteStore) UpsertMemory(ctx context.Context, key, kind string, data map[string]any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode memory payload: %w", err)
	}

	query := `
	INSERT INTO agent_memory (key, kind, data, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		kind = excluded.kind,
		data = excluded.data,
		updated_at = excluded.updated_at`

	if _, err := s.q.ExecContext(ctx, query, key, kind, string(encoded), time.Now().Unix()); err != nil {
		return fmt.Errorf("upsert memory: %w", err)
	}
	return nil
}

// DeleteMemory removes an agent memory record.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, key string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM agent_memory WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}

func marshalMetadata(metadata map[string]any) (string, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode listing metadata: %w", err)
	}
	return string(encoded), nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "what", what, "error", err)
	}
}
