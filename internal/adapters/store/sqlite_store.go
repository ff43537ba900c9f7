package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/core"
)

// SQLiteStore is a SQLite implementation of the Store and GroupStore
// interfaces.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens the database and creates the schema. A schema failure
// here is unrecoverable and the caller should halt.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := createSchema(db, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS user_entries (
		user_id INTEGER NOT NULL,
		group_id INTEGER NOT NULL,
		join_date TIMESTAMP NOT NULL,
		seen_message BOOLEAN NOT NULL DEFAULT FALSE,
		spammer BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_spammer ON user_entries(user_id, spammer)`,
	`CREATE TABLE IF NOT EXISTS groups (
		group_id INTEGER PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS group_settings (
		group_id INTEGER NOT NULL,
		parameter TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (group_id, parameter)
	)`,
}

func createSchema(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// UpsertEntry merges flags into any existing row: a true flag is never
// overwritten back to false by an unrelated write.
func (s *SQLiteStore) UpsertEntry(ctx context.Context, entry core.UserGroupEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_entries (user_id, group_id, join_date, seen_message, spammer)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, group_id) DO UPDATE SET
			join_date = excluded.join_date,
			seen_message = user_entries.seen_message OR excluded.seen_message,
			spammer = user_entries.spammer OR excluded.spammer
	`, entry.UserID, entry.GroupID, entry.JoinedAt.UTC().Format(time.RFC3339), entry.Seen, entry.Spammer)
	if err != nil {
		return fmt.Errorf("failed to upsert user entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Entry(ctx context.Context, userID, groupID int64) (core.UserGroupEntry, error) {
	var joinDate string
	entry := core.UserGroupEntry{UserID: userID, GroupID: groupID}
	err := s.db.QueryRowContext(ctx, `
		SELECT join_date, seen_message, spammer
		FROM user_entries
		WHERE user_id = ? AND group_id = ?
	`, userID, groupID).Scan(&joinDate, &entry.Seen, &entry.Spammer)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.UserGroupEntry{}, core.ErrNotFound
		}
		return core.UserGroupEntry{}, fmt.Errorf("failed to query user entry: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, joinDate); err == nil {
		entry.JoinedAt = t
	}
	return entry, nil
}

func (s *SQLiteStore) AnySpammer(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_entries WHERE user_id = ? AND spammer = TRUE)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query spammer flag: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) AnySeen(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_entries WHERE user_id = ? AND seen_message = TRUE)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query seen flag: %w", err)
	}
	return exists, nil
}

func (s *SQLiteStore) ClearSpammer(ctx context.Context, userID, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_entries SET spammer = FALSE WHERE user_id = ? AND group_id = ?
	`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to clear spammer flag: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GroupsWithSpamFlag(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM user_entries WHERE user_id = ? AND spammer = TRUE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged groups: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *SQLiteStore) LoadSpammers(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM user_entries
		WHERE spammer = TRUE AND join_date >= ?
	`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to load spammers: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *SQLiteStore) LoadPending(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM user_entries
		WHERE seen_message = FALSE AND spammer = FALSE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending users: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) AddGroup(ctx context.Context, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (group_id) VALUES (?)
		ON CONFLICT(group_id) DO NOTHING
	`, groupID)
	if err != nil {
		return fmt.Errorf("failed to add group: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveGroup(ctx context.Context, groupID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to remove group: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM group_settings WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("failed to remove group settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) MigrateGroup(ctx context.Context, oldID, newID int64) error {
	for _, table := range []string{"groups", "group_settings", "user_entries"} {
		query := fmt.Sprintf(`UPDATE %s SET group_id = ? WHERE group_id = ?`, table)
		if _, err := s.db.ExecContext(ctx, query, newID, oldID); err != nil {
			return fmt.Errorf("failed to migrate group id in %s: %w", table, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, groupID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_settings (group_id, parameter, value) VALUES (?, ?, ?)
		ON CONFLICT(group_id, parameter) DO UPDATE SET value = excluded.value
	`, groupID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set group setting: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadGroups(ctx context.Context) ([]core.GroupConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.group_id, s.parameter, s.value
		FROM groups g
		LEFT JOIN group_settings s ON g.group_id = s.group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load configured groups: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanIDs(rows *sql.Rows) ([]int64, error) {
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanGroups(rows *sql.Rows) ([]core.GroupConfig, error) {
	byID := make(map[int64]core.GroupConfig)
	var order []int64
	for rows.Next() {
		var groupID int64
		var parameter, value sql.NullString
		if err := rows.Scan(&groupID, &parameter, &value); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}
		g, ok := byID[groupID]
		if !ok {
			g = core.GroupConfig{GroupID: groupID, Settings: map[string]string{}}
			order = append(order, groupID)
		}
		if parameter.Valid && value.Valid {
			g.Settings[parameter.String] = value.String
		}
		byID[groupID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	groups := make([]core.GroupConfig, 0, len(order))
	for _, id := range order {
		groups = append(groups, byID[id])
	}
	return groups, nil
}
