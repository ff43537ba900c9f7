package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/buzzbuster/antispam/internal/core"
)

// MySQLStore is a MySQL implementation of the Store and GroupStore
// interfaces.
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore connects to the database and creates the schema. Schema
// failures are unrecoverable and the caller should halt.
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	if err := createSchema(db, mysqlSchema); err != nil {
		db.Close()
		return nil, err
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS user_entries (
		user_id BIGINT NOT NULL,
		group_id BIGINT NOT NULL,
		join_date DATETIME NOT NULL,
		seen_message BOOLEAN NOT NULL DEFAULT FALSE,
		spammer BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (user_id, group_id),
		INDEX idx_user_spammer (user_id, spammer)
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`,
	"CREATE TABLE IF NOT EXISTS `groups` (" +
		`group_id BIGINT NOT NULL PRIMARY KEY
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS group_settings (
		group_id BIGINT NOT NULL,
		parameter VARCHAR(255) NOT NULL,
		value TEXT,
		PRIMARY KEY (group_id, parameter)
	) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci`,
}

func (s *MySQLStore) UpsertEntry(ctx context.Context, entry core.UserGroupEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_entries (user_id, group_id, join_date, seen_message, spammer)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			join_date = VALUES(join_date),
			seen_message = seen_message OR VALUES(seen_message),
			spammer = spammer OR VALUES(spammer)
	`, entry.UserID, entry.GroupID, entry.JoinedAt.UTC(), entry.Seen, entry.Spammer)
	if err != nil {
		return fmt.Errorf("failed to upsert user entry: %w", err)
	}
	return nil
}

func (s *MySQLStore) Entry(ctx context.Context, userID, groupID int64) (core.UserGroupEntry, error) {
	var joinDate time.Time
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
	entry.JoinedAt = joinDate
	return entry, nil
}

func (s *MySQLStore) AnySpammer(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_entries WHERE user_id = ? AND spammer = TRUE)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query spammer flag: %w", err)
	}
	return exists, nil
}

func (s *MySQLStore) AnySeen(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM user_entries WHERE user_id = ? AND seen_message = TRUE)
	`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query seen flag: %w", err)
	}
	return exists, nil
}

func (s *MySQLStore) ClearSpammer(ctx context.Context, userID, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_entries SET spammer = FALSE WHERE user_id = ? AND group_id = ?
	`, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to clear spammer flag: %w", err)
	}
	return nil
}

func (s *MySQLStore) GroupsWithSpamFlag(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id FROM user_entries WHERE user_id = ? AND spammer = TRUE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flagged groups: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *MySQLStore) LoadSpammers(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM user_entries
		WHERE spammer = TRUE AND join_date >= ?
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load spammers: %w", err)
	}
	defer rows.Close()
	return scanIDs(rows)
}

func (s *MySQLStore) LoadPending(ctx context.Context) ([]int64, error) {
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

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) AddGroup(ctx context.Context, groupID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO `groups` (group_id) VALUES (?) ON DUPLICATE KEY UPDATE group_id = group_id",
		groupID)
	if err != nil {
		return fmt.Errorf("failed to add group: %w", err)
	}
	return nil
}

func (s *MySQLStore) RemoveGroup(ctx context.Context, groupID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM `groups` WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to remove group: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM group_settings WHERE group_id = ?", groupID); err != nil {
		return fmt.Errorf("failed to remove group settings: %w", err)
	}
	return nil
}

func (s *MySQLStore) MigrateGroup(ctx context.Context, oldID, newID int64) error {
	for _, table := range []string{"`groups`", "group_settings", "user_entries"} {
		query := fmt.Sprintf("UPDATE %s SET group_id = ? WHERE group_id = ?", table)
		if _, err := s.db.ExecContext(ctx, query, newID, oldID); err != nil {
			return fmt.Errorf("failed to migrate group id in %s: %w", table, err)
		}
	}
	return nil
}

func (s *MySQLStore) SetSetting(ctx context.Context, groupID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_settings (group_id, parameter, value) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`, groupID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set group setting: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadGroups(ctx context.Context) ([]core.GroupConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.group_id, s.parameter, s.value
		FROM `+"`groups`"+` g
		LEFT JOIN group_settings s ON g.group_id = s.group_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load configured groups: %w", err)
	}
	defer rows.Close()
	return scanGroups(rows)
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
