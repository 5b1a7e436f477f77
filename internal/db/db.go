package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS aliases (
            alias_id TEXT PRIMARY KEY,
            user_id BIGINT NOT NULL UNIQUE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS profiles (
            user_id BIGINT PRIMARY KEY,
            username TEXT NOT NULL,
            avatar_url TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS platform_roles (
            user_id BIGINT PRIMARY KEY,
            role TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS guilds (
            id BIGSERIAL PRIMARY KEY,
            owner_id BIGINT NOT NULL,
            name TEXT NOT NULL,
            description TEXT,
            icon TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS categories (
            id BIGSERIAL PRIMARY KEY,
            guild_id BIGINT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            position INT NOT NULL DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS channels (
            id BIGSERIAL PRIMARY KEY,
            guild_id BIGINT REFERENCES guilds(id) ON DELETE CASCADE,
            category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
            name TEXT NOT NULL,
            topic TEXT,
            type TEXT NOT NULL DEFAULT 'text',
            is_private BOOLEAN NOT NULL DEFAULT FALSE,
            is_global BOOLEAN NOT NULL DEFAULT FALSE,
            created_by BIGINT NOT NULL,
            rules TEXT,
            icon TEXT,
            dm_key TEXT UNIQUE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS channel_participants (
            channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            role TEXT NOT NULL DEFAULT 'member',
            joined_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(channel_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS guild_members (
            guild_id BIGINT NOT NULL REFERENCES guilds(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            nickname TEXT,
            joined_at TIMESTAMPTZ DEFAULT NOW(),
            PRIMARY KEY(guild_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            channel_id BIGINT NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
            alias_id TEXT NOT NULL REFERENCES aliases(alias_id),
            sender_type TEXT NOT NULL DEFAULT 'user',
            message_text TEXT NOT NULL DEFAULT '',
            file_url TEXT,
            reply_to_id BIGINT REFERENCES messages(id),
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            sent_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel_sent ON messages (channel_id, sent_at);`,
		`CREATE TABLE IF NOT EXISTS invitations (
            invite_id BIGINT PRIMARY KEY,
            sender_id BIGINT NOT NULL,
            target_user_id BIGINT NOT NULL,
            target_channel_id BIGINT REFERENCES channels(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS audit_log (
            id BIGSERIAL PRIMARY KEY,
            channel_id BIGINT,
            user_id BIGINT NOT NULL,
            action_type TEXT NOT NULL,
            details TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		// Seed the designated global channel once.
		`INSERT INTO channels (name, topic, type, is_private, is_global, created_by)
            SELECT 'global', 'Community-wide discussion', 'text', FALSE, TRUE, 0
            WHERE NOT EXISTS (SELECT 1 FROM channels WHERE is_global = TRUE);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
