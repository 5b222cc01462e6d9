package main

import (
	"database/sql"
	"fmt"
)

// runMigrations creates the schema if it does not exist yet.
func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS traveler_profiles (
            user_id BIGINT PRIMARY KEY,
            country_from VARCHAR(100) NOT NULL,
            surfboard_type VARCHAR(50) NOT NULL DEFAULT '',
            surf_level INTEGER NOT NULL DEFAULT 0,
            surf_level_category VARCHAR(50),
            age INTEGER NOT NULL DEFAULT 0,
            travel_experience VARCHAR(50),
            travel_type VARCHAR(50),
            travel_buddies VARCHAR(50),
            lifestyle_keywords JSONB NOT NULL DEFAULT '[]',
            wave_keywords JSONB NOT NULL DEFAULT '[]',
            destinations JSONB NOT NULL DEFAULT '[]',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE TABLE IF NOT EXISTS trip_matches (
            id SERIAL PRIMARY KEY,
            chat_id VARCHAR(100) NOT NULL,
            requesting_user_id BIGINT NOT NULL,
            matched_user_id BIGINT NOT NULL,
            destination_country VARCHAR(100) NOT NULL,
            area VARCHAR(255) NOT NULL DEFAULT '',
            match_score DOUBLE PRECISION NOT NULL,
            priority_score DOUBLE PRECISION NOT NULL,
            general_score DOUBLE PRECISION NOT NULL,
            area_priority_boost DOUBLE PRECISION NOT NULL DEFAULT 0,
            matched_areas JSONB NOT NULL DEFAULT '[]',
            matched_towns JSONB NOT NULL DEFAULT '[]',
            common_lifestyle_keywords JSONB NOT NULL DEFAULT '[]',
            common_wave_keywords JSONB NOT NULL DEFAULT '[]',
            days_in_destination INTEGER NOT NULL DEFAULT 0,
            match_quality JSONB NOT NULL DEFAULT '{}',
            filters_applied JSONB NOT NULL DEFAULT '{}',
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (chat_id, matched_user_id)
        )`,

		`CREATE INDEX IF NOT EXISTS idx_trip_matches_chat_score
            ON trip_matches (chat_id, match_score DESC, created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_traveler_profiles_country_from
            ON traveler_profiles (country_from)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	return nil
}
