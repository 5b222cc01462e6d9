package matching

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx"
)

// Repository is the query contract against the relational store: candidate
// fetch with conjunctive predicates, point lookup of the requester, and
// idempotent match persistence keyed on (chat_id, matched_user_id).
type Repository interface {
	GetProfile(ctx context.Context, userID int64) (*CandidateProfile, error)
	FindCandidates(ctx context.Context, query *CandidateQuery) ([]*CandidateProfile, error)

	UpsertMatches(ctx context.Context, records []*MatchRecord) error
	GetPreviouslyMatched(ctx context.Context, chatID string) ([]int64, error)
	GetMatchesForChat(ctx context.Context, chatID string, limit, offset int) ([]*MatchRecord, error)
	DeleteMatchesForChat(ctx context.Context, chatID string) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository wires the repository to a live database handle.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const profileColumns = `
    user_id, country_from, surfboard_type, surf_level, surf_level_category,
    age, travel_experience, travel_type, travel_buddies,
    lifestyle_keywords, wave_keywords, destinations
`

func (r *postgresRepository) GetProfile(ctx context.Context, userID int64) (*CandidateProfile, error) {
	row := r.db.QueryRowxContext(ctx,
		`SELECT `+profileColumns+` FROM traveler_profiles WHERE user_id = $1`, userID)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, ErrRequesterNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get profile", Err: err}
	}
	return profile, nil
}

func (r *postgresRepository) FindCandidates(ctx context.Context, query *CandidateQuery) ([]*CandidateProfile, error) {
	sqlText := `SELECT ` + profileColumns + ` FROM traveler_profiles` + query.WhereSQL() + ` ORDER BY user_id`
	args := query.Args
	if query.Limit > 0 {
		args = append(args, query.Limit)
		sqlText += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, &StoreError{Op: "find candidates", Err: err}
	}
	defer rows.Close()

	var candidates []*CandidateProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			// Partially-complete profiles are expected in the pool; a row
			// that cannot be decoded is skipped, not fatal.
			continue
		}
		candidates = append(candidates, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "find candidates", Err: err}
	}

	return candidates, nil
}

// rowScanner covers both *sqlx.Row and *sqlx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProfile(row rowScanner) (*CandidateProfile, error) {
	var (
		p                                  CandidateProfile
		lifestyleJSON, waveJSON, destsJSON []byte
		category, experience, travelType   sql.NullString
		buddies                            sql.NullString
	)

	err := row.Scan(
		&p.UserID, &p.CountryFrom, &p.SurfboardType, &p.SurfLevel, &category,
		&p.Age, &experience, &travelType, &buddies,
		&lifestyleJSON, &waveJSON, &destsJSON,
	)
	if err != nil {
		return nil, err
	}

	p.SurfLevelCategory = category.String
	p.TravelExperience = experience.String
	p.TravelType = travelType.String
	p.TravelBuddies = buddies.String

	if len(lifestyleJSON) > 0 {
		json.Unmarshal(lifestyleJSON, &p.LifestyleKeywords)
	}
	if len(waveJSON) > 0 {
		json.Unmarshal(waveJSON, &p.WaveKeywords)
	}
	if len(destsJSON) > 0 {
		// A malformed destinations blob leaves the history empty; the
		// candidate then simply fails the country pre-filter.
		json.Unmarshal(destsJSON, &p.Destinations)
	}

	return &p, nil
}

const upsertMatchQuery = `
    INSERT INTO trip_matches (
        chat_id, requesting_user_id, matched_user_id,
        destination_country, area, match_score, priority_score,
        general_score, area_priority_boost, matched_areas, matched_towns,
        common_lifestyle_keywords, common_wave_keywords,
        days_in_destination, match_quality, filters_applied
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
    ON CONFLICT (chat_id, matched_user_id)
    DO UPDATE SET
        requesting_user_id = EXCLUDED.requesting_user_id,
        destination_country = EXCLUDED.destination_country,
        area = EXCLUDED.area,
        match_score = EXCLUDED.match_score,
        priority_score = EXCLUDED.priority_score,
        general_score = EXCLUDED.general_score,
        area_priority_boost = EXCLUDED.area_priority_boost,
        matched_areas = EXCLUDED.matched_areas,
        matched_towns = EXCLUDED.matched_towns,
        common_lifestyle_keywords = EXCLUDED.common_lifestyle_keywords,
        common_wave_keywords = EXCLUDED.common_wave_keywords,
        days_in_destination = EXCLUDED.days_in_destination,
        match_quality = EXCLUDED.match_quality,
        filters_applied = EXCLUDED.filters_applied,
        updated_at = CURRENT_TIMESTAMP
`

// UpsertMatches writes the run's records in one transaction. Re-running the
// same match updates rows in place; the composite-key conflict target keeps
// concurrent duplicate submissions from creating duplicate rows.
func (r *postgresRepository) UpsertMatches(ctx context.Context, records []*MatchRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "begin upsert", Err: err}
	}
	defer tx.Rollback()

	for _, rec := range records {
		matchedAreas, _ := json.Marshal(emptyIfNil(rec.MatchedAreas))
		matchedTowns, _ := json.Marshal(emptyIfNil(rec.MatchedTowns))
		lifestyle, _ := json.Marshal(emptyIfNil(rec.CommonLifestyle))
		wave, _ := json.Marshal(emptyIfNil(rec.CommonWave))
		quality, _ := json.Marshal(rec.Quality)
		filters, _ := json.Marshal(rec.Filters)

		_, err := tx.ExecContext(ctx, upsertMatchQuery,
			rec.ChatID, rec.RequestingUserID, rec.MatchedUserID,
			rec.DestinationCountry, rec.Area, rec.MatchScore,
			rec.PriorityScore, rec.GeneralScore, rec.AreaPriorityBoost,
			matchedAreas, matchedTowns, lifestyle, wave,
			rec.DaysInDestination, quality, filters,
		)
		if err != nil {
			return &StoreError{Op: "upsert match", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "commit upsert", Err: err}
	}
	return nil
}

// GetPreviouslyMatched returns the ids already served for a conversation;
// it seeds the next call's exclusion set.
func (r *postgresRepository) GetPreviouslyMatched(ctx context.Context, chatID string) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT matched_user_id FROM trip_matches WHERE chat_id = $1 ORDER BY matched_user_id`, chatID)
	if err != nil {
		return nil, &StoreError{Op: "get previously matched", Err: err}
	}
	return ids, nil
}

func (r *postgresRepository) GetMatchesForChat(ctx context.Context, chatID string, limit, offset int) ([]*MatchRecord, error) {
	rows, err := r.db.QueryxContext(ctx, `
        SELECT id, chat_id, requesting_user_id, matched_user_id,
               destination_country, area, match_score, priority_score,
               general_score, area_priority_boost, matched_areas,
               matched_towns, common_lifestyle_keywords, common_wave_keywords,
               days_in_destination, match_quality, filters_applied, created_at
        FROM trip_matches
        WHERE chat_id = $1
        ORDER BY match_score DESC, created_at DESC
        LIMIT $2 OFFSET $3
    `, chatID, limit, offset)
	if err != nil {
		return nil, &StoreError{Op: "get matches for chat", Err: err}
	}
	defer rows.Close()

	var records []*MatchRecord
	for rows.Next() {
		var (
			rec                               MatchRecord
			matchedAreas, matchedTowns        []byte
			lifestyle, wave, quality, filters []byte
		)
		err := rows.Scan(
			&rec.ID, &rec.ChatID, &rec.RequestingUserID, &rec.MatchedUserID,
			&rec.DestinationCountry, &rec.Area, &rec.MatchScore,
			&rec.PriorityScore, &rec.GeneralScore, &rec.AreaPriorityBoost,
			&matchedAreas, &matchedTowns, &lifestyle, &wave,
			&rec.DaysInDestination, &quality, &filters, &rec.CreatedAt,
		)
		if err != nil {
			return nil, &StoreError{Op: "scan match record", Err: err}
		}
		json.Unmarshal(matchedAreas, &rec.MatchedAreas)
		json.Unmarshal(matchedTowns, &rec.MatchedTowns)
		json.Unmarshal(lifestyle, &rec.CommonLifestyle)
		json.Unmarshal(wave, &rec.CommonWave)
		json.Unmarshal(quality, &rec.Quality)
		json.Unmarshal(filters, &rec.Filters)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "get matches for chat", Err: err}
	}

	return records, nil
}

func (r *postgresRepository) DeleteMatchesForChat(ctx context.Context, chatID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trip_matches WHERE chat_id = $1`, chatID)
	if err != nil {
		return &StoreError{Op: "delete matches for chat", Err: err}
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
