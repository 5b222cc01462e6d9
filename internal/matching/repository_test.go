package matching

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(sqlx.NewDb(db, "postgres")), mock
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"user_id", "country_from", "surfboard_type", "surf_level",
		"surf_level_category", "age", "travel_experience", "travel_type",
		"travel_buddies", "lifestyle_keywords", "wave_keywords", "destinations",
	})
}

func TestGetProfile(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := profileRows().AddRow(
		int64(42), "Germany", "shortboard", 2,
		"intermediate", 28, "6", "mid",
		"solo", `["yoga"]`, `["reef break"]`,
		`[{"country":"Portugal","area":["north"],"time_in_days":14}]`,
	)
	mock.ExpectQuery(`SELECT .+ FROM traveler_profiles WHERE user_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	profile, err := repo.GetProfile(context.Background(), 42)
	require.NoError(t, err)

	assert.Equal(t, int64(42), profile.UserID)
	assert.Equal(t, "intermediate", profile.SurfLevelCategory)
	assert.Equal(t, []string{"yoga"}, profile.LifestyleKeywords)
	require.Len(t, profile.Destinations, 1)
	assert.Equal(t, "Portugal", profile.Destinations[0].Country)
	assert.Equal(t, []string{"north"}, profile.Destinations[0].Tokens)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProfileNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .+ FROM traveler_profiles WHERE user_id = \$1`).
		WithArgs(int64(999)).
		WillReturnRows(profileRows())

	_, err := repo.GetProfile(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRequesterNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindCandidatesSkipsUndecodableRows(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := profileRows().
		AddRow(int64(2), "France", "fish", 3, nil, 30, nil, nil, nil, `[]`, `[]`, `[]`).
		AddRow(int64(3), "Spain", "longboard", nil, nil, 26, nil, nil, nil, `[]`, `[]`, `[]`). // surf_level NULL: undecodable
		AddRow(int64(4), "Brazil", "", 1, nil, 33, nil, nil, nil, `[]`, `[]`, `not json`)

	mock.ExpectQuery(`SELECT .+ FROM traveler_profiles WHERE user_id <> \$1 ORDER BY user_id LIMIT \$2`).
		WithArgs(int64(1), 100).
		WillReturnRows(rows)

	qb := NewQueryBuilder(10, 100)
	candidates, err := repo.FindCandidates(context.Background(),
		qb.Build(&TripRequest{DestinationCountry: "Portugal"}, 1, nil))
	require.NoError(t, err)

	// Row 3 fails the scan and is skipped; row 4's malformed destinations
	// blob degrades to an empty history but the row itself survives.
	require.Len(t, candidates, 2)
	assert.Equal(t, int64(2), candidates[0].UserID)
	assert.Equal(t, int64(4), candidates[1].UserID)
	assert.Empty(t, candidates[1].Destinations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMatchesRunsInOneTransaction(t *testing.T) {
	repo, mock := newMockRepository(t)

	records := []*MatchRecord{
		{ChatID: "c1", RequestingUserID: 1, MatchedUserID: 2, DestinationCountry: "Portugal", MatchScore: 55},
		{ChatID: "c1", RequestingUserID: 1, MatchedUserID: 3, DestinationCountry: "Portugal", MatchScore: 40},
	}

	mock.ExpectBegin()
	upsert := regexp.QuoteMeta("INSERT INTO trip_matches")
	mock.ExpectExec(upsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(upsert).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpsertMatches(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMatchesRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	records := []*MatchRecord{
		{ChatID: "c1", RequestingUserID: 1, MatchedUserID: 2, DestinationCountry: "Portugal"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trip_matches")).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.UpsertMatches(context.Background(), records)
	require.Error(t, err)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.True(t, storeErr.Retryable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMatchesNoRecordsIsNoOp(t *testing.T) {
	repo, mock := newMockRepository(t)

	require.NoError(t, repo.UpsertMatches(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPreviouslyMatched(t *testing.T) {
	repo, mock := newMockRepository(t)

	rows := sqlmock.NewRows([]string{"matched_user_id"}).
		AddRow(int64(2)).AddRow(int64(5)).AddRow(int64(9))
	mock.ExpectQuery(`SELECT matched_user_id FROM trip_matches WHERE chat_id = \$1 ORDER BY matched_user_id`).
		WithArgs("c1").
		WillReturnRows(rows)

	ids, err := repo.GetPreviouslyMatched(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMatchesForChat(t *testing.T) {
	repo, mock := newMockRepository(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "chat_id", "requesting_user_id", "matched_user_id",
		"destination_country", "area", "match_score", "priority_score",
		"general_score", "area_priority_boost", "matched_areas",
		"matched_towns", "common_lifestyle_keywords", "common_wave_keywords",
		"days_in_destination", "match_quality", "filters_applied", "created_at",
	}).AddRow(
		int64(1), "c1", int64(1), int64(2),
		"Indonesia", "south", 1055.0, 0.0,
		55.0, 1000.0, `["south"]`,
		`["Uluwatu"]`, `[]`, `[]`,
		30, `{"country_match":true,"area_match":true,"town_match":true}`,
		`{"destination_country":"Indonesia","intent":"surf_spots","non_negotiable_criteria":{},"excluded_count":0}`,
		now,
	)

	mock.ExpectQuery(`SELECT .+ FROM trip_matches\s+WHERE chat_id = \$1\s+ORDER BY match_score DESC, created_at DESC\s+LIMIT \$2 OFFSET \$3`).
		WithArgs("c1", 20, 0).
		WillReturnRows(rows)

	records, err := repo.GetMatchesForChat(context.Background(), "c1", 20, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, int64(2), rec.MatchedUserID)
	assert.Equal(t, 1055.0, rec.MatchScore)
	assert.Equal(t, []string{"south"}, rec.MatchedAreas)
	assert.Equal(t, []string{"Uluwatu"}, rec.MatchedTowns)
	assert.True(t, rec.Quality.TownMatch)
	assert.Equal(t, IntentSurfSpots, rec.Filters.Intent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMatchesForChat(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`DELETE FROM trip_matches WHERE chat_id = \$1`).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.DeleteMatchesForChat(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
