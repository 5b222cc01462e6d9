package matching

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// CandidateQuery is the candidate-fetch predicate produced by the
// QueryBuilder and executed by the repository. Clauses are conjunctive, so
// adding a filter can only shrink the candidate set.
type CandidateQuery struct {
	Clauses []string
	Args    []interface{}
	Limit   int

	// InMemoryExclusion is set when the exclusion set was too large to fold
	// into the predicate; the caller filters ExcludedIDs after the fetch.
	InMemoryExclusion bool
	ExcludedIDs       []int64
}

// WhereSQL renders the combined WHERE clause.
func (q *CandidateQuery) WhereSQL() string {
	if len(q.Clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.Clauses, " AND ")
}

// QueryBuilder turns a trip request's hard filters plus an exclusion set
// into a candidate-fetch predicate.
type QueryBuilder struct {
	// inlineExclusionMax bounds how many excluded ids are folded into the
	// predicate directly. Above it the fetch runs without exclusion and the
	// caller filters in memory, trading query complexity for transfer
	// volume.
	inlineExclusionMax int
	fetchLimit         int
}

// NewQueryBuilder constructs a builder with the configured inline-exclusion
// threshold and fetch limit.
func NewQueryBuilder(inlineExclusionMax, fetchLimit int) *QueryBuilder {
	return &QueryBuilder{
		inlineExclusionMax: inlineExclusionMax,
		fetchLimit:         fetchLimit,
	}
}

// Build assembles the predicate. The requesting user is always excluded.
func (qb *QueryBuilder) Build(req *TripRequest, requestingUserID int64, excluded []int64) *CandidateQuery {
	q := &CandidateQuery{Limit: qb.fetchLimit}

	q.addClause("user_id <> %s", requestingUserID)

	if len(excluded) > 0 {
		if len(excluded) <= qb.inlineExclusionMax {
			for _, id := range excluded {
				q.addClause("user_id <> %s", id)
			}
		} else {
			q.InMemoryExclusion = true
			q.ExcludedIDs = excluded
		}
	}

	hard := req.NonNegotiable

	if len(hard.CountryFrom) > 0 {
		set := make([]string, 0, len(hard.CountryFrom))
		for _, c := range hard.CountryFrom {
			set = append(set, countryAliasSet(c)...)
		}
		q.addClause("LOWER(country_from) = ANY(%s)", pq.Array(set))
	}

	if len(hard.SurfboardTypes) > 0 {
		boards := make([]string, 0, len(hard.SurfboardTypes))
		for _, b := range hard.SurfboardTypes {
			boards = append(boards, strings.ToLower(strings.TrimSpace(b)))
		}
		q.addClause("LOWER(surfboard_type) = ANY(%s)", pq.Array(boards))
	}

	if hard.AgeMin != nil {
		q.addClause("age >= %s", *hard.AgeMin)
	}
	if hard.AgeMax != nil {
		q.addClause("age <= %s", *hard.AgeMax)
	}

	// Pre-computed DB-level filters ride along conjunctively.
	if req.QueryFilters.AgeMin != nil {
		q.addClause("age >= %s", *req.QueryFilters.AgeMin)
	}
	if req.QueryFilters.AgeMax != nil {
		q.addClause("age <= %s", *req.QueryFilters.AgeMax)
	}

	// The two surf-level filter modes are mutually exclusive: category
	// membership wins whenever categories are present, the legacy numeric
	// bounds apply only when they are not.
	if hard.SurfLevel.IsCategoryMode() {
		cats := make([]string, 0, len(hard.SurfLevel.Categories))
		for _, c := range hard.SurfLevel.Categories {
			cats = append(cats, strings.ToLower(strings.TrimSpace(c)))
		}
		q.addClause("LOWER(surf_level_category) = ANY(%s)", pq.Array(cats))
	} else if !hard.SurfLevel.IsEmpty() {
		if hard.SurfLevel.Min != nil {
			q.addClause("surf_level >= %s", *hard.SurfLevel.Min)
		}
		if hard.SurfLevel.Max != nil {
			q.addClause("surf_level <= %s", *hard.SurfLevel.Max)
		}
	}

	return q
}

// addClause appends a clause, substituting %s with the next positional
// placeholder.
func (q *CandidateQuery) addClause(clause string, arg interface{}) {
	q.Args = append(q.Args, arg)
	q.Clauses = append(q.Clauses, fmt.Sprintf(clause, fmt.Sprintf("$%d", len(q.Args))))
}
