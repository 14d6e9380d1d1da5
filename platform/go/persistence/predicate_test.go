package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPredicateRenderNumbersPlaceholdersFromStart(t *testing.T) {
	t.Parallel()

	now := time.Now()
	pred := Where("email", OpEq, "a@example.com").
		And("accepted_at", OpIsNull, nil).
		And("expires_at", OpGt, now)

	clause, args, err := pred.render(2)
	require.NoError(t, err)
	require.Equal(t, `"email" = $2 AND "accepted_at" IS NULL AND "expires_at" > $3`, clause)
	require.Equal(t, []any{"a@example.com", now}, args)
}

func TestPredicateRenderEmpty(t *testing.T) {
	t.Parallel()

	clause, args, err := Predicate{}.render(2)
	require.NoError(t, err)
	require.Empty(t, clause)
	require.Empty(t, args)
}

func TestPredicateRenderRejectsInvalidColumn(t *testing.T) {
	t.Parallel()

	_, _, err := Where(`email" OR 1=1 --`, OpEq, "x").render(1)
	require.Error(t, err)

	_, _, err = Where("Email", OpEq, "x").render(1)
	require.Error(t, err)
}

func TestPredicateRenderRejectsUnknownOperator(t *testing.T) {
	t.Parallel()

	_, _, err := Where("email", Op("LIKE"), "%x%").render(1)
	require.Error(t, err)
}

func TestPredicateAndDoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := Where("role", OpEq, "member")
	narrowed := base.And("is_primary", OpEq, true)

	baseClause, _, err := base.render(1)
	require.NoError(t, err)
	require.Equal(t, `"role" = $1`, baseClause)

	narrowedClause, _, err := narrowed.render(1)
	require.NoError(t, err)
	require.Equal(t, `"role" = $1 AND "is_primary" = $2`, narrowedClause)
}

func TestNormalizeSlug(t *testing.T) {
	t.Parallel()

	slug, err := NormalizeSlug("  Acme-Clinics  ")
	require.NoError(t, err)
	require.Equal(t, "acme-clinics", slug)

	for _, input := range []string{"", "   ", "-leading", "trailing-", "two--dashes", "spa ce", "under_score"} {
		_, err := NormalizeSlug(input)
		require.Error(t, err, "input %q", input)
	}
}
