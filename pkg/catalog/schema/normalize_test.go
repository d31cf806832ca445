package schema

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	catalogerrors "github.com/gamedex/catalog-cache/pkg/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

func TestThatNormalizeFlattensNestedReferences(t *testing.T) {
	is := is.New(t)

	payload := types.Record{
		"id":   "r1",
		"body": "a modern classic",
		"game": map[string]any{"id": float64(42), "title": "Outer Wilds"},
		"user": map[string]any{"id": "u7", "username": "sam"},
	}

	n, err := Normalize(Default(), types.Review, []types.Record{payload})
	is.NoErr(err)

	is.Equal(n.Result, []types.Key{types.NewKey(types.Review, "r1")})

	review := n.Entities[types.NewKey(types.Review, "r1")]
	gameID, ok := review.Reference("game")
	is.True(ok)
	is.Equal(gameID, types.Identifier("42")) // the nested game should be rewritten to its id

	game := n.Entities[types.NewKey(types.Game, "42")]
	is.Equal(game.Text("title"), "Outer Wilds") // the nested game should be lifted into the entity map

	user := n.Entities[types.NewKey(types.User, "u7")]
	is.Equal(user.Text("username"), "sam")
}

func TestThatNormalizeFlattensArrayReferences(t *testing.T) {
	is := is.New(t)

	payload := types.Record{
		"id": "r1",
		"comments": []any{
			map[string]any{"id": "c1", "body": "agreed"},
			"c2",
		},
	}

	n, err := Normalize(Default(), types.Review, []types.Record{payload})
	is.NoErr(err)

	review := n.Entities[types.NewKey(types.Review, "r1")]
	is.Equal(review.References("comments"), []types.Identifier{"c1", "c2"}) // both nested and raw ids should normalize

	comment := n.Entities[types.NewKey(types.Comment, "c1")]
	is.Equal(comment.Text("body"), "agreed")

	_, lifted := n.Entities[types.NewKey(types.Comment, "c2")]
	is.True(!lifted) // a raw id carries no record to lift
}

func TestThatNormalizeIsAllOrNothing(t *testing.T) {
	is := is.New(t)

	payloads := []types.Record{
		{"id": "1", "title": "first"},
		{"title": "second but missing its id"},
	}

	n, err := Normalize(Default(), types.Game, payloads)
	is.True(errors.Is(err, catalogerrors.ErrNormalization))
	is.True(n == nil) // no partial output should escape a failed normalization
}

func TestThatNormalizeMergesDuplicateEntities(t *testing.T) {
	is := is.New(t)

	payloads := []types.Record{
		{"id": "r1", "game": map[string]any{"id": "g1", "title": "Hades"}},
		{"id": "r2", "game": map[string]any{"id": "g1", "year": float64(2020)}},
	}

	n, err := Normalize(Default(), types.Review, payloads)
	is.NoErr(err)

	game := n.Entities[types.NewKey(types.Game, "g1")]
	is.Equal(game.Text("title"), "Hades") // fields from the first occurrence should survive
	is.Equal(game.Int("year"), 2020)      // fields from the second occurrence should be merged in
}

func TestThatNormalizeRejectsMalformedReferences(t *testing.T) {
	is := is.New(t)

	payload := types.Record{
		"id":   "r1",
		"game": []any{"not", "an", "object"},
	}

	_, err := Normalize(Default(), types.Review, []types.Record{payload})
	is.True(errors.Is(err, catalogerrors.ErrNormalization))
}

func TestThatNormalizeLeavesUnknownFieldsAlone(t *testing.T) {
	is := is.New(t)

	payload := types.Record{
		"id":       "g1",
		"metadata": map[string]any{"platform": "pc"},
	}

	n, err := NormalizeOne(Default(), types.Game, payload)
	is.NoErr(err)

	game := n.Entities[types.NewKey(types.Game, "g1")]
	_, isMap := game["metadata"].(map[string]any)
	is.True(isMap) // fields outside the schema should pass through untouched
}
