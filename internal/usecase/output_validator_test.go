package usecase_test

import (
	"testing"

	"asset-orchestrator/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOutputValidator_Validate(t *testing.T) {
	idA := uuid.New()
	idB := uuid.New()
	candidates := []usecase.Candidate{
		{AssetID: idA},
		{AssetID: idB},
	}

	validator := usecase.NewOutputValidator()

	t.Run("valid response", func(t *testing.T) {
		raw := `{"message":"Found two matching shots.","items":[{"asset_id":"` + idA.String() + `","reason":"closest match"},{"asset_id":"` + idB.String() + `"}]}`
		result, err := validator.Validate(raw, candidates)
		assert.NoError(t, err)
		assert.Equal(t, "Found two matching shots.", result.Message)
		assert.Len(t, result.Items, 2)
	})

	t.Run("empty items with message is valid", func(t *testing.T) {
		raw := `{"message":"Sorry, nothing in the library matches that.","items":[]}`
		result, err := validator.Validate(raw, candidates)
		assert.NoError(t, err)
		assert.Empty(t, result.Items)
	})

	t.Run("empty response", func(t *testing.T) {
		_, err := validator.Validate("   ", candidates)
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := validator.Validate(`{"message": "truncated`, candidates)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse")
	})

	t.Run("missing message", func(t *testing.T) {
		raw := `{"message":"  ","items":[]}`
		_, err := validator.Validate(raw, candidates)
		assert.Error(t, err)
	})

	t.Run("fabricated asset id", func(t *testing.T) {
		raw := `{"message":"ok","items":[{"asset_id":"` + uuid.NewString() + `"}]}`
		_, err := validator.Validate(raw, candidates)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown asset")
	})

	t.Run("duplicate asset id", func(t *testing.T) {
		raw := `{"message":"ok","items":[{"asset_id":"` + idA.String() + `"},{"asset_id":"` + idA.String() + `"}]}`
		_, err := validator.Validate(raw, candidates)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "more than once")
	})

	t.Run("item missing asset id", func(t *testing.T) {
		raw := `{"message":"ok","items":[{"reason":"no id"}]}`
		_, err := validator.Validate(raw, candidates)
		assert.Error(t, err)
	})
}
