package businessflow_test

import (
	"testing"
	"time"

	businessflow "github.com/amirphl/fuel-pricing-config/business_flow"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKind(t *testing.T, dt models.DataType) businessflow.ValueKind {
	t.Helper()
	kind, err := businessflow.KindOf(dt)
	require.NoError(t, err)
	return kind
}

func TestValueKindParse(t *testing.T) {
	t.Run("number", func(t *testing.T) {
		v, err := mustKind(t, models.DataTypeNumber).Parse(" 12.5 ")
		require.NoError(t, err)
		assert.Equal(t, 12.5, v)

		_, err = mustKind(t, models.DataTypeNumber).Parse("twelve")
		assert.ErrorIs(t, err, businessflow.ErrInvalidNumber)
	})

	t.Run("boolean", func(t *testing.T) {
		v, err := mustKind(t, models.DataTypeBoolean).Parse("TRUE")
		require.NoError(t, err)
		assert.Equal(t, true, v)

		v, err = mustKind(t, models.DataTypeBoolean).Parse("yes")
		require.NoError(t, err)
		assert.Equal(t, false, v)
	})

	t.Run("json", func(t *testing.T) {
		v, err := mustKind(t, models.DataTypeJSON).Parse(`{"a":1,"b":[true]}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": float64(1), "b": []any{true}}, v)

		_, err = mustKind(t, models.DataTypeJSON).Parse(`{"a":`)
		assert.ErrorIs(t, err, businessflow.ErrInvalidJSON)
	})

	t.Run("array accepts json and comma separated lists", func(t *testing.T) {
		kind := mustKind(t, models.DataTypeArray)

		v, err := kind.Parse(`["PETROL","DIESEL"]`)
		require.NoError(t, err)
		assert.Equal(t, []any{"PETROL", "DIESEL"}, v)

		v, err = kind.Parse("PETROL, DIESEL ,LPG")
		require.NoError(t, err)
		assert.Equal(t, []any{"PETROL", "DIESEL", "LPG"}, v)

		v, err = kind.Parse("")
		require.NoError(t, err)
		assert.Equal(t, []any{}, v)
	})

	t.Run("date accepts rfc3339 and calendar dates", func(t *testing.T) {
		kind := mustKind(t, models.DataTypeDate)

		v, err := kind.Parse("2025-03-01T10:00:00+02:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC), v)

		v, err = kind.Parse("2025-03-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), v)

		_, err = kind.Parse("01/03/2025")
		assert.ErrorIs(t, err, businessflow.ErrInvalidDate)
	})

	t.Run("unknown data type", func(t *testing.T) {
		_, err := businessflow.KindOf(models.DataType("BLOB"))
		assert.ErrorIs(t, err, businessflow.ErrInvalidDataType)
		assert.True(t, businessflow.IsValidationFailed(err))
	})
}

func TestValidateValue(t *testing.T) {
	number := mustKind(t, models.DataTypeNumber)
	str := mustKind(t, models.DataTypeString)

	tests := []struct {
		name    string
		kind    businessflow.ValueKind
		raw     *string
		c       businessflow.Constraints
		wantErr error
	}{
		{
			name: "empty optional value is accepted",
			kind: number,
			raw:  nil,
		},
		{
			name:    "empty required value is rejected",
			kind:    str,
			raw:     utils.ToPtr("  "),
			c:       businessflow.Constraints{IsRequired: true},
			wantErr: businessflow.ErrValueRequired,
		},
		{
			name: "number inside range",
			kind: number,
			raw:  utils.ToPtr("50"),
			c:    businessflow.Constraints{MinValue: utils.ToPtr(0.0), MaxValue: utils.ToPtr(100.0)},
		},
		{
			name:    "number above maximum",
			kind:    number,
			raw:     utils.ToPtr("150"),
			c:       businessflow.Constraints{MinValue: utils.ToPtr(0.0), MaxValue: utils.ToPtr(100.0)},
			wantErr: businessflow.ErrNumberOutOfRange,
		},
		{
			name:    "number below minimum",
			kind:    number,
			raw:     utils.ToPtr("-1"),
			c:       businessflow.Constraints{MinValue: utils.ToPtr(0.0)},
			wantErr: businessflow.ErrNumberOutOfRange,
		},
		{
			name:    "not a number",
			kind:    number,
			raw:     utils.ToPtr("abc"),
			wantErr: businessflow.ErrInvalidNumber,
		},
		{
			name:    "string outside allowed values",
			kind:    str,
			raw:     utils.ToPtr("EUR"),
			c:       businessflow.Constraints{AllowedValues: []string{"GHS", "USD"}},
			wantErr: businessflow.ErrValueNotAllowed,
		},
		{
			name: "string matching pattern",
			kind: str,
			raw:  utils.ToPtr("GHS"),
			c:    businessflow.Constraints{RegexPattern: utils.ToPtr(`^[A-Z]{3}$`)},
		},
		{
			name:    "string not matching pattern",
			kind:    str,
			raw:     utils.ToPtr("ghs"),
			c:       businessflow.Constraints{RegexPattern: utils.ToPtr(`^[A-Z]{3}$`)},
			wantErr: businessflow.ErrPatternMismatch,
		},
		{
			name:    "invalid boolean",
			kind:    mustKind(t, models.DataTypeBoolean),
			raw:     utils.ToPtr("maybe"),
			wantErr: businessflow.ErrInvalidBoolean,
		},
		{
			name:    "invalid json",
			kind:    mustKind(t, models.DataTypeJSON),
			raw:     utils.ToPtr("{"),
			wantErr: businessflow.ErrInvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := businessflow.ValidateValue(tt.kind, tt.raw, tt.c)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, businessflow.IsValidationFailed(err))
		})
	}
}

func TestValueKindSerialize(t *testing.T) {
	s, err := mustKind(t, models.DataTypeNumber).Serialize(42)
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	s, err = mustKind(t, models.DataTypeBoolean).Serialize("TRUE")
	require.NoError(t, err)
	assert.Equal(t, "true", s)

	s, err = mustKind(t, models.DataTypeJSON).Serialize(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, s)

	s, err = mustKind(t, models.DataTypeDate).Serialize(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01T00:00:00Z", s)

	_, err = mustKind(t, models.DataTypeBoolean).Serialize(1)
	assert.ErrorIs(t, err, businessflow.ErrInvalidBoolean)
}
