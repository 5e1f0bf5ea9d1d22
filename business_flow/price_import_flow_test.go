package businessflow_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	businessflow "github.com/amirphl/fuel-pricing-config/business_flow"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	testingutil "github.com/amirphl/fuel-pricing-config/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sheetHeader = []any{"Component Type", "Component Name", "Category", "Amount", "Is Percentage", "Percentage Base", "Display Order"}

func sheet(t *testing.T, rows ...[]any) *bytes.Reader {
	t.Helper()
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, xl.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := xl.WriteToBuffer()
	require.NoError(t, err)
	return bytes.NewReader(buf.Bytes())
}

func petrolSheet(t *testing.T) *bytes.Reader {
	return sheet(t,
		sheetHeader,
		[]any{"ex_refinery_price", "Ex-Refinery Price", "base_price", "10", "no", "", "10"},
		[]any{"ROAD_FUND_LEVY", "Road Fund Levy", "TAX_LEVY", "0.48", "", "", "20"},
		[]any{"", "", "", "", "", "", ""},
		[]any{"VAT", "VAT", "TAX_LEVY", "15", "yes", "ex_refinery_price", "50"},
	)
}

func newImportFlow(f *buildupFixture) businessflow.PriceImportFlow {
	return businessflow.NewPriceImportFlow(f.buildups, f.versions, config.StoreConfig{Timeout: time.Second})
}

func TestParseComponents(t *testing.T) {
	t.Run("reads rows and skips blank ones", func(t *testing.T) {
		inputs, rowErrors, err := newImportFlow(newBuildupFixture(t)).ParseComponents(petrolSheet(t))
		require.NoError(t, err)
		assert.Empty(t, rowErrors)
		require.Len(t, inputs, 3)

		assert.Equal(t, string(models.ComponentExRefineryPrice), inputs[0].ComponentType)
		assert.Equal(t, string(models.CategoryBasePrice), inputs[0].Category)
		assertDecimal(t, "10", inputs[0].Amount)
		assert.False(t, inputs[0].IsPercentage)

		vat := inputs[2]
		assert.True(t, vat.IsPercentage)
		require.NotNil(t, vat.PercentageBase)
		assert.Equal(t, string(models.ComponentExRefineryPrice), *vat.PercentageBase)
		assert.Equal(t, 50, vat.DisplayOrder)
	})

	t.Run("display order defaults to row position", func(t *testing.T) {
		r := sheet(t,
			[]any{"componentType", "componentName", "category", "amount"},
			[]any{"EX_REFINERY_PRICE", "Ex-Refinery Price", "BASE_PRICE", "10"},
			[]any{"MARKETERS_MARGIN", "Marketers Margin", "MARGIN", "0.75"},
		)
		inputs, _, err := newImportFlow(newBuildupFixture(t)).ParseComponents(r)
		require.NoError(t, err)
		require.Len(t, inputs, 2)
		assert.Equal(t, 10, inputs[0].DisplayOrder)
		assert.Equal(t, 20, inputs[1].DisplayOrder)
	})

	t.Run("reports row errors with sheet row numbers", func(t *testing.T) {
		r := sheet(t,
			sheetHeader,
			[]any{"EX_REFINERY_PRICE", "Ex-Refinery Price", "BASE_PRICE", "10", "", "", "10"},
			[]any{"LEVY", "Levy", "FEE", "ten", "", "", "20"},
			[]any{"VAT", "VAT", "TAX_LEVY", "15", "maybe", "", "x"},
		)
		inputs, rowErrors, err := newImportFlow(newBuildupFixture(t)).ParseComponents(r)
		require.NoError(t, err)
		assert.Len(t, inputs, 1)

		fields := map[int][]string{}
		for _, e := range rowErrors {
			fields[e.Row] = append(fields[e.Row], e.Field)
		}
		assert.ElementsMatch(t, []string{"category", "amount"}, fields[3])
		assert.ElementsMatch(t, []string{"is_percentage", "display_order"}, fields[4])
	})

	t.Run("missing required columns", func(t *testing.T) {
		r := sheet(t,
			[]any{"Component Type", "Amount"},
			[]any{"EX_REFINERY_PRICE", "10"},
		)
		_, _, err := newImportFlow(newBuildupFixture(t)).ParseComponents(r)
		require.ErrorIs(t, err, businessflow.ErrImportMissingRequiredColumns)
		assert.Contains(t, err.Error(), "component_name")
		assert.Contains(t, err.Error(), "category")
	})

	t.Run("header without rows", func(t *testing.T) {
		_, _, err := newImportFlow(newBuildupFixture(t)).ParseComponents(sheet(t, sheetHeader))
		assert.ErrorIs(t, err, businessflow.ErrImportNoRows)
	})

	t.Run("not a spreadsheet", func(t *testing.T) {
		_, _, err := newImportFlow(newBuildupFixture(t)).ParseComponents(strings.NewReader("component_type,amount\nVAT,15\n"))
		require.Error(t, err)
		assert.True(t, businessflow.IsValidationFailed(err))
		assert.Equal(t, "IMPORT_READ_FAILED", businessflow.ErrorCode(err))
	})
}

func TestImportBuildup(t *testing.T) {
	ctx := context.Background()
	req := &dto.ImportPriceBuildupRequest{
		ProductType:   string(models.ProductTypePetrol),
		EffectiveDate: testingutil.Date(2025, time.January, 1),
	}

	t.Run("creates a version from the sheet", func(t *testing.T) {
		f := newBuildupFixture(t)
		resp, err := newImportFlow(f).ImportBuildup(ctx, req, petrolSheet(t), "alice")
		require.NoError(t, err)
		require.NotNil(t, resp.Version)
		assert.Empty(t, resp.RowErrors)
		assert.Equal(t, 1, resp.Version.VersionNumber)
		assert.Len(t, resp.Version.Components, 3)
		assertDecimal(t, "25.48", resp.Version.TotalPrice)
	})

	t.Run("invalid rows create nothing", func(t *testing.T) {
		f := newBuildupFixture(t)
		r := sheet(t,
			sheetHeader,
			[]any{"EX_REFINERY_PRICE", "Ex-Refinery Price", "BASE_PRICE", "10", "", "", "10"},
			[]any{"VAT", "VAT", "TAX_LEVY", "15", "yes", "", "50"},
		)
		resp, err := newImportFlow(f).ImportBuildup(ctx, req, r, "alice")
		require.Error(t, err)
		assert.True(t, businessflow.IsValidationFailed(err))
		require.NotNil(t, resp)
		require.Len(t, resp.RowErrors, 1)
		assert.Equal(t, 3, resp.RowErrors[0].Row)
		assert.Equal(t, "percentage_base", resp.RowErrors[0].Field)
		assert.Zero(t, f.store.Calls(testingutil.OpVersionSave))
	})

	t.Run("creation rules still apply", func(t *testing.T) {
		f := newBuildupFixture(t)
		r := sheet(t,
			sheetHeader,
			[]any{"VAT", "VAT", "TAX_LEVY", "15", "yes", "EX_REFINERY_PRICE", "5"},
			[]any{"EX_REFINERY_PRICE", "Ex-Refinery Price", "BASE_PRICE", "10", "", "", "10"},
		)
		_, err := newImportFlow(f).ImportBuildup(ctx, req, r, "alice")
		assert.True(t, businessflow.IsPercentageBaseNotResolvable(err))
	})
}

func TestExportComponents(t *testing.T) {
	ctx := context.Background()
	f := newBuildupFixture(t)
	created := f.create(t, buildupRequest(models.ProductTypePetrol, testingutil.Date(2025, time.January, 1), nil, testingutil.StandardPetrolComponents()...))
	flow := newImportFlow(f)

	filename, content, err := flow.ExportComponents(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "price_buildup_petrol_v1.xlsx", filename)

	inputs, rowErrors, err := flow.ParseComponents(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Empty(t, rowErrors)
	require.Len(t, inputs, len(created.Components))
	for i, c := range created.Components {
		assert.Equal(t, c.ComponentType, inputs[i].ComponentType)
		assert.Equal(t, c.DisplayOrder, inputs[i].DisplayOrder)
		assertDecimal(t, c.Amount.String(), inputs[i].Amount)
	}
	require.NotNil(t, inputs[4].PercentageBase)
	assert.Equal(t, string(models.ComponentExRefineryPrice), *inputs[4].PercentageBase)

	_, _, err = flow.ExportComponents(ctx, 99)
	assert.True(t, businessflow.IsBuildupVersionNotFound(err))
}
