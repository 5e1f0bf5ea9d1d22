package businessflow

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/fuel-pricing-config/app/dto"
	"github.com/amirphl/fuel-pricing-config/config"
	"github.com/amirphl/fuel-pricing-config/models"
	"github.com/amirphl/fuel-pricing-config/repository"
	"github.com/amirphl/fuel-pricing-config/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Sheet columns, in template order
const (
	colComponentType       = "component_type"
	colComponentName       = "component_name"
	colCategory            = "category"
	colAmount              = "amount"
	colIsPercentage        = "is_percentage"
	colPercentageBase      = "percentage_base"
	colStationType         = "station_type"
	colDisplayOrder        = "display_order"
	colMinAmount           = "min_amount"
	colMaxAmount           = "max_amount"
	colEffectiveDate       = "effective_date"
	colExpiryDate          = "expiry_date"
	colDescription         = "description"
	colRegulatoryReference = "regulatory_reference"
)

var componentSheetHeader = []string{
	colComponentType,
	colComponentName,
	colCategory,
	colAmount,
	colIsPercentage,
	colPercentageBase,
	colStationType,
	colDisplayOrder,
	colMinAmount,
	colMaxAmount,
	colEffectiveDate,
	colExpiryDate,
	colDescription,
	colRegulatoryReference,
}

var requiredComponentColumns = []string{colComponentType, colComponentName, colCategory, colAmount}

// PriceImportFlow moves price components between spreadsheets and buildup versions
type PriceImportFlow interface {
	ParseComponents(r io.Reader) ([]dto.PriceComponentInput, []dto.ImportRowError, error)
	ImportBuildup(ctx context.Context, req *dto.ImportPriceBuildupRequest, r io.Reader, actor string) (*dto.ImportPriceBuildupResponse, error)
	ExportComponents(ctx context.Context, versionID uint) (string, []byte, error)
}

// PriceImportFlowImpl implements PriceImportFlow
type PriceImportFlowImpl struct {
	buildups    PriceBuildupFlow
	versionRepo repository.PriceBuildupVersionRepository
	storeConfig config.StoreConfig
}

// NewPriceImportFlow creates a new price import flow instance
func NewPriceImportFlow(buildups PriceBuildupFlow, versionRepo repository.PriceBuildupVersionRepository, storeConfig config.StoreConfig) PriceImportFlow {
	return &PriceImportFlowImpl{buildups: buildups, versionRepo: versionRepo, storeConfig: storeConfig}
}

// normalizeHeader maps "Component Type", "componentType" and "component_type" to the same column
func normalizeHeader(h string) string {
	h = strings.TrimSpace(h)
	var b strings.Builder
	for i, r := range h {
		switch {
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('_')
		case r >= 'A' && r <= 'Z':
			if i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), "_") && h[i-1] >= 'a' && h[i-1] <= 'z' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseComponents reads component rows from the first sheet. Row numbers in the returned
// errors are spreadsheet rows, starting at 2 for the first data row.
func (f *PriceImportFlowImpl) ParseComponents(r io.Reader) ([]dto.PriceComponentInput, []dto.ImportRowError, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, NewBusinessError("IMPORT_READ_FAILED", "Failed to parse Excel file", fmt.Errorf("%w: %w", ErrValidationFailed, err))
	}
	defer func() { _ = xl.Close() }()

	sheetName := xl.GetSheetName(0)
	if sheetName == "" {
		return nil, nil, NewBusinessError("IMPORT_NO_ROWS", "Excel file has no sheets", ErrImportNoRows)
	}
	rows, err := xl.GetRows(sheetName)
	if err != nil {
		return nil, nil, NewBusinessError("IMPORT_READ_FAILED", "Failed to read rows", fmt.Errorf("%w: %w", ErrValidationFailed, err))
	}
	if len(rows) < 2 {
		return nil, nil, NewBusinessError("IMPORT_NO_ROWS", "Excel file has no component rows", ErrImportNoRows)
	}

	headerMap := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		if name := normalizeHeader(h); name != "" {
			headerMap[name] = i
		}
	}
	var missing []string
	for _, col := range requiredComponentColumns {
		if _, ok := headerMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, nil, NewBusinessErrorf("IMPORT_MISSING_COLUMNS", "Missing columns: %s", ErrImportMissingRequiredColumns, strings.Join(missing, ", "))
	}

	inputs := make([]dto.PriceComponentInput, 0, len(rows)-1)
	var rowErrors []dto.ImportRowError
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		cell := func(col string) string {
			i, ok := headerMap[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if isBlankRow(row) {
			continue
		}
		in, errs := parseComponentRow(rowIdx+1, len(inputs), cell)
		if len(errs) > 0 {
			rowErrors = append(rowErrors, errs...)
			continue
		}
		inputs = append(inputs, in)
	}
	if len(inputs) == 0 && len(rowErrors) == 0 {
		return nil, nil, NewBusinessError("IMPORT_NO_ROWS", "Excel file has no component rows", ErrImportNoRows)
	}
	return inputs, rowErrors, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseComponentRow(rowNum, position int, cell func(string) string) (dto.PriceComponentInput, []dto.ImportRowError) {
	var errs []dto.ImportRowError
	fail := func(field, msg string) {
		errs = append(errs, dto.ImportRowError{Row: rowNum, Field: field, Message: msg})
	}

	in := dto.PriceComponentInput{
		ComponentType: strings.ToUpper(cell(colComponentType)),
		ComponentName: cell(colComponentName),
		Category:      strings.ToUpper(cell(colCategory)),
		DisplayOrder:  (position + 1) * 10,
	}
	for _, col := range requiredComponentColumns {
		if cell(col) == "" {
			fail(col, "is required")
		}
	}
	if in.Category != "" && !models.ComponentCategory(in.Category).Valid() {
		fail(colCategory, fmt.Sprintf("unknown category %q", in.Category))
	}
	if raw := cell(colAmount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			fail(colAmount, fmt.Sprintf("invalid amount %q", raw))
		}
		in.Amount = amount
	}
	if raw := cell(colIsPercentage); raw != "" {
		switch strings.ToLower(raw) {
		case "true", "yes", "1", "y":
			in.IsPercentage = true
		case "false", "no", "0", "n":
		default:
			fail(colIsPercentage, fmt.Sprintf("invalid boolean %q", raw))
		}
	}
	if raw := cell(colPercentageBase); raw != "" {
		in.PercentageBase = utils.ToPtr(strings.ToUpper(raw))
	}
	if in.IsPercentage && in.PercentageBase == nil {
		fail(colPercentageBase, "is required for percentage components")
	}
	if raw := cell(colStationType); raw != "" {
		st := models.StationType(strings.ToUpper(raw))
		if !st.Valid() {
			fail(colStationType, fmt.Sprintf("unknown station type %q", raw))
		}
		in.StationType = utils.ToPtr(string(st))
	}
	if raw := cell(colDisplayOrder); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(colDisplayOrder, fmt.Sprintf("invalid display order %q", raw))
		}
		in.DisplayOrder = n
	}
	for _, bound := range []struct {
		col string
		dst **decimal.Decimal
	}{{colMinAmount, &in.MinAmount}, {colMaxAmount, &in.MaxAmount}} {
		raw := cell(bound.col)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fail(bound.col, fmt.Sprintf("invalid amount %q", raw))
			continue
		}
		*bound.dst = &d
	}
	for _, date := range []struct {
		col string
		dst **time.Time
	}{{colEffectiveDate, &in.EffectiveDate}, {colExpiryDate, &in.ExpiryDate}} {
		raw := cell(date.col)
		if raw == "" {
			continue
		}
		t, err := parseSheetDate(raw)
		if err != nil {
			fail(date.col, fmt.Sprintf("invalid date %q", raw))
			continue
		}
		*date.dst = &t
	}
	if raw := cell(colDescription); raw != "" {
		in.Description = &raw
	}
	if raw := cell(colRegulatoryReference); raw != "" {
		in.RegulatoryReference = &raw
	}
	return in, errs
}

func parseSheetDate(raw string) (time.Time, error) {
	for _, layout := range []string{utils.DateLayout, time.RFC3339, "02/01/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// ImportBuildup creates a new buildup version from a component sheet. Nothing is created
// when any row is invalid; the row errors are returned alongside the error.
func (f *PriceImportFlowImpl) ImportBuildup(ctx context.Context, req *dto.ImportPriceBuildupRequest, r io.Reader, actor string) (*dto.ImportPriceBuildupResponse, error) {
	if req == nil {
		return nil, NewBusinessError("INVALID_REQUEST", "request is required", ErrValidationFailed)
	}
	inputs, rowErrors, err := f.ParseComponents(r)
	if err != nil {
		return nil, err
	}
	if len(rowErrors) > 0 {
		return &dto.ImportPriceBuildupResponse{RowErrors: rowErrors},
			NewBusinessErrorf("IMPORT_ROWS_INVALID", "%d invalid rows in import", ErrValidationFailed, len(rowErrors))
	}

	version, err := f.buildups.Create(ctx, &dto.CreatePriceBuildupRequest{
		ProductType:   req.ProductType,
		EffectiveDate: req.EffectiveDate,
		ExpiryDate:    req.ExpiryDate,
		Status:        req.Status,
		ChangeReason:  req.ChangeReason,
		Notes:         req.Notes,
		Components:    inputs,
	}, actor)
	if err != nil {
		return nil, err
	}
	return &dto.ImportPriceBuildupResponse{Version: version}, nil
}

// ExportComponents writes a version's components in the import layout
func (f *PriceImportFlowImpl) ExportComponents(ctx context.Context, versionID uint) (string, []byte, error) {
	sctx, cancel := withStoreTimeout(ctx, f.storeConfig.Timeout)
	defer cancel()
	version, err := f.versionRepo.ByIDWithDetails(sctx, versionID)
	if err != nil {
		return "", nil, NewBusinessError("BUILDUP_LOOKUP_FAILED", "Failed to load price buildup", err)
	}
	if version == nil {
		return "", nil, NewBusinessErrorf("BUILDUP_NOT_FOUND", "Price buildup version %d not found", ErrBuildupVersionNotFound, versionID)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	name := string(version.ProductType)
	xl.SetSheetName(xl.GetSheetName(0), name)
	header := append([]string(nil), componentSheetHeader...)
	_ = xl.SetSheetRow(name, "A1", &header)

	for ri, c := range version.Components {
		record := []string{
			string(c.ComponentType),
			c.ComponentName,
			string(c.Category),
			c.Amount.String(),
			strconv.FormatBool(c.IsPercentage),
			"",
			"",
			strconv.Itoa(c.DisplayOrder),
			decimalCell(c.MinAmount),
			decimalCell(c.MaxAmount),
			dateCell(c.EffectiveDate),
			dateCell(c.ExpiryDate),
			utils.StringOrEmpty(c.Description),
			utils.StringOrEmpty(c.RegulatoryRef),
		}
		if c.PercentageBase != nil {
			record[5] = string(*c.PercentageBase)
		}
		if c.StationType != nil {
			record[6] = string(*c.StationType)
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(name, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("price_buildup_%s_v%d.xlsx", strings.ToLower(string(version.ProductType)), version.VersionNumber)
	return filename, buf.Bytes(), nil
}

func decimalCell(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func dateCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(utils.DateLayout)
}
