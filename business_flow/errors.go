// Package businessflow contains the core business logic for configuration resolution and price buildup management
package businessflow

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them.
var (
	ErrNotFound               = errors.New("not found")
	ErrValidationFailed       = errors.New("validation failed")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrEncryptionFailure      = errors.New("encryption failure")
)

// Business flow error constants
var (
	// Configuration errors
	ErrConfigurationNotFound      = fmt.Errorf("configuration %w", ErrNotFound)
	ErrConfigurationAlreadyExists = fmt.Errorf("configuration already exists for key, tenant and module: %w", ErrConflict)
	ErrConfigurationKeyRequired   = fmt.Errorf("configuration key is required: %w", ErrValidationFailed)
	ErrConfigurationNameRequired  = fmt.Errorf("configuration name is required: %w", ErrValidationFailed)
	ErrInvalidModule              = fmt.Errorf("module is invalid: %w", ErrValidationFailed)
	ErrInvalidConfigurationType   = fmt.Errorf("configuration type is invalid: %w", ErrValidationFailed)
	ErrInvalidDataType            = fmt.Errorf("data type is invalid: %w", ErrValidationFailed)
	ErrInvalidConfigurationStatus = fmt.Errorf("configuration status is invalid: %w", ErrValidationFailed)
	ErrValueRequired              = fmt.Errorf("value is required: %w", ErrValidationFailed)
	ErrInvalidNumber              = fmt.Errorf("value must be a number: %w", ErrValidationFailed)
	ErrNumberOutOfRange           = fmt.Errorf("value is out of range: %w", ErrValidationFailed)
	ErrInvalidBoolean             = fmt.Errorf("value must be true or false: %w", ErrValidationFailed)
	ErrInvalidJSON                = fmt.Errorf("value must be valid JSON: %w", ErrValidationFailed)
	ErrValueNotAllowed            = fmt.Errorf("value is not one of the allowed values: %w", ErrValidationFailed)
	ErrPatternMismatch            = fmt.Errorf("value does not match the required pattern: %w", ErrValidationFailed)
	ErrInvalidArray               = fmt.Errorf("value must be an array: %w", ErrValidationFailed)
	ErrInvalidDate                = fmt.Errorf("value must be a date: %w", ErrValidationFailed)
	ErrInvalidPercentage          = fmt.Errorf("feature flag percentage must be between 0 and 100: %w", ErrValidationFailed)
	ErrEncryptorNotConfigured     = fmt.Errorf("encryptor is not configured: %w", ErrEncryptionFailure)

	// Price buildup errors
	ErrBuildupVersionNotFound       = fmt.Errorf("price buildup version %w", ErrNotFound)
	ErrNoActiveBuildupForDate       = fmt.Errorf("no active price buildup covers the requested date: %w", ErrNotFound)
	ErrBuildupVersionOverlap        = fmt.Errorf("price buildup effective period overlaps an existing version: %w", ErrConflict)
	ErrBuildupNotModifiable         = fmt.Errorf("price buildup version can only be modified while draft or pending approval: %w", ErrInvalidStateTransition)
	ErrBuildupNotApprovable         = fmt.Errorf("price buildup version can only be approved from draft or pending approval: %w", ErrInvalidStateTransition)
	ErrBuildupNotPublishable        = fmt.Errorf("price buildup version must be active to be published: %w", ErrInvalidStateTransition)
	ErrBuildupAlreadyPublished      = fmt.Errorf("price buildup version is already published: %w", ErrInvalidStateTransition)
	ErrInvalidProductType           = fmt.Errorf("product type is invalid: %w", ErrValidationFailed)
	ErrInvalidStationType           = fmt.Errorf("station type is invalid: %w", ErrValidationFailed)
	ErrInvalidComponentCategory     = fmt.Errorf("component category is invalid: %w", ErrValidationFailed)
	ErrComponentsRequired           = fmt.Errorf("at least one price component is required: %w", ErrValidationFailed)
	ErrPercentageBaseRequired       = fmt.Errorf("percentage component must name a percentage base: %w", ErrValidationFailed)
	ErrPercentageBaseNotResolvable  = fmt.Errorf("percentage base must be a component with a lower display order: %w", ErrValidationFailed)
	ErrExpiryBeforeEffective        = fmt.Errorf("expiry date must be after effective date: %w", ErrValidationFailed)
	ErrMinAmountAboveMaxAmount      = fmt.Errorf("min amount cannot exceed max amount: %w", ErrValidationFailed)
	ErrStartDateAfterEndDate        = fmt.Errorf("start date cannot be after end date: %w", ErrValidationFailed)
	ErrImportMissingRequiredColumns = fmt.Errorf("import sheet is missing required columns: %w", ErrValidationFailed)
	ErrImportNoRows                 = fmt.Errorf("import sheet has no component rows: %w", ErrValidationFailed)

	// Filter errors
	ErrInvalidPage     = fmt.Errorf("page must be at least 1: %w", ErrValidationFailed)
	ErrInvalidPageSize = fmt.Errorf("page size must be between 1 and 100: %w", ErrValidationFailed)
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsInvalidStateTransition(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition)
}

func IsEncryptionFailure(err error) bool {
	return errors.Is(err, ErrEncryptionFailure)
}

func IsConfigurationNotFound(err error) bool {
	return errors.Is(err, ErrConfigurationNotFound)
}

func IsConfigurationAlreadyExists(err error) bool {
	return errors.Is(err, ErrConfigurationAlreadyExists)
}

func IsBuildupVersionNotFound(err error) bool {
	return errors.Is(err, ErrBuildupVersionNotFound)
}

func IsNoActiveBuildupForDate(err error) bool {
	return errors.Is(err, ErrNoActiveBuildupForDate)
}

func IsBuildupVersionOverlap(err error) bool {
	return errors.Is(err, ErrBuildupVersionOverlap)
}

func IsBuildupNotModifiable(err error) bool {
	return errors.Is(err, ErrBuildupNotModifiable)
}

func IsBuildupAlreadyPublished(err error) bool {
	return errors.Is(err, ErrBuildupAlreadyPublished)
}

func IsPercentageBaseNotResolvable(err error) bool {
	return errors.Is(err, ErrPercentageBaseNotResolvable)
}

// ErrorCode maps an error to its category code, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	var be *BusinessError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	switch {
	case IsNotFound(err):
		return "NOT_FOUND"
	case IsValidationFailed(err):
		return "VALIDATION_FAILED"
	case IsConflict(err):
		return "CONFLICT"
	case IsInvalidStateTransition(err):
		return "INVALID_STATE_TRANSITION"
	case IsEncryptionFailure(err):
		return "ENCRYPTION_FAILURE"
	default:
		return "INTERNAL_ERROR"
	}
}
