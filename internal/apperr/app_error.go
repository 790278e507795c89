package apperr

import "github.com/tuanvumaihuynh/inventory-count/pkg/zerror"

const (
	ValidationErrorCode    = "VALIDATION_FAILED"
	InvalidQuantityCode    = "INVALID_QUANTITY"
	ProductNotFoundCode    = "PRODUCT_NOT_FOUND"
	LineNotFoundCode       = "LINE_NOT_FOUND"
	ImportTooLargeCode     = "IMPORT_TOO_LARGE"
	ImportFailedCode       = "IMPORT_FAILED"
	PersistenceFailureCode = "PERSISTENCE_FAILED"
)

var (
	ValidationErr      = zerror.NewValidationFailed(ValidationErrorCode, "validation error")
	InvalidQuantityErr = zerror.NewValidationFailed(InvalidQuantityCode, "quantity must be at least 1")
	ProductNotFoundErr = zerror.NewNotFound(ProductNotFoundCode, "product not found")
	LineNotFoundErr    = zerror.NewNotFound(LineNotFoundCode, "ledger line not found")
	ImportTooLargeErr  = zerror.NewZError(nil, zerror.StatusUnprocessableEntity, ImportTooLargeCode, "catalog file is too large")
	ImportFailedErr    = zerror.NewUnprocessableEntity(ImportFailedCode, "catalog import failed")
	PersistenceErr     = zerror.NewServiceUnavailable(PersistenceFailureCode, "storage is unavailable")
)
