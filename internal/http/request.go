package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tuanvumaihuynh/inventory-count/internal/apperr"
	"github.com/tuanvumaihuynh/inventory-count/pkg/validator"
)

// maxJSONBody caps small JSON request bodies.
const maxJSONBody = 1 << 16

func apiValidationErr(err error) error {
	if validator.IsValidationError(err) {
		return apperr.ValidationErr.WrapParent(err)
	}
	return apperr.ValidationErr.WithMsg(err.Error()).WrapParent(err)
}

// decodeJSON reads a JSON body into dst and validates it.
func (s *Service) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}

	return s.validator.Validate(dst)
}
