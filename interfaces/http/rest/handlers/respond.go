// Package handlers implements the REST endpoints over the document and article stores.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	appErrors "concept-tree/pkg/errors"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies; a graph document is the largest payload
const maxBodyBytes = 4 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decode reads a JSON body into dst and validates it
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return appErrors.NewValidationError(fmt.Sprintf("invalid request body: %v", err))
	}
	if err := v.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return appErrors.NewValidationError(err.Error())
	}
	fields := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return appErrors.NewValidationError("request validation failed").WithDetails(fields)
}
