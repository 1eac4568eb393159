package server

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// CreateSessionRequest opens a session.
type CreateSessionRequest struct {
	Category string `json:"category" validate:"omitempty,max=64"`
	Identity string `json:"identity" validate:"omitempty,max=128"`
}

// ActionRequest is the body of every session action. Only the fields the
// action reads need to be set.
type ActionRequest struct {
	Query     string `json:"query" validate:"omitempty,max=500"`
	Index     *int   `json:"index" validate:"omitempty,min=0,max=2"`
	Title     string `json:"title" validate:"omitempty,max=300"`
	Rating    *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	Category  string `json:"category" validate:"omitempty,max=64"`
	SubFilter string `json:"sub_filter" validate:"omitempty,max=64"`
	Identity  string `json:"identity" validate:"omitempty,max=128"`
	Search    string `json:"search" validate:"omitempty,max=200"`
}

// Params converts the request into action parameters.
func (r *ActionRequest) Params() map[string]any {
	params := map[string]any{}
	set := func(key, value string) {
		if value != "" {
			params[key] = value
		}
	}
	set("query", r.Query)
	set("title", r.Title)
	set("category", r.Category)
	set("sub_filter", r.SubFilter)
	set("identity", r.Identity)
	set("search", r.Search)
	if r.Index != nil {
		params["index"] = *r.Index
	}
	if r.Rating != nil {
		params["rating"] = *r.Rating
	}
	return params
}

// validateStruct returns the first failing field as a ValidationError.
func validateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		field := strings.ToLower(fe.Field())
		message := fmt.Sprintf("%s failed %s", field, fe.Tag())
		if fe.Param() != "" {
			message += "=" + fe.Param()
		}
		return apperrors.NewValidationError(message, field, fe.Value())
	}
	return apperrors.NewValidationError(err.Error(), "", nil)
}
