package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/recommend"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

// Action is one user operation on a session.
type Action interface {
	Name() string
	Description() string
	Execute(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error)
}

// Result carries whatever the action produced. View is always set.
type Result struct {
	View     recommend.View      `json:"view"`
	Library  *domain.LibraryView `json:"library,omitempty"`
	Favorite *bool               `json:"favorite,omitempty"`
}

func viewResult(v recommend.View, err error) (*Result, error) {
	return &Result{View: v}, err
}

func stringParam(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	default:
		return ""
	}
}

// intParam accepts ints, JSON numbers and numeric strings.
func intParam(params map[string]any, key string) (int, error) {
	switch v := params[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, apperrors.NewValidationError("must be an integer", key, v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, apperrors.NewValidationError("must be an integer", key, v)
		}
		return n, nil
	default:
		return 0, apperrors.NewValidationError("missing parameter", key, params[key])
	}
}

func requireString(params map[string]any, key string) (string, error) {
	s := stringParam(params, key)
	if s == "" {
		return "", apperrors.NewValidationError("missing parameter", key, params[key])
	}
	return s, nil
}
