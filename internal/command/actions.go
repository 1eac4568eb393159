package command

import (
	"context"

	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/recommend"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

// Action names.
const (
	ActionSubmit   = "submit"
	ActionSurprise = "surprise"
	ActionReject   = "reject"
	ActionAccept   = "accept"
	ActionReset    = "reset"
	ActionCategory = "category"
	ActionSignIn   = "sign_in"
	ActionSignOut  = "sign_out"
	ActionFavorite = "favorite"
	ActionRating   = "rating"
	ActionDelete   = "delete"
	ActionLibrary  = "library"
)

// DefaultActions returns one handler per session operation.
func DefaultActions() []Action {
	return []Action{
		&actionFunc{ActionSubmit, "Nouvelle recherche (query)", submit},
		&actionFunc{ActionSurprise, "Surprends-moi", surprise},
		&actionFunc{ActionReject, "Pas pour moi (index)", reject},
		&actionFunc{ActionAccept, "Je garde (index)", accept},
		&actionFunc{ActionReset, "Tout relancer", reset},
		&actionFunc{ActionCategory, "Changer de catégorie (category, sub_filter)", switchCategory},
		&actionFunc{ActionSignIn, "Se connecter (identity)", signIn},
		&actionFunc{ActionSignOut, "Se déconnecter", signOut},
		&actionFunc{ActionFavorite, "Basculer le favori (title)", toggleFavorite},
		&actionFunc{ActionRating, "Noter un titre (title, rating)", setRating},
		&actionFunc{ActionDelete, "Retirer de la bibliothèque (title)", deleteEntry},
		&actionFunc{ActionLibrary, "Afficher la bibliothèque (search)", library},
	}
}

type actionFunc struct {
	name        string
	description string
	run         func(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error)
}

func (a *actionFunc) Name() string        { return a.name }
func (a *actionFunc) Description() string { return a.description }

func (a *actionFunc) Execute(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	return a.run(ctx, engine, params)
}

func submit(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	return viewResult(engine.SubmitQuery(ctx, stringParam(params, "query")))
}

func surprise(ctx context.Context, engine *recommend.Engine, _ map[string]any) (*Result, error) {
	return viewResult(engine.SurpriseMe(ctx))
}

func reject(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	index, err := intParam(params, "index")
	if err != nil {
		return viewResult(engine.View(), err)
	}
	return viewResult(engine.Reject(ctx, index))
}

func accept(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	index, err := intParam(params, "index")
	if err != nil {
		return viewResult(engine.View(), err)
	}
	return viewResult(engine.Accept(ctx, index))
}

func reset(ctx context.Context, engine *recommend.Engine, _ map[string]any) (*Result, error) {
	return viewResult(engine.ResetAll(ctx))
}

func switchCategory(_ context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	raw := stringParam(params, "category")
	subFilter := stringParam(params, "sub_filter")
	if raw == "" {
		return viewResult(engine.SetSubFilter(subFilter))
	}
	category, err := domain.ParseCategory(raw)
	if err != nil {
		return viewResult(engine.View(), apperrors.NewValidationError(err.Error(), "category", raw))
	}
	return viewResult(engine.SwitchCategory(category, subFilter))
}

func signIn(_ context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	return viewResult(engine.SignIn(stringParam(params, "identity")))
}

func signOut(_ context.Context, engine *recommend.Engine, _ map[string]any) (*Result, error) {
	return viewResult(engine.SignOut())
}

func toggleFavorite(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return viewResult(engine.View(), err)
	}
	fav, err := engine.ToggleFavorite(ctx, title)
	if err != nil {
		return viewResult(engine.View(), err)
	}
	return withLibrary(ctx, engine, &Result{View: engine.View(), Favorite: &fav})
}

func setRating(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return viewResult(engine.View(), err)
	}
	rating, err := intParam(params, "rating")
	if err != nil {
		return viewResult(engine.View(), err)
	}
	if err := engine.SetRating(ctx, title, rating); err != nil {
		return viewResult(engine.View(), err)
	}
	return withLibrary(ctx, engine, &Result{View: engine.View()})
}

func deleteEntry(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	title, err := requireString(params, "title")
	if err != nil {
		return viewResult(engine.View(), err)
	}
	if err := engine.DeleteFromLibrary(ctx, title); err != nil {
		return viewResult(engine.View(), err)
	}
	return withLibrary(ctx, engine, &Result{View: engine.View()})
}

func library(ctx context.Context, engine *recommend.Engine, params map[string]any) (*Result, error) {
	lib, err := engine.Library(ctx, stringParam(params, "search"))
	if err != nil {
		return viewResult(engine.View(), err)
	}
	return &Result{View: engine.View(), Library: &lib}, nil
}

// withLibrary attaches the refreshed library after a library mutation.
func withLibrary(ctx context.Context, engine *recommend.Engine, result *Result) (*Result, error) {
	lib, err := engine.Library(ctx, "")
	if err == nil {
		result.Library = &lib
	}
	return result, nil
}
