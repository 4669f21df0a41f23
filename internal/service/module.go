package service

import (
	"go.uber.org/fx"
)

var (
	Module = fx.Provide(
		NewGeneral,
		NewPostings,
		NewQuery,
		NewRecommender,
		NewBookmarks,
		NewApplications,
	)
)
