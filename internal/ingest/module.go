package ingest

import (
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/service"
)

var (
	Module = fx.Provide(
		NewRunner,
		func(p *service.Postings) Store { return p },
		func(g *service.General) SystemUsers { return g },
	)
)
