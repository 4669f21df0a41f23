package main

import (
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/app"
	"github.com/Rogue-Bear-Innovations/jobboard-back/internal/transport"
)

func options() fx.Option {
	return fx.Options(
		app.Core,
		transport.Module,
		fx.Invoke(func(*transport.HTTPServer) {}),
	)
}

func main() {
	fx.New(options()).Run()
}
