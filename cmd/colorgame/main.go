package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version    kong.VersionFlag `short:"v" help:"Show version"`
	Migrate    MigrateCmd       `cmd:"" help:"Apply the database schema"`
	SeedColors SeedColorsCmd    `cmd:"seed-colors" help:"Fill the color catalog"`
	NewGame    NewGameCmd       `cmd:"new-game" help:"Register players and create a pending game"`
	Play       PlayCmd          `cmd:"" help:"Play a game on this terminal"`
	Status     StatusCmd        `cmd:"" help:"Show a game's round, turn and scores"`
	Reap       ReapCmd          `cmd:"" help:"Close active games whose shared state has expired"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("colorgame"),
		kong.Description("Turn-based color guessing game backed by PostgreSQL and Redis"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
