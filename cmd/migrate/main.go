package main

import (
	"database/sql"
	"flag"

	_ "github.com/lib/pq"
	"github.com/pressly/goose"

	"github.com/nollyai/studio-server/internal/infra"
)

func main() {
	dir := flag.String("dir", "migrations", "directory with migration files")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	command := "up"
	if args := flag.Args(); len(args) > 0 {
		command = args[0]
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate: open database failed")
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Fatal().Err(err).Msg("migrate: set dialect failed")
	}

	var args []string
	if flag.NArg() > 1 {
		args = flag.Args()[1:]
	}
	if err := goose.Run(command, db, *dir, args...); err != nil {
		logger.Fatal().Err(err).Str("command", command).Msg("migrate: command failed")
	}
	logger.Info().Str("command", command).Msg("migrate: done")
}
