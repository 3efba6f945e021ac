package main

import (
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/urfave/cli/v2"

	"github.com/trilliondigital/Dirt-v1.0-sub007/moderation"
	"github.com/trilliondigital/Dirt-v1.0-sub007/reputation"
	"github.com/trilliondigital/Dirt-v1.0-sub007/server"
	"github.com/trilliondigital/Dirt-v1.0-sub007/util/cliutil"
)

func main() {
	run(os.Args)
}

func run(args []string) {

	app := cli.App{
		Name:  "dirtd",
		Usage: "content moderation and community scoring service",
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "db-url",
			Value:   "sqlite://./data/dirtd/dirt.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "address and port to listen on",
			Value:   ":4999",
			EnvVars: []string{"DIRT_BIND"},
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "secret used for authenticating JWT tokens",
			Value:   "jwtsecretplaceholder",
			EnvVars: []string{"DIRT_JWT_SECRET"},
		},
		&cli.IntFlag{
			Name:    "report-threshold",
			Usage:   "open report count that automatically flags content",
			Value:   3,
			EnvVars: []string{"DIRT_REPORT_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "vote-cap",
			Usage:   "per-content net score cap applied during reputation recompute",
			Value:   50,
			EnvVars: []string{"DIRT_VOTE_CAP"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   40,
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
		},
	}

	app.Action = func(cctx *cli.Context) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(logger)

		db, err := cliutil.SetupDatabase(cctx.String("db-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}

		repCfg := reputation.DefaultConfig()
		repCfg.PerContentCap = cctx.Int("vote-cap")

		srv, err := server.NewServer(db, server.Config{
			JWTSecret:  []byte(cctx.String("jwt-secret")),
			Moderation: moderation.Config{ReportThreshold: cctx.Int("report-threshold")},
			Reputation: repCfg,
		})
		if err != nil {
			return err
		}

		return srv.RunAPI(cctx.String("bind"))
	}

	app.RunAndExitOnError()
}
