package main

import (
	"log"
	"os"

	"github.com/shulebot/shulebot/api/echo"
	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
	"github.com/shulebot/shulebot/core/bot"
	"github.com/shulebot/shulebot/services/adminapi"
	dummyadmin "github.com/shulebot/shulebot/services/adminapi/dummy"
	logsvc "github.com/shulebot/shulebot/services/logger"
	"github.com/shulebot/shulebot/storage/session"
	inmemdb "github.com/shulebot/shulebot/storage/session/inmem"
	sqlxrepos "github.com/shulebot/shulebot/storage/session/sqlx"
)

var build = "dev" // set by the build flags

func main() {
	conf := core.NewConfig(build)

	std := log.New(os.Stderr, "API : ", log.LstdFlags)
	var logger core.Logger
	if conf.RollbarToken != "" && !conf.Debug {
		logger = logsvc.NewRollbarLogger(std, conf)
	} else {
		logger = core.NewStdLogger(std)
	}

	// set up the administrative backend
	var client admin.Client
	if conf.AdminAPI.BaseURL != "" {
		c, err := adminapi.NewClient(conf)
		errAndDie(err)
		client = c
	} else {
		logger.Info("no admin API configured; using the sandbox backend")
		backend := dummyadmin.NewBackend()
		backend.SetSetup("2026", "Term 1")
		client = backend
	}

	// set up the conversation store
	var sessions bot.SessionRepository
	if conf.Database.Name != "" {
		db, err := session.Open(conf)
		errAndDie(err)
		defer db.Close()
		sessions = sqlxrepos.NewConversationRepository(db)
	} else {
		logger.Info("no database configured; conversations are kept in memory")
		sessions = inmemdb.NewConversationRepository(inmemdb.NewDB())
	}

	svc := bot.NewService(client, logger, conf.Bot.ExtraStreamWords...)

	app := echoapi.NewServer(
		&echoapi.Options{
			Address:   conf.Server.Address(),
			Debug:     conf.Debug,
			TestMode:  conf.TestMode,
			AppName:   conf.AppName,
			SecretKey: []byte(conf.SecretKey),
			Logger:    logger,
			BotSvc:    svc,
			Sessions:  sessions,
		},
	)
	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
