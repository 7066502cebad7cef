package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/shulebot/shulebot/core"
	"github.com/shulebot/shulebot/core/admin"
	"github.com/shulebot/shulebot/core/bot"
	dummyadmin "github.com/shulebot/shulebot/services/adminapi/dummy"
	inmemdb "github.com/shulebot/shulebot/storage/session/inmem"
)

var readTokenFunc = term.ReadPassword // mockable

// shell is a local REPL for poking at the interpreter: a trivial
// keyword matcher stands in for the NLU layer and the sandbox backend
// stands in for the administrative API.
func main() {
	school := flag.String("school", "demo", "school (tenant) id")
	seed := flag.Bool("seed", true, "seed an active year and term in the sandbox backend")
	flag.Parse()

	logger := core.NewStdLogger(log.New(os.Stderr, "SHELL : ", log.LstdFlags))
	conf := core.NewConfig("")

	fmt.Print("Token (enter for sandbox): ")
	raw, err := readTokenFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatal(err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		token = "sandbox"
	}

	backend := dummyadmin.NewBackend()
	if *seed {
		backend.SetSetup("2026", "Term 1")
	}

	svc := bot.NewService(backend, logger, conf.Bot.ExtraStreamWords...)
	repo := inmemdb.NewConversationRepository(inmemdb.NewDB())
	sess := admin.Session{Token: token, SchoolID: *school, UserID: "shell"}
	conv := bot.Conversation{ID: "shell", Slots: make(bot.Slots)}

	fmt.Println("Type a command ('help' to start, ctrl-d to leave).")
	ctx := context.Background()
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		if stored, err := repo.GetConversation(ctx, conv.ID); err == nil {
			conv = stored
		}

		intent, entities := matchIntent(text)
		res, err := svc.HandleTurn(ctx, bot.Utterance{
			Text:     text,
			Intent:   intent,
			Entities: entities,
			Session:  sess,
		}, conv.Slots)
		if err != nil {
			logger.Error("turn failed", err)
			continue
		}

		conv.Slots = res.Delta.Apply(conv.Slots)
		if _, err = repo.SaveConversation(ctx, conv); err != nil {
			logger.Error("saving conversation", err)
		}
		for _, reply := range res.Replies {
			fmt.Println(reply)
		}
	}
	fmt.Println("\nBye!")
}
