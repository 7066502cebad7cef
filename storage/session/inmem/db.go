package inmemdb

import (
	"sync"

	"github.com/shulebot/shulebot/core/bot"
)

// DB is a process-local conversation store; the default for DEV/TEST
// and the local shell.
type DB struct {
	mutex sync.RWMutex
	table map[string]*bot.Conversation
}

func NewDB() *DB {
	return &DB{table: make(map[string]*bot.Conversation)}
}
