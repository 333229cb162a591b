package db

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/wspjoy2011/assistant-relay/internal/chat"
	"github.com/wspjoy2011/assistant-relay/internal/models"
)

// Connect opens the database and migrates the schema. TranslateError is
// required: the chat repo relies on gorm.ErrDuplicatedKey to detect
// unique-index conflicts across drivers.
func Connect(driver, dsn string) *gorm.DB {
	var dial gorm.Dialector
	switch driver {
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Fatalf("db dir %s: %v", dir, err)
			}
		}
		dial = sqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("db connect driver=%s: %v", driver, err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&chat.Session{},
		&chat.Message{},
		&chat.Job{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	return gdb
}
