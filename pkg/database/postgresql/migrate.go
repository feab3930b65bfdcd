package postgresql

import (
	"database/sql"
	"io/fs"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations применяет встроенные goose-миграции к базе.
func RunMigrations(dsn string, migrations fs.FS) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Ошибка открытия соединения для миграций: %v", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Ошибка установки диалекта goose: %v", err)
	}

	if err := goose.Up(db, "."); err != nil {
		log.Fatalf("Ошибка применения миграций: %v", err)
	}

	log.Println("✅ Миграции применены")
}
