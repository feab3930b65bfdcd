package seeders

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SeedAll наполняет базу демо-данными: пользователи и пул остатков филиала.
// Повторный запуск безопасен.
func SeedAll(db *pgxpool.Pool) {
	ctx := context.Background()
	log.Println("Запуск наполнения демо-данными...")

	if err := seedUsers(ctx, db); err != nil {
		log.Fatalf("Ошибка наполнения пользователей: %v", err)
	}
	if err := seedBranchStock(ctx, db); err != nil {
		log.Fatalf("Ошибка наполнения пула филиала: %v", err)
	}

	log.Println("Наполнение демо-данными завершено")
}
