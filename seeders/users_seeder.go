package seeders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-system/pkg/constants"
	"fieldops-system/pkg/utils"
)

type seedUser struct {
	Fio      string
	Login    string
	Password string
	Role     string
	BranchID int
}

var demoUsers = []seedUser{
	{Fio: "Рахимов Фаррух", Login: "manager", Password: "manager123", Role: constants.RoleManager, BranchID: 1},
	{Fio: "Каримов Далер", Login: "tech1", Password: "tech1pass", Role: constants.RoleTechnician, BranchID: 1},
	{Fio: "Назаров Умед", Login: "tech2", Password: "tech2pass", Role: constants.RoleTechnician, BranchID: 1},
}

func seedUsers(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Создание демо-пользователей...")

	for _, u := range demoUsers {
		var existingID int
		err := db.QueryRow(ctx, `SELECT id FROM users WHERE login = $1`, u.Login).Scan(&existingID)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ошибка проверки пользователя %s: %w", u.Login, err)
		}

		hash, err := utils.HashPassword(u.Password)
		if err != nil {
			return fmt.Errorf("ошибка хеширования пароля для %s: %w", u.Login, err)
		}

		_, err = db.Exec(ctx, `
			INSERT INTO users (fio, login, password_hash, role, branch_id)
			VALUES ($1, $2, $3, $4, $5)`,
			u.Fio, u.Login, hash, u.Role, u.BranchID)
		if err != nil {
			return fmt.Errorf("ошибка создания пользователя %s: %w", u.Login, err)
		}
	}
	return nil
}
