package seeders

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-system/pkg/constants"
)

type seedStockItem struct {
	Name     string
	ItemType string
	Quantity int
}

var demoBranchStock = []seedStockItem{
	{Name: "Роутер TP-Link Archer C6", ItemType: constants.ItemTypeSerialized, Quantity: 10},
	{Name: "ONU Huawei HG8310M", ItemType: constants.ItemTypeSerialized, Quantity: 10},
	{Name: "Кабель UTP cat5e (м)", ItemType: constants.ItemTypeGeneric, Quantity: 500},
	{Name: "Коннектор RJ-45", ItemType: constants.ItemTypeGeneric, Quantity: 200},
}

func seedBranchStock(ctx context.Context, db *pgxpool.Pool) error {
	log.Println("  - Наполнение пула филиала...")

	for _, item := range demoBranchStock {
		_, err := db.Exec(ctx, `
			INSERT INTO branch_stock (branch_id, name, item_type, quantity)
			VALUES (1, $1, $2, $3)
			ON CONFLICT (branch_id, name, item_type) DO NOTHING`,
			item.Name, item.ItemType, item.Quantity)
		if err != nil {
			return fmt.Errorf("ошибка наполнения пула филиала (%s): %w", item.Name, err)
		}
	}
	return nil
}
