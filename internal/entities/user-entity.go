package entities

import "time"

type User struct {
	ID        int       `json:"id"`
	Fio       string    `json:"fio"`
	Login     string    `json:"login"`
	Role      string    `json:"role"`
	BranchID  int       `json:"branch_id"`
	CreatedAt time.Time `json:"created_at"`
}
