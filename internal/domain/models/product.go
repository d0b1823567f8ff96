package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product представляет товар каталога
type Product struct {
	ID          int64           `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Sizes       []string        `json:"sizes"`
	Bestseller  bool            `json:"bestseller"`
	CreatedAt   time.Time       `json:"date"`
}
