package models

import "time"

// CartData снимок корзины: id товара -> размер -> количество
type CartData map[string]map[string]int

// User представляет покупателя
type User struct {
	ID        int64     `json:"_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PassHash  []byte    `json:"-"`
	CartData  CartData  `json:"cartData"`
	CreatedAt time.Time `json:"createdAt"`
}
