package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert. Keys are generated in Go so
// the same models migrate on Postgres and SQLite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every table the services touch, in dependency order. SQLite
// databases are built from it; Postgres uses the goose migrations.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&ShippingMethod{},
		&CartHeader{},
		&CartItem{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
