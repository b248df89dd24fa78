package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order. sqlite test
// databases are created from it with AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Store{},
		&Vehicle{},
		&Package{},
		&Order{},
		&Payment{},
		&Notification{},
		&EmailJob{},
	}
}
