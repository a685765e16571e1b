package model

// All returns every persisted entity, in migration order.
func All() []any {
	return []any{
		&User{},
		&Plan{},
		&Report{},
		&Transaction{},
		&Notification{},
		&OutboxMessage{},
		&MovementReport{},
		&MovementItem{},
	}
}
