package user

// Contact is the part of a customer record shown next to an order.
type Contact struct {
	ID    string  `json:"id"`
	Email string  `json:"email"`
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

// Placeholder builds the contact shown when no customer row exists for key.
func Placeholder(key string) Contact {
	short := key
	if r := []rune(key); len(r) > 8 {
		short = string(r[:8])
	}
	return Contact{
		ID:    key,
		Email: key,
		Name:  "User " + short,
	}
}
