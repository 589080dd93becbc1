package entity

// User is the record stored at users/<uid>. It is overwritten in full on every
// successful authentication; only IsOnline is mutated afterwards (presence).
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
	IsOnline    bool   `json:"isOnline"`
}
