package contact

import "time"

type Contact struct {
	UID           string    `gorm:"primaryKey" json:"id"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstname"`
	LastName      string    `json:"lastname"`
	Phone         string    `json:"phone"`
	SalutationUID string    `json:"salutation"`
	CreatedAt     time.Time `json:"created_at"`
}

type Address struct {
	UID        string    `gorm:"primaryKey" json:"id"`
	ContactUID string    `json:"contact_id"`
	Street     string    `json:"street"`
	Zip        string    `json:"zip"`
	City       string    `json:"city"`
	CreatedAt  time.Time `json:"created_at"`
}

// WithAddress is the projection returned to the storefront.
type WithAddress struct {
	Contact
	Address *Address `json:"address,omitempty"`
}
