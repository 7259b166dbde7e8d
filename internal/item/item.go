// Package item holds the record exchanged with the upstream collection.
package item

import "fmt"

// Item is treated as an opaque value: the gateway replaces items wholesale
// and never edits fields in place. ID is empty until the upstream assigns it.
type Item struct {
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price,omitempty"`
}

func (i Item) String() string {
	return fmt.Sprintf("Item(id=%s, name=%s, description=%s, price=%g)", i.ID, i.Name, i.Description, i.Price)
}
