package models

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ID prefixes per entity.
const (
	PrefixItem    = "item"
	PrefixProfile = "prof"
	PrefixCatalog = "cat"
	PrefixTpl     = "tpl"
)

// NewID returns a k-sortable unique identifier with a prefix, ex item_01J9ZK3V...
func NewID(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	if prefix == "" {
		return id
	}
	return fmt.Sprintf("%s_%s", prefix, id)
}

// NewInvoiceNumber returns a reference of the form FAC-NNNN.
// References are not guaranteed unique or sequential.
func NewInvoiceNumber() string {
	return fmt.Sprintf("FAC-%d", 1000+rand.IntN(9000))
}
