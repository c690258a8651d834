package store

import (
	"fmt"
	"strings"
)

// OrderTerm is one attribute of an order specification.
type OrderTerm struct {
	Attribute string
	Desc      bool
}

// ParseOrder parses a comma separated "attr [asc|desc]" list.
// An empty string yields no terms.
func ParseOrder(order string) ([]OrderTerm, error) {
	order = strings.TrimSpace(order)
	if order == "" {
		return nil, nil
	}
	parts := strings.Split(order, ",")
	terms := make([]OrderTerm, 0, len(parts))
	for _, part := range parts {
		fields := strings.Fields(part)
		switch len(fields) {
		case 1:
			terms = append(terms, OrderTerm{Attribute: fields[0]})
		case 2:
			switch strings.ToLower(fields[1]) {
			case "asc":
				terms = append(terms, OrderTerm{Attribute: fields[0]})
			case "desc":
				terms = append(terms, OrderTerm{Attribute: fields[0], Desc: true})
			default:
				return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidOrder, fields[1])
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidOrder, strings.TrimSpace(part))
		}
	}
	return terms, nil
}
