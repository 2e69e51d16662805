package core

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// AllowedOrderings drops orderings on fields that are not in `allowed`.
// Query params end up in ORDER BY clauses, so unknown fields must never reach the store.
func AllowedOrderings(ords []DBOrdering, allowed ...string) []DBOrdering {
	if len(ords) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	out := make([]DBOrdering, 0, len(ords))
	for _, ord := range ords {
		if _, ok := set[ord.Field]; ok {
			out = append(out, ord)
		}
	}
	return out
}
