package join

// Policy decides what happens to a primary row whose foreign key has no match.
type Policy int

const (
	// KeepUnresolved keeps the row with a zero secondary and Resolved=false.
	KeepUnresolved Policy = iota
	// DropUnresolved removes the row and reports it to the caller.
	DropUnresolved
)

func (p Policy) String() string {
	if p == DropUnresolved {
		return "drop"
	}
	return "keep"
}

// Joined pairs a primary record with the secondary it references.
type Joined[P, S any] struct {
	Primary   P
	Secondary S
	Resolved  bool
}

// Index maps each secondary record by key. The first record wins on duplicates.
func Index[S any, K comparable](rows []S, key func(S) K) map[K]S {
	index := make(map[K]S, len(rows))
	for _, row := range rows {
		k := key(row)
		if _, exists := index[k]; exists {
			continue
		}
		index[k] = row
	}
	return index
}

// Left joins primary against secondary on foreignKey == secondaryKey, keeping
// the primary order. Rows dropped under DropUnresolved are returned separately
// so the caller can report them.
func Left[P, S any, K comparable](
	primary []P,
	foreignKey func(P) K,
	secondary []S,
	secondaryKey func(S) K,
	policy Policy,
) (rows []Joined[P, S], dropped []P) {
	index := Index(secondary, secondaryKey)
	rows = make([]Joined[P, S], 0, len(primary))
	for _, record := range primary {
		match, ok := index[foreignKey(record)]
		if !ok && policy == DropUnresolved {
			dropped = append(dropped, record)
			continue
		}
		rows = append(rows, Joined[P, S]{Primary: record, Secondary: match, Resolved: ok})
	}
	return rows, dropped
}
