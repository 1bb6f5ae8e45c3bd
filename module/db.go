package module

// Database is the table access a reducer sees. The harness implements
// it in memory; under a real host it is backed by host calls.
type Database interface {
	// Table resolves a registered table by name.
	Table(name string) (Table, error)
}

// Table is one table inside the current reducer transaction. Rows are
// passed as the registered row struct (or a pointer to it for calls
// that write back, like Insert with autoinc columns).
type Table interface {
	// Insert adds a row. If the table has autoinc columns and the
	// row's value there is zero, the drawn sequence number is written
	// back through the pointer. Violating a unique constraint is an
	// error.
	Insert(row any) error

	// FindByKey loads the row whose column col equals key into dest.
	// Reports whether a row was found. col must be the primary key or
	// a unique column.
	FindByKey(col string, key any, dest any) (bool, error)

	// DeleteByKey removes rows whose column col equals key and
	// returns how many were removed.
	DeleteByKey(col string, key any) (uint64, error)

	// Update replaces the row with the same primary key as row.
	// Errors if the table has no primary key or no such row exists.
	Update(row any) error

	// Count returns the number of rows.
	Count() uint64

	// Scan calls fn for every row decoded into dest, reusing dest
	// across calls. Iteration order is the table's internal order and
	// deterministic for a fixed history.
	Scan(dest any, fn func() error) error
}
