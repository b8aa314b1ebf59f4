package ddl

// ColumnDef describes a single column. Name is unquoted; quoting happens at
// render time. Default is a raw SQL expression.
type ColumnDef struct {
	Name       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool // primary-key columns always render NOT NULL
	Default    string
}

// TableDef holds the dotted table name and its ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}
