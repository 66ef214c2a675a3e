package entity

// Table is one user table visible to the generator.
type Table struct {
	Name    string `db:"table_name" json:"tableName"`
	Comment string `db:"table_comment" json:"tableComment"`
}

// Column is one column of a table, read from information_schema.
type Column struct {
	Name      string `db:"column_name" json:"columnName"`
	DataType  string `db:"data_type" json:"dataType"`
	Nullable  bool   `db:"is_nullable" json:"nullable"`
	Default   string `db:"column_default" json:"columnDefault"`
	Comment   string `db:"column_comment" json:"columnComment"`
	IsPrimary bool   `db:"is_primary" json:"isPrimary"`
}

// ListQuery filters the table list.
type ListQuery struct {
	TableName string
	Limit     int
	Offset    int
}
