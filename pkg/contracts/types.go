package contracts

import "fmt"

// CreateTableMode governs the conflict policy when creating a table whose
// name may already exist.
type CreateTableMode int

const (
	// CreateModeCreate fails if a table with the same name exists.
	CreateModeCreate CreateTableMode = iota

	// CreateModeOverwrite replaces an existing table with the same name.
	CreateModeOverwrite

	// CreateModeExistOk opens the existing table instead, provided its
	// schema matches the one being created.
	CreateModeExistOk
)

// ParseCreateTableMode parses the wire spelling of a create table mode.
func ParseCreateTableMode(s string) (CreateTableMode, error) {
	switch s {
	case "create":
		return CreateModeCreate, nil
	case "overwrite":
		return CreateModeOverwrite, nil
	case "exist_ok":
		return CreateModeExistOk, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCreateMode, s)
	}
}

func (m CreateTableMode) String() string {
	switch m {
	case CreateModeCreate:
		return "create"
	case CreateModeOverwrite:
		return "overwrite"
	case CreateModeExistOk:
		return "exist_ok"
	default:
		return fmt.Sprintf("CreateTableMode(%d)", int(m))
	}
}

// QueryConfig represents the configuration for a select query.
type QueryConfig struct {
	Columns []string `json:"columns,omitempty"`
	Where   string   `json:"where,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
	Offset  *int     `json:"offset,omitempty"`
}
