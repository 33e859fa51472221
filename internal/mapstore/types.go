package mapstore

// StoreType identifies a mapping store backend.
type StoreType string

const (
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypePostgres StoreType = "postgres"
	StoreTypeMemory   StoreType = "memory"
)

// String returns the backend name.
func (t StoreType) String() string {
	return string(t)
}

// IsValid reports whether the backend name is one we can build.
func (t StoreType) IsValid() bool {
	switch t {
	case StoreTypeSQLite, StoreTypePostgres, StoreTypeMemory:
		return true
	}
	return false
}

// StoreConfig is the JSON configuration the factory consumes. The
// extra details are backend specific: "path" for sqlite, "conn_str"
// for postgres.
type StoreConfig struct {
	StoreType    StoreType              `json:"db_type"`
	ExtraDetails map[string]interface{} `json:"extra_details"`
}
