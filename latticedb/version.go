package latticedb

// UpgradeFunc runs inside the upgrade transaction for versions greater
// than the database's previously persisted version and at most the
// version it is attached to, per spec.md §4.8.
type UpgradeFunc func(ctx *UpgradeContext) error

// versionDef is one db.Version(n) declaration: the schema-definition
// strings for that version (schema.ParseTable grammar) plus an optional
// upgrade callback.
type versionDef struct {
	number  int
	stores  map[string]string
	upgrade UpgradeFunc
}

// VersionBuilder is returned by DB.Version(n) and configures that
// version's store definitions and upgrade step, mirroring the
// db.version(n).stores({...}).upgrade(fn) chain of spec.md §4.8's source
// DSL.
type VersionBuilder struct {
	db  *DB
	def *versionDef
}

// Stores declares this version's table definitions, keyed by table name,
// using the schema grammar from spec.md §6 ("++id, &email, [a+b]").
func (v *VersionBuilder) Stores(defs map[string]string) *VersionBuilder {
	v.def.stores = defs
	return v
}

// Upgrade attaches the callback run once, inside the upgrade transaction,
// when this version is newly reached from a lower persisted version.
func (v *VersionBuilder) Upgrade(fn UpgradeFunc) *VersionBuilder {
	v.def.upgrade = fn
	return v
}
