package database

// schema holds the DDL for the primary tables. Observations live in a child
// table ordered by rowid, which preserves append order without a delimiter
// encoding. The (source, target, relation_type) unique index is what makes
// relation creation a no-op on duplicates.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS entities (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        entity_type TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

	`CREATE TABLE IF NOT EXISTS observations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        entity_name TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

	`CREATE TABLE IF NOT EXISTS relations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        source TEXT NOT NULL,
        target TEXT NOT NULL,
        relation_type TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_relations_triple ON relations(source, target, relation_type)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name)`,
	`CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity_name)`,
	`CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source)`,
	`CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target)`,
}
