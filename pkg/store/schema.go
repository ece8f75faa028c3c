package store

// schemaVersion is the current database schema version.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    flow TEXT NOT NULL,
    status TEXT NOT NULL,
    pipelines TEXT NOT NULL,
    prompt TEXT,
    service_name TEXT,
    service_version TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_verdicts_created_at ON verdicts(created_at);
CREATE INDEX IF NOT EXISTS idx_verdicts_task_id ON verdicts(task_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_status ON verdicts(status);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

const insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

const getSchemaVersion = `SELECT MAX(version) FROM schema_version`

const insertVerdict = `
INSERT INTO verdicts (id, task_id, flow, status, pipelines, prompt, service_name, service_version, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
