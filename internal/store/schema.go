package store

const tableSchema = `
CREATE TABLE IF NOT EXISTS command_logs (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    cwd TEXT NOT NULL,
    command TEXT NOT NULL,
    exit_code INTEGER NOT NULL,
    duration_secs REAL NOT NULL,
    self_invocation BOOLEAN NOT NULL DEFAULT 0
);
`

const indexSchema = `
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON command_logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_cwd ON command_logs(cwd);
CREATE INDEX IF NOT EXISTS idx_logs_command ON command_logs(command);
`
