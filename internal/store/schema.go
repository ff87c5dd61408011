package store

const schema = `
CREATE TABLE IF NOT EXISTS applications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_logs (
    program_id INTEGER NOT NULL,
    start TIMESTAMP NOT NULL,
    "end" TIMESTAMP NOT NULL,
    PRIMARY KEY (program_id, start),
    FOREIGN KEY (program_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS focus_logs (
    program_id INTEGER NOT NULL,
    start TIMESTAMP NOT NULL,
    "end" TIMESTAMP NOT NULL,
    PRIMARY KEY (program_id, start),
    FOREIGN KEY (program_id) REFERENCES applications(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ignores (
    type TEXT NOT NULL CHECK (type IN ('file', 'path')),
    value TEXT NOT NULL,
    UNIQUE (type, value)
);

CREATE INDEX IF NOT EXISTS idx_active_start ON active_logs(start);
CREATE INDEX IF NOT EXISTS idx_active_end ON active_logs("end");
CREATE INDEX IF NOT EXISTS idx_focus_start ON focus_logs(start);
CREATE INDEX IF NOT EXISTS idx_focus_end ON focus_logs("end");
`
