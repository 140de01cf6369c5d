package store

// Schema is the complete tracker schema. Idempotent: applied on every
// open.
const Schema = `
-- LMS credentials, password sealed at rest
CREATE TABLE IF NOT EXISTS credentials (
    id         TEXT PRIMARY KEY,
    label      TEXT NOT NULL UNIQUE,
    username   TEXT NOT NULL,
    sealed     BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Tracked LMS courses
CREATE TABLE IF NOT EXISTS courses (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    url             TEXT NOT NULL UNIQUE,
    scan_interval   INTEGER NOT NULL DEFAULT 21600000,
    enabled         INTEGER NOT NULL DEFAULT 1,
    credential_id   TEXT REFERENCES credentials(id) ON DELETE SET NULL,
    last_scanned_at INTEGER,
    last_status     TEXT NOT NULL DEFAULT 'pending',
    last_error      TEXT NOT NULL DEFAULT '',
    fail_count      INTEGER NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_courses_enabled ON courses(enabled, last_scanned_at);

-- Assignments discovered per course. The (course_id, title) key makes
-- re-scans upsert instead of duplicate.
CREATE TABLE IF NOT EXISTS assignments (
    id            TEXT PRIMARY KEY,
    course_id     TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title         TEXT NOT NULL,
    due_at        INTEGER,
    raw_due       TEXT NOT NULL DEFAULT '',
    confidence    REAL NOT NULL DEFAULT 0,
    matched_text  TEXT NOT NULL DEFAULT '',
    markdown      TEXT NOT NULL DEFAULT '',
    link          TEXT NOT NULL DEFAULT '',
    tier          TEXT NOT NULL DEFAULT '',
    notified_at   INTEGER,
    first_seen_at INTEGER NOT NULL,
    last_seen_at  INTEGER NOT NULL,
    UNIQUE(course_id, title)
);
CREATE INDEX IF NOT EXISTS idx_assignments_due ON assignments(due_at);

-- Scan history (observability)
CREATE TABLE IF NOT EXISTS scan_log (
    id             TEXT PRIMARY KEY,
    course_id      TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    status         TEXT NOT NULL,
    candidates     INTEGER NOT NULL DEFAULT 0,
    verified       INTEGER NOT NULL DEFAULT 0,
    rejected       INTEGER NOT NULL DEFAULT 0,
    date_failures  INTEGER NOT NULL DEFAULT 0,
    avg_confidence REAL NOT NULL DEFAULT 0,
    tier           TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    duration_ms    INTEGER NOT NULL DEFAULT 0,
    scanned_at     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_log_course ON scan_log(course_id, scanned_at DESC);
`
