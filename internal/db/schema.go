package db

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT UNIQUE NOT NULL,
    created_at    DATETIME DEFAULT (datetime('now')),
    last_seen_at  DATETIME
);

CREATE TABLE IF NOT EXISTS traditions (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_by  TEXT REFERENCES users(id),
    created_at  DATETIME DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_traditions_created ON traditions(created_at);

CREATE TABLE IF NOT EXISTS completions (
    user_id      TEXT NOT NULL,
    tradition_id TEXT NOT NULL,
    created_at   DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, tradition_id)
);
CREATE INDEX IF NOT EXISTS idx_completions_tradition ON completions(tradition_id);

CREATE TABLE IF NOT EXISTS ratings (
    user_id      TEXT NOT NULL,
    tradition_id TEXT NOT NULL,
    rating       INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 10),
    created_at   DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, tradition_id)
);
CREATE INDEX IF NOT EXISTS idx_ratings_tradition ON ratings(tradition_id);

CREATE TABLE IF NOT EXISTS difficulty_ratings (
    user_id      TEXT NOT NULL,
    tradition_id TEXT NOT NULL,
    difficulty   INTEGER NOT NULL CHECK(difficulty BETWEEN 1 AND 10),
    created_at   DATETIME DEFAULT (datetime('now')),
    PRIMARY KEY (user_id, tradition_id)
);
CREATE INDEX IF NOT EXISTS idx_difficulty_tradition ON difficulty_ratings(tradition_id);
`
