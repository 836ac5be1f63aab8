package storage

const schema = `
-- One scheduling state per (user, card) pair.
CREATE TABLE IF NOT EXISTS reviews (
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    repetitions INTEGER NOT NULL DEFAULT 0,
    interval_days INTEGER NOT NULL DEFAULT 0,
    ef DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    due_at TIMESTAMP NOT NULL,
    last_answer INTEGER,

    PRIMARY KEY (user_id, card_id)
);

CREATE INDEX IF NOT EXISTS idx_reviews_user_due ON reviews (user_id, due_at);

-- Append-only record of rating events. Never read for scheduling.
CREATE TABLE IF NOT EXISTS review_logs (
    user_id TEXT NOT NULL,
    card_id TEXT NOT NULL,
    rating INTEGER NOT NULL,
    reviewed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_review_logs_user ON review_logs (user_id, reviewed_at);
`
