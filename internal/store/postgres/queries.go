package postgres

const querySchema = `
CREATE TABLE IF NOT EXISTS scheduled_tasks (
    id         TEXT PRIMARY KEY,
    execute_at TEXT  NOT NULL,
    intent     TEXT  NOT NULL,
    context    JSONB NOT NULL DEFAULT '{}'::jsonb,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS scheduled_tasks_execute_at_idx ON scheduled_tasks (execute_at);
`

const queryGetAllTasks = `
SELECT id, execute_at, intent, context
FROM scheduled_tasks
ORDER BY execute_at
`

const queryInsertTask = `
INSERT INTO scheduled_tasks (id, execute_at, intent, context)
VALUES ($1, $2, $3, $4)
`

const queryDeleteTask = `
DELETE FROM scheduled_tasks WHERE id = $1
`
