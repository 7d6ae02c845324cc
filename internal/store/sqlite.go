package store

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/examdrill/backend/internal/domain/bank"
	"github.com/examdrill/backend/internal/domain/question"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_progress (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    question_id TEXT NOT NULL,
    answered INTEGER NOT NULL,
    correct INTEGER NOT NULL,
    wrong INTEGER NOT NULL,
    marked INTEGER NOT NULL,
    mastered INTEGER NOT NULL,
    set_name TEXT
);

CREATE TABLE IF NOT EXISTS app_state (
    key TEXT PRIMARY KEY,
    value TEXT
);
`

// app_state keys. Early databases carried only the global cursor; the
// per-set keys came later and are preferred on load.
const (
	lastSetKey      = "last_set"
	lastPositionKey = "last_position"
)

func setPositionKey(setName string) string {
	return "last_position_" + setName
}

// SQLiteStore is the durable side of progress tracking. It never
// mutates in-memory questions on its own; load paths hand rows back (or
// apply them through ApplyRows) under the caller's control.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.migrateSetNameColumn(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrateSetNameColumn upgrades databases written before progress was
// partitioned by set.
func (s *SQLiteStore) migrateSetNameColumn() error {
	rows, err := s.db.Query("PRAGMA table_info(user_progress)")
	if err != nil {
		return err
	}
	defer rows.Close()

	hasSetName := false
	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return err
		}
		if name == "set_name" {
			hasSetName = true
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if !hasSetName {
		_, err = s.db.Exec("ALTER TABLE user_progress ADD COLUMN set_name TEXT")
	}
	return err
}

// SaveSetProgress replaces every persisted row for setName with the
// current in-memory values and records the set's cursor plus the active
// set pointer. The whole replacement is one transaction: a failure
// rolls back to the previous rows rather than leaving a partial mix.
func (s *SQLiteStore) SaveSetProgress(questions []*question.Question, cursor int, setName string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM user_progress WHERE set_name = ?", setName); err != nil {
		return err
	}

	if err := insertRows(tx, questions, setName); err != nil {
		return err
	}

	if err := upsertState(tx, setPositionKey(setName), strconv.Itoa(cursor)); err != nil {
		return err
	}
	if err := upsertState(tx, lastSetKey, setName); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveAllProgress snapshots every loaded set in one transaction,
// together with the legacy global cursor and the active set pointer.
func (s *SQLiteStore) SaveAllProgress(col *bank.Collection) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM user_progress"); err != nil {
		return err
	}

	for _, name := range col.Names() {
		b, ok := col.Get(name)
		if !ok {
			continue
		}
		if err := insertRows(tx, b.Questions, name); err != nil {
			return err
		}
		if err := upsertState(tx, setPositionKey(name), strconv.Itoa(b.Cursor)); err != nil {
			return err
		}
	}

	cursor := 0
	if b := col.Current(); b != nil {
		cursor = b.Cursor
	}
	if err := upsertState(tx, lastPositionKey, strconv.Itoa(cursor)); err != nil {
		return err
	}
	if err := upsertState(tx, lastSetKey, col.CurrentName()); err != nil {
		return err
	}

	return tx.Commit()
}

func insertRows(tx *sql.Tx, questions []*question.Question, setName string) error {
	stmt, err := tx.Prepare(`
		INSERT INTO user_progress
			(question_id, answered, correct, wrong, marked, mastered, set_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range questions {
		row := rowFromQuestion(q, setName)
		if _, err := stmt.Exec(
			row.QuestionID, row.Answered, row.Streak, row.Wrong,
			boolToInt(row.Marked), boolToInt(row.Mastered), row.SetName,
		); err != nil {
			return fmt.Errorf("insert progress for %s: %w", row.QuestionID, err)
		}
	}
	return nil
}

func upsertState(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec("INSERT OR REPLACE INTO app_state (key, value) VALUES (?, ?)", key, value)
	return err
}

// LoadSetProgress reads back one set's rows, its saved cursor (0 when
// never saved) and the persisted active-set pointer.
func (s *SQLiteStore) LoadSetProgress(setName string) (cursor int, lastSet string, rows []ProgressRow, err error) {
	rows, err = s.queryRows(
		"SELECT question_id, answered, correct, wrong, marked, mastered, set_name FROM user_progress WHERE set_name = ?",
		setName,
	)
	if err != nil {
		return 0, "", nil, err
	}

	cursor, err = s.stateInt(setPositionKey(setName))
	if err != nil {
		return 0, "", nil, err
	}
	lastSet, err = s.stateString(lastSetKey)
	if err != nil {
		return 0, "", nil, err
	}
	return cursor, lastSet, rows, nil
}

// LoadAllProgress reads every persisted row, groups it by set and
// applies it onto the matching in-memory questions by identity. Rows
// for sets or identities no longer loaded are dropped. It returns the
// legacy global cursor and the active-set pointer for the caller to
// reconcile.
func (s *SQLiteStore) LoadAllProgress(col *bank.Collection) (cursor int, lastSet string, err error) {
	rows, err := s.queryRows(
		"SELECT question_id, answered, correct, wrong, marked, mastered, set_name FROM user_progress",
	)
	if err != nil {
		return 0, "", err
	}

	bySet := make(map[string][]ProgressRow)
	for _, row := range rows {
		bySet[row.SetName] = append(bySet[row.SetName], row)
	}
	for setName, setRows := range bySet {
		b, ok := col.Get(setName)
		if !ok {
			continue
		}
		ApplyRows(setRows, b.IdentityIndex())
	}

	cursor, err = s.stateInt(lastPositionKey)
	if err != nil {
		return 0, "", err
	}
	lastSet, err = s.stateString(lastSetKey)
	if err != nil {
		return 0, "", err
	}
	return cursor, lastSet, nil
}

// SetCursor reads a set's saved cursor position. ErrNotFound when the
// set has never been saved.
func (s *SQLiteStore) SetCursor(setName string) (int, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", setPositionKey(setName)).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

func (s *SQLiteStore) queryRows(query string, args ...any) ([]ProgressRow, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProgressRow
	for rows.Next() {
		var (
			r                ProgressRow
			marked, mastered int
			setName          sql.NullString
		)
		if err := rows.Scan(&r.QuestionID, &r.Answered, &r.Streak, &r.Wrong, &marked, &mastered, &setName); err != nil {
			return nil, err
		}
		r.Marked = marked != 0
		r.Mastered = mastered != 0
		r.SetName = setName.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) stateInt(key string) (int, error) {
	value, err := s.stateString(key)
	if err != nil || value == "" {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, nil // unreadable pointer, treat as unset
	}
	return n, nil
}

func (s *SQLiteStore) stateString(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM app_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
