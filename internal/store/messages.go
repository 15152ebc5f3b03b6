package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"happyd/internal/model"
)

const messageColumns = "id, session_id, content, created_at, seq, local_id"

// maxMessageLimit caps page sizes for both directions of message reads.
const maxMessageLimit = 200

func scanMessage(row rowScanner) (model.Message, error) {
	var (
		msg     model.Message
		content sql.NullString
		localID sql.NullString
	)
	err := row.Scan(&msg.ID, &msg.SessionID, &content, &msg.CreatedAt, &msg.Seq, &localID)
	if err != nil {
		return model.Message{}, err
	}
	msg.Content = decodeJSON(content)
	if localID.Valid {
		msg.LocalID = &localID.String
	}
	return msg, nil
}

// AddMessage appends to the session's log. When localID is non-empty and a
// message with that (session, localID) already exists, the stored message is
// returned unchanged; retried deliveries allocate exactly one seq.
//
// The next seq is computed by a subquery inside the INSERT itself, so seq
// assignment and the insert are one atomic statement: concurrent appends to
// the same session cannot observe the same max and the log stays gapless.
// If two appends race on the same localID anyway, the partial unique index
// rejects the loser and we hand back the winner's row.
func (s *Store) AddMessage(sessionID string, content any, localID string) (model.Message, error) {
	if localID != "" {
		existing, err := s.getMessageByLocalID(sessionID, localID)
		if err != nil {
			return model.Message{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	contentText, err := encodeJSONNonNull(content)
	if err != nil {
		return model.Message{}, fmt.Errorf("encode message content: %w", err)
	}

	var localIDArg any
	if localID != "" {
		localIDArg = localID
	}

	id := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO messages (id, session_id, content, created_at, seq, local_id)
		VALUES (?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?),
			?)`,
		id, sessionID, contentText, nowMillis(), sessionID, localIDArg)
	if err != nil {
		if localID != "" && isUniqueViolation(err) {
			existing, lookupErr := s.getMessageByLocalID(sessionID, localID)
			if lookupErr == nil && existing != nil {
				return *existing, nil
			}
		}
		return model.Message{}, fmt.Errorf("insert message: %w", err)
	}

	row := s.db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE id = ?", id)
	msg, err := scanMessage(row)
	if err != nil {
		return model.Message{}, fmt.Errorf("read back message: %w", err)
	}
	return msg, nil
}

func (s *Store) getMessageByLocalID(sessionID, localID string) (*model.Message, error) {
	row := s.db.QueryRow(
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? AND local_id = ? LIMIT 1",
		sessionID, localID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup message by local id: %w", err)
	}
	return &msg, nil
}

// GetMessages returns up to limit messages in ascending seq order, the
// newest page first: rows are fetched seq-descending and reversed, so a
// client paginates backwards by passing the lowest seq it has as beforeSeq.
// beforeSeq <= 0 means "from the newest".
func (s *Store) GetMessages(sessionID string, limit int, beforeSeq int64) ([]model.Message, error) {
	limit = clampLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if beforeSeq > 0 {
		rows, err = s.db.Query(
			"SELECT "+messageColumns+" FROM messages WHERE session_id = ? AND seq < ? ORDER BY seq DESC LIMIT ?",
			sessionID, beforeSeq, limit)
	} else {
		rows, err = s.db.Query(
			"SELECT "+messageColumns+" FROM messages WHERE session_id = ? ORDER BY seq DESC LIMIT ?",
			sessionID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetMessagesAfter is the forward catch-up read: ascending messages with
// seq strictly greater than afterSeq.
func (s *Store) GetMessagesAfter(sessionID string, afterSeq int64, limit int) ([]model.Message, error) {
	limit = clampLimit(limit)
	if afterSeq < 0 {
		afterSeq = 0
	}

	rows, err := s.db.Query(
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?",
		sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	msgs := make([]model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxMessageLimit {
		return maxMessageLimit
	}
	return limit
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
