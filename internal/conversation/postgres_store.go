package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/studio-booking-platform/internal/domain"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists conversations and their transcripts.
type PostgresStore struct {
	db dbtx
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("conversation: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db dbtx) *PostgresStore {
	return &PostgresStore{db: db}
}

const conversationColumns = `session_id, state, visitor_name, visitor_phone, fingerprint, pending_package,
	booking_id, booking, abandon_reason, version, created_at, updated_at, deleted_at, delete_reason`

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE session_id = $1`, sessionID)
	conv, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("conversation: select failed: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT sender, text, created_at
		FROM conversation_messages
		WHERE session_id = $1
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: select messages failed: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			msg    domain.Message
			sender string
		)
		if err := rows.Scan(&sender, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("conversation: scan message: %w", err)
		}
		msg.Sender = domain.Sender(sender)
		conv.Messages = append(conv.Messages, msg)
	}
	return conv, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, conv *domain.Conversation) error {
	pkg, booking, err := encodeConversation(conv)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("conversation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11, $12, $13)
		ON CONFLICT (session_id) DO NOTHING
	`, conv.SessionID, string(conv.State), conv.Visitor.Name, conv.Visitor.Phone, conv.Visitor.Fingerprint, pkg,
		conv.BookingID, booking, conv.AbandonReason, conv.CreatedAt, conv.UpdatedAt, conv.DeletedAt, conv.DeleteReason)
	if err != nil {
		return fmt.Errorf("conversation: insert failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	if err := insertMessages(ctx, tx, conv.SessionID, 0, conv.Messages); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("conversation: commit: %w", err)
	}
	conv.Version = 1
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, conv *domain.Conversation, appended []domain.Message) error {
	pkg, booking, err := encodeConversation(conv)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("conversation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE conversations
		SET state = $3, visitor_name = $4, visitor_phone = $5, fingerprint = $6, pending_package = $7,
			booking_id = $8, booking = $9, abandon_reason = $10, updated_at = $11,
			deleted_at = $12, delete_reason = $13, version = version + 1
		WHERE session_id = $1 AND version = $2
	`, conv.SessionID, conv.Version, string(conv.State), conv.Visitor.Name, conv.Visitor.Phone, conv.Visitor.Fingerprint,
		pkg, conv.BookingID, booking, conv.AbandonReason, conv.UpdatedAt, conv.DeletedAt, conv.DeleteReason)
	if err != nil {
		return fmt.Errorf("conversation: update failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	base := len(conv.Messages) - len(appended)
	if base < 0 {
		return fmt.Errorf("conversation: %d appended messages exceed transcript length %d", len(appended), len(conv.Messages))
	}
	if err := insertMessages(ctx, tx, conv.SessionID, base, appended); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("conversation: commit: %w", err)
	}
	conv.Version++
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*domain.Conversation, int, error) {
	filter = filter.normalized()
	where := `WHERE ($1 = '' OR state = $1) AND ($2 = '' OR fingerprint = $2) AND ($3 OR deleted_at IS NULL)`
	args := []any{string(filter.State), filter.Fingerprint, filter.IncludeDeleted}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM conversations `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("conversation: count failed: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT `+conversationColumns+` FROM conversations `+where+`
		ORDER BY created_at DESC, session_id
		LIMIT $4 OFFSET $5`, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("conversation: list failed: %w", err)
	}
	var convs []*domain.Conversation
	index := make(map[string]*domain.Conversation)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("conversation: scan: %w", err)
		}
		convs = append(convs, conv)
		index[conv.SessionID] = conv
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("conversation: list rows: %w", err)
	}
	if len(convs) == 0 {
		return []*domain.Conversation{}, total, nil
	}

	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.SessionID)
	}
	msgRows, err := s.db.Query(ctx, `
		SELECT session_id, sender, text, created_at
		FROM conversation_messages
		WHERE session_id = ANY($1)
		ORDER BY session_id, seq
	`, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("conversation: list messages failed: %w", err)
	}
	defer msgRows.Close()
	for msgRows.Next() {
		var (
			sessionID, sender string
			msg               domain.Message
		)
		if err := msgRows.Scan(&sessionID, &sender, &msg.Text, &msg.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("conversation: scan message: %w", err)
		}
		msg.Sender = domain.Sender(sender)
		if conv := index[sessionID]; conv != nil {
			conv.Messages = append(conv.Messages, msg)
		}
	}
	return convs, total, msgRows.Err()
}

func insertMessages(ctx context.Context, tx pgx.Tx, sessionID string, base int, msgs []domain.Message) error {
	for i, msg := range msgs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO conversation_messages (session_id, seq, sender, text, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, sessionID, base+i, string(msg.Sender), msg.Text, msg.Timestamp); err != nil {
			return fmt.Errorf("conversation: insert message: %w", err)
		}
	}
	return nil
}

func encodeConversation(conv *domain.Conversation) (pkg, booking []byte, err error) {
	if conv.PendingPackage != nil {
		if pkg, err = json.Marshal(conv.PendingPackage); err != nil {
			return nil, nil, fmt.Errorf("conversation: encode package: %w", err)
		}
	}
	if conv.Booking != nil {
		if booking, err = json.Marshal(conv.Booking); err != nil {
			return nil, nil, fmt.Errorf("conversation: encode booking: %w", err)
		}
	}
	return pkg, booking, nil
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var (
		conv      domain.Conversation
		state     string
		pkgRaw    []byte
		bookRaw   []byte
		deletedAt *time.Time
	)
	if err := row.Scan(
		&conv.SessionID,
		&state,
		&conv.Visitor.Name,
		&conv.Visitor.Phone,
		&conv.Visitor.Fingerprint,
		&pkgRaw,
		&conv.BookingID,
		&bookRaw,
		&conv.AbandonReason,
		&conv.Version,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&deletedAt,
		&conv.DeleteReason,
	); err != nil {
		return nil, err
	}
	conv.State = domain.State(state)
	conv.DeletedAt = deletedAt
	conv.Messages = []domain.Message{}
	if len(pkgRaw) > 0 {
		var pkg domain.Package
		if err := json.Unmarshal(pkgRaw, &pkg); err != nil {
			return nil, fmt.Errorf("decode package: %w", err)
		}
		conv.PendingPackage = &pkg
	}
	if len(bookRaw) > 0 {
		var b domain.Booking
		if err := json.Unmarshal(bookRaw, &b); err != nil {
			return nil, fmt.Errorf("decode booking: %w", err)
		}
		conv.Booking = &b
	}
	return &conv, nil
}

var _ Store = (*PostgresStore)(nil)
