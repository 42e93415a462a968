package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	errx "github.com/waflow/server/internal/core/error"
)

// Bot is the read-only view of a bot the dispatcher needs: who owns it and
// which WhatsApp line it answers.
type Bot struct {
	ID                string
	UserID            string
	PhoneNumberID     string
	WhatsAppConnected bool
}

// FlowRecord is the read-only authored flow plus the knowledge sources
// attached to it. The core never writes flow definitions.
type FlowRecord struct {
	ID         string
	BotID      string
	UserID     string
	Definition []byte
	FileIDs    []string
	DocLinks   []string
}

// FlowStore reads bot and flow configuration from Postgres.
type FlowStore struct {
	pool *pgxpool.Pool
}

func NewFlowStore(pool *pgxpool.Pool) *FlowStore {
	return &FlowStore{pool: pool}
}

// BotByPhoneNumberID resolves the connected bot answering a WhatsApp line.
func (s *FlowStore) BotByPhoneNumberID(ctx context.Context, phoneNumberID string) (*Bot, error) {
	var b Bot
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, phone_number_id, whatsapp_connected
		 FROM bots
		 WHERE phone_number_id = $1 AND whatsapp_connected`,
		phoneNumberID).
		Scan(&b.ID, &b.UserID, &b.PhoneNumberID, &b.WhatsAppConnected)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &b, nil
}

// ActiveFlow returns the single active flow of a bot.
func (s *FlowStore) ActiveFlow(ctx context.Context, botID string) (*FlowRecord, error) {
	var f FlowRecord
	err := s.pool.QueryRow(ctx,
		`SELECT f.id, f.bot_id, b.user_id, f.definition, f.file_ids, f.doc_links
		 FROM flows f
		 JOIN bots b ON b.id = f.bot_id
		 WHERE f.bot_id = $1 AND f.status = 'active'`,
		botID).
		Scan(&f.ID, &f.BotID, &f.UserID, &f.Definition, &f.FileIDs, &f.DocLinks)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return &f, nil
}

// FlowsWithDocLinks lists active flows that have linked documents to
// re-sync periodically.
func (s *FlowStore) FlowsWithDocLinks(ctx context.Context) ([]FlowRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.id, f.bot_id, b.user_id, f.definition, f.file_ids, f.doc_links
		 FROM flows f
		 JOIN bots b ON b.id = f.bot_id
		 WHERE f.status = 'active' AND cardinality(f.doc_links) > 0`)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	defer rows.Close()

	var out []FlowRecord
	for rows.Next() {
		var f FlowRecord
		if err := rows.Scan(&f.ID, &f.BotID, &f.UserID, &f.Definition, &f.FileIDs, &f.DocLinks); err != nil {
			return nil, errx.WrapPostgres(err)
		}
		out = append(out, f)
	}
	if rows.Err() != nil {
		return nil, errx.WrapPostgres(rows.Err())
	}
	return out, nil
}
