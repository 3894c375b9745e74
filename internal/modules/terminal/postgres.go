package terminal

import (
	"context"
	"database/sql"
	"time"
)

type postgresStore struct{ db *sql.DB }

// NewPostgresStore persists terminals in the shared application database.
func NewPostgresStore(db *sql.DB) Store { return &postgresStore{db: db} }

func (s *postgresStore) Load(ctx context.Context) ([]Terminal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, address, port, credential, terminal_type, serial_number, model,
		       cap_nfc, cap_card_present, cap_chip, cap_swipe, cap_tap, last_verified
		FROM terminals ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var terminals []Terminal
	for rows.Next() {
		var t Terminal
		var lastVerified sql.NullTime
		if err := rows.Scan(&t.ID, &t.Name, &t.Address, &t.Port, &t.Credential,
			&t.TerminalType, &t.SerialNumber, &t.Model,
			&t.Capabilities.NFC, &t.Capabilities.CardPresent, &t.Capabilities.Chip,
			&t.Capabilities.Swipe, &t.Capabilities.Tap, &lastVerified); err != nil {
			return nil, err
		}
		if lastVerified.Valid {
			t.LastVerified = lastVerified.Time
		}
		terminals = append(terminals, t)
	}
	return terminals, rows.Err()
}

func (s *postgresStore) Save(ctx context.Context, terminals []Terminal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range terminals {
		var lastVerified interface{}
		if !t.LastVerified.IsZero() {
			lastVerified = t.LastVerified.UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO terminals
			  (id, name, address, port, credential, terminal_type, serial_number, model,
			   cap_nfc, cap_card_present, cap_chip, cap_swipe, cap_tap, last_verified, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
			ON CONFLICT (id) DO UPDATE SET
			  name=EXCLUDED.name, address=EXCLUDED.address, port=EXCLUDED.port,
			  credential=EXCLUDED.credential, terminal_type=EXCLUDED.terminal_type,
			  serial_number=EXCLUDED.serial_number, model=EXCLUDED.model,
			  cap_nfc=EXCLUDED.cap_nfc, cap_card_present=EXCLUDED.cap_card_present,
			  cap_chip=EXCLUDED.cap_chip, cap_swipe=EXCLUDED.cap_swipe, cap_tap=EXCLUDED.cap_tap,
			  last_verified=EXCLUDED.last_verified, updated_at=EXCLUDED.updated_at`,
			t.ID, t.Name, t.Address, t.Port, t.Credential, t.TerminalType,
			t.SerialNumber, t.Model,
			t.Capabilities.NFC, t.Capabilities.CardPresent, t.Capabilities.Chip,
			t.Capabilities.Swipe, t.Capabilities.Tap, lastVerified, time.Now().UTC())
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}
