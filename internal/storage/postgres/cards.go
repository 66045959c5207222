package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foodchain/foodchain-server-go/internal/game/card"
)

// cardsSchema creates the catalog table. Effects are stored as the catalog's
// trigger -> descriptor list map in a jsonb column.
const cardsSchema = `
CREATE TABLE IF NOT EXISTS cards (
	id                 TEXT PRIMARY KEY,
	name               TEXT    NOT NULL,
	card_type          TEXT    NOT NULL,
	atk                INTEGER NOT NULL DEFAULT 0,
	hp                 INTEGER NOT NULL DEFAULT 0,
	nutrition          INTEGER NOT NULL DEFAULT 0,
	tribe              TEXT    NOT NULL DEFAULT '',
	keywords           TEXT[]  NOT NULL DEFAULT '{}',
	shell_level        INTEGER NOT NULL DEFAULT 0,
	token              BOOLEAN NOT NULL DEFAULT FALSE,
	field_spell        BOOLEAN NOT NULL DEFAULT FALSE,
	transform_on_start TEXT    NOT NULL DEFAULT '',
	post_combat_regen  BOOLEAN NOT NULL DEFAULT FALSE,
	effects            JSONB   NOT NULL DEFAULT '{}'::jsonb,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const cardColumns = `id, name, card_type, atk, hp, nutrition, tribe, keywords, shell_level,
	token, field_spell, transform_on_start, post_combat_regen, effects`

// cardRow is one row of the cards table.
type cardRow struct {
	ID               string
	Name             string
	Type             string
	Atk              int
	HP               int
	Nutrition        int
	Tribe            string
	Keywords         []string
	ShellLevel       int
	Token            bool
	FieldSpell       bool
	TransformOnStart string
	PostCombatRegen  bool
	Effects          []byte
}

func rowFromSpec(s card.CardSpec) (cardRow, error) {
	effects := s.Effects
	if effects == nil {
		effects = map[string][]card.EffectSpec{}
	}
	raw, err := json.Marshal(effects)
	if err != nil {
		return cardRow{}, fmt.Errorf("encoding effects of %s: %w", s.ID, err)
	}
	keywords := s.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return cardRow{
		ID:               s.ID,
		Name:             s.Name,
		Type:             s.Type,
		Atk:              s.Atk,
		HP:               s.HP,
		Nutrition:        s.Nutrition,
		Tribe:            s.Tribe,
		Keywords:         keywords,
		ShellLevel:       s.ShellLevel,
		Token:            s.Token,
		FieldSpell:       s.FieldSpell,
		TransformOnStart: s.TransformOnStart,
		PostCombatRegen:  s.PostCombatRegen,
		Effects:          raw,
	}, nil
}

func (r cardRow) spec() (card.CardSpec, error) {
	s := card.CardSpec{
		ID:               r.ID,
		Name:             r.Name,
		Type:             r.Type,
		Atk:              r.Atk,
		HP:               r.HP,
		Nutrition:        r.Nutrition,
		Tribe:            r.Tribe,
		Keywords:         r.Keywords,
		ShellLevel:       r.ShellLevel,
		Token:            r.Token,
		FieldSpell:       r.FieldSpell,
		TransformOnStart: r.TransformOnStart,
		PostCombatRegen:  r.PostCombatRegen,
	}
	if len(r.Effects) > 0 {
		if err := json.Unmarshal(r.Effects, &s.Effects); err != nil {
			return card.CardSpec{}, fmt.Errorf("decoding effects of %s: %w", r.ID, err)
		}
		if len(s.Effects) == 0 {
			s.Effects = nil
		}
	}
	return s, nil
}

// CardStore persists card definitions.
type CardStore struct {
	db *pgxpool.Pool
}

// NewCardStore creates a store backed by db.
func NewCardStore(db *pgxpool.Pool) *CardStore {
	return &CardStore{db: db}
}

// EnsureSchema creates the cards table if it does not exist.
func (s *CardStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, cardsSchema); err != nil {
		return fmt.Errorf("creating cards table: %w", err)
	}
	return nil
}

// Upsert writes specs in one transaction, replacing existing rows by id.
func (s *CardStore) Upsert(ctx context.Context, specs []card.CardSpec) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, spec := range specs {
		row, err := rowFromSpec(spec)
		if err != nil {
			return 0, err
		}
		batch.Queue(`
			INSERT INTO cards (`+cardColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				card_type = EXCLUDED.card_type,
				atk = EXCLUDED.atk,
				hp = EXCLUDED.hp,
				nutrition = EXCLUDED.nutrition,
				tribe = EXCLUDED.tribe,
				keywords = EXCLUDED.keywords,
				shell_level = EXCLUDED.shell_level,
				token = EXCLUDED.token,
				field_spell = EXCLUDED.field_spell,
				transform_on_start = EXCLUDED.transform_on_start,
				post_combat_regen = EXCLUDED.post_combat_regen,
				effects = EXCLUDED.effects,
				updated_at = now()`,
			row.ID, row.Name, row.Type, row.Atk, row.HP, row.Nutrition, row.Tribe, row.Keywords,
			row.ShellLevel, row.Token, row.FieldSpell, row.TransformOnStart, row.PostCombatRegen, row.Effects,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("writing cards: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing cards: %w", err)
	}
	return len(specs), nil
}

// Count returns the number of stored cards.
func (s *CardStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM cards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cards: %w", err)
	}
	return n, nil
}

// Specs returns every stored card ordered by id.
func (s *CardStore) Specs(ctx context.Context) ([]card.CardSpec, error) {
	rows, err := s.db.Query(ctx, `SELECT `+cardColumns+` FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying cards: %w", err)
	}
	defer rows.Close()

	var specs []card.CardSpec
	for rows.Next() {
		var r cardRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Type, &r.Atk, &r.HP, &r.Nutrition, &r.Tribe, &r.Keywords,
			&r.ShellLevel, &r.Token, &r.FieldSpell, &r.TransformOnStart, &r.PostCombatRegen, &r.Effects); err != nil {
			return nil, fmt.Errorf("scanning card: %w", err)
		}
		spec, err := r.spec()
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cards: %w", err)
	}
	return specs, nil
}

// LoadCatalog builds a validated catalog from the stored cards.
func (s *CardStore) LoadCatalog(ctx context.Context) (*card.Catalog, error) {
	specs, err := s.Specs(ctx)
	if err != nil {
		return nil, err
	}
	return card.NewCatalogFromSpecs(specs)
}
