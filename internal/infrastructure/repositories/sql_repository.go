package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Orelexa/gardrob/internal/domain/entities"
	domainrepos "github.com/Orelexa/gardrob/internal/domain/repositories"
	"github.com/Orelexa/gardrob/internal/domain/valueobjects"
)

// schema is portable between SQLite and PostgreSQL. Timestamps are unix
// milliseconds; outfit layers are a JSON document.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS models (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		name         TEXT NOT NULL,
		source_image TEXT NOT NULL DEFAULT '',
		model_image  TEXT NOT NULL,
		created_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_models_user ON models(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS wardrobe_items (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT '',
		image      TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wardrobe_items_user ON wardrobe_items(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS outfits (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		model_id   TEXT NOT NULL DEFAULT '',
		preview    TEXT NOT NULL,
		layers     TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outfits_user ON outfits(user_id, created_at)`,
}

// sqlitePragmas go in the DSN so every pooled connection gets them.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(10000)",
	"synchronous(NORMAL)",
}

// sqliteDSN appends the default pragmas to dsn, leaving any pragma the
// caller already set.
func sqliteDSN(dsn string) string {
	var params []string
	for _, p := range sqlitePragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(dsn, "_pragma="+name+"(") {
			continue
		}
		params = append(params, "_pragma="+p)
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// SQLStore persists models, wardrobe items and outfits through sqlx. The
// driver is "sqlite" (modernc) or "postgres" (lib/pq).
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var (
	_ domainrepos.ModelRepository    = (*SQLStore)(nil)
	_ domainrepos.WardrobeRepository = (*SQLStore)(nil)
	_ domainrepos.OutfitRepository   = (*SQLStore)(nil)
)

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// OpenSQLStore connects and, for SQLite, sets WAL, busy-timeout and
// synchronous pragmas on every connection. The schema is not created; call
// Migrate.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	source := dsn
	if driver == "sqlite" {
		source = sqliteDSN(dsn)
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == "sqlite" && strings.HasPrefix(dsn, ":memory:") {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	return NewSQLStore(db), nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type modelRow struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	Name        string `db:"name"`
	SourceImage string `db:"source_image"`
	ModelImage  string `db:"model_image"`
	CreatedAt   int64  `db:"created_at"`
}

func (r modelRow) toEntity() *entities.Model {
	return entities.RestoreModel(
		entities.ModelID(r.ID), r.UserID, r.Name,
		valueobjects.ImageRef(r.SourceImage), valueobjects.ImageRef(r.ModelImage),
		time.UnixMilli(r.CreatedAt).UTC(),
	)
}

func (s *SQLStore) SaveModel(ctx context.Context, model *entities.Model) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO models (id, user_id, name, source_image, model_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, model_image = excluded.model_image
	`), string(model.ID()), model.UserID(), model.Name(), model.SourceImage().String(), model.ModelImage().String(), model.CreatedAt().UnixMilli())
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

func (s *SQLStore) ListModels(ctx context.Context, userID string) ([]*entities.Model, error) {
	var rows []modelRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, user_id, name, source_image, model_image, created_at
		FROM models WHERE user_id = ? ORDER BY created_at
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	out := make([]*entities.Model, len(rows))
	for i, r := range rows {
		out[i] = r.toEntity()
	}
	return out, nil
}

func (s *SQLStore) FindModel(ctx context.Context, userID string, id entities.ModelID) (*entities.Model, error) {
	var row modelRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, user_id, name, source_image, model_image, created_at
		FROM models WHERE user_id = ? AND id = ?
	`), userID, string(id))
	if err != nil {
		return nil, notFound("model", string(id), err)
	}
	return row.toEntity(), nil
}

func (s *SQLStore) DeleteModel(ctx context.Context, userID string, id entities.ModelID) error {
	return s.deleteRow(ctx, "models", "model", userID, string(id))
}

type itemRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Name      string `db:"name"`
	Category  string `db:"category"`
	Image     string `db:"image"`
	CreatedAt int64  `db:"created_at"`
}

func (r itemRow) toEntity() (*entities.WardrobeItem, error) {
	garment, err := entities.NewGarmentRef(entities.GarmentID(r.ID), r.Name, r.Category, valueobjects.ImageRef(r.Image))
	if err != nil {
		return nil, fmt.Errorf("garment %s: %w", r.ID, err)
	}
	return entities.RestoreWardrobeItem(garment, r.UserID, time.UnixMilli(r.CreatedAt).UTC()), nil
}

func (s *SQLStore) SaveItem(ctx context.Context, item *entities.WardrobeItem) error {
	g := item.Garment()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO wardrobe_items (id, user_id, name, category, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, category = excluded.category, image = excluded.image
	`), string(item.ID()), item.UserID(), g.Name(), g.Category(), g.Image().String(), item.CreatedAt().UnixMilli())
	if err != nil {
		return fmt.Errorf("save garment: %w", err)
	}
	return nil
}

func (s *SQLStore) ListItems(ctx context.Context, userID string) ([]*entities.WardrobeItem, error) {
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, user_id, name, category, image, created_at
		FROM wardrobe_items WHERE user_id = ? ORDER BY created_at
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list garments: %w", err)
	}

	out := make([]*entities.WardrobeItem, 0, len(rows))
	for _, r := range rows {
		item, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *SQLStore) FindItem(ctx context.Context, userID string, id entities.GarmentID) (*entities.WardrobeItem, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, user_id, name, category, image, created_at
		FROM wardrobe_items WHERE user_id = ? AND id = ?
	`), userID, string(id))
	if err != nil {
		return nil, notFound("garment", string(id), err)
	}
	return row.toEntity()
}

func (s *SQLStore) DeleteItem(ctx context.Context, userID string, id entities.GarmentID) error {
	return s.deleteRow(ctx, "wardrobe_items", "garment", userID, string(id))
}

type outfitRow struct {
	ID        string `db:"id"`
	UserID    string `db:"user_id"`
	Name      string `db:"name"`
	ModelID   string `db:"model_id"`
	Preview   string `db:"preview"`
	Layers    string `db:"layers"`
	CreatedAt int64  `db:"created_at"`
}

// layerRecord is the stored form of one outfit layer. The garment fields
// are empty for the root layer.
type layerRecord struct {
	GarmentID    string `json:"garmentId,omitempty"`
	GarmentName  string `json:"garmentName,omitempty"`
	Category     string `json:"category,omitempty"`
	GarmentImage string `json:"garmentImage,omitempty"`
	Image        string `json:"image"`
}

func encodeLayers(layers []entities.SavedLayer) (string, error) {
	records := make([]layerRecord, len(layers))
	for i, l := range layers {
		records[i].Image = l.Image().String()
		if g := l.Garment(); g != nil {
			records[i].GarmentID = string(g.ID())
			records[i].GarmentName = g.Name()
			records[i].Category = g.Category()
			records[i].GarmentImage = g.Image().String()
		}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeLayers(data string) ([]entities.SavedLayer, error) {
	var records []layerRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, err
	}

	layers := make([]entities.SavedLayer, len(records))
	for i, r := range records {
		var garment *entities.GarmentRef
		if r.GarmentID != "" {
			g, err := entities.NewGarmentRef(entities.GarmentID(r.GarmentID), r.GarmentName, r.Category, valueobjects.ImageRef(r.GarmentImage))
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			garment = g
		}
		layers[i] = entities.NewSavedLayer(garment, valueobjects.ImageRef(r.Image))
	}
	return layers, nil
}

func (r outfitRow) toEntity() (*entities.SavedOutfit, error) {
	layers, err := decodeLayers(r.Layers)
	if err != nil {
		return nil, fmt.Errorf("outfit %s: %w", r.ID, err)
	}

	draft, err := entities.NewOutfitDraft(r.UserID, r.Name, entities.ModelID(r.ModelID), valueobjects.ImageRef(r.Preview), layers)
	if err != nil {
		return nil, fmt.Errorf("outfit %s: %w", r.ID, err)
	}
	return draft.Persist(entities.SavedOutfitID(r.ID), time.UnixMilli(r.CreatedAt).UTC()), nil
}

func (s *SQLStore) SaveOutfit(ctx context.Context, draft *entities.OutfitDraft) (*entities.SavedOutfit, error) {
	layers, err := encodeLayers(draft.Layers())
	if err != nil {
		return nil, fmt.Errorf("encode layers: %w", err)
	}

	outfit := draft.Persist(entities.NewSavedOutfitID(), s.now().Truncate(time.Millisecond))

	_, err = s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO outfits (id, user_id, name, model_id, preview, layers, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), string(outfit.ID()), outfit.UserID(), outfit.Name(), string(outfit.ModelID()), outfit.Preview().String(), layers, outfit.CreatedAt().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("save outfit: %w", err)
	}
	return outfit, nil
}

func (s *SQLStore) ListOutfits(ctx context.Context, userID string) ([]*entities.SavedOutfit, error) {
	var rows []outfitRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`
		SELECT id, user_id, name, model_id, preview, layers, created_at
		FROM outfits WHERE user_id = ? ORDER BY created_at DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list outfits: %w", err)
	}

	out := make([]*entities.SavedOutfit, 0, len(rows))
	for _, r := range rows {
		outfit, err := r.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, outfit)
	}
	return out, nil
}

func (s *SQLStore) FindOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) (*entities.SavedOutfit, error) {
	var row outfitRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT id, user_id, name, model_id, preview, layers, created_at
		FROM outfits WHERE user_id = ? AND id = ?
	`), userID, string(id))
	if err != nil {
		return nil, notFound("outfit", string(id), err)
	}
	return row.toEntity()
}

func (s *SQLStore) DeleteOutfit(ctx context.Context, userID string, id entities.SavedOutfitID) error {
	return s.deleteRow(ctx, "outfits", "outfit", userID, string(id))
}

// deleteRow removes one user-owned row. table is always a package constant.
func (s *SQLStore) deleteRow(ctx context.Context, table, kind, userID, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domainrepos.ErrNotFound)
	}
	return nil
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, domainrepos.ErrNotFound)
	}
	return fmt.Errorf("find %s: %w", kind, err)
}
