package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// settingsKey is the single key under which branding settings are stored.
const settingsKey = "GLOBAL_SETTINGS"

// getDoc decodes the document under key into a new T, or returns (nil, nil).
func getDoc[T any](ctx context.Context, store DocumentStore, collection, key string) (*T, error) {
	raw, err := store.Get(ctx, collection, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("storage: decode %s/%s: %w", collection, key, err)
	}
	return &v, nil
}

// putDoc encodes v and stores it under key.
func putDoc(ctx context.Context, store DocumentStore, collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage: encode %s/%s: %w", collection, key, err)
	}
	return store.Put(ctx, collection, key, raw)
}

// listDocs decodes every document in collection.
func listDocs[T any](ctx context.Context, store DocumentStore, collection string) ([]T, error) {
	docs, err := store.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Data, &v); err != nil {
			return nil, fmt.Errorf("storage: decode %s/%s: %w", collection, d.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// ShipmentsRepository
// ---------------------------------------------------------------------------

type docShipmentsRepository struct {
	store DocumentStore
}

// NewShipmentsRepository creates a ShipmentsRepository backed by store.
func NewShipmentsRepository(store DocumentStore) ShipmentsRepository {
	return &docShipmentsRepository{store: store}
}

func (r *docShipmentsRepository) GetShipment(ctx context.Context, code string) (*Shipment, error) {
	s, err := getDoc[Shipment](ctx, r.store, CollectionShipments, code)
	if err != nil {
		return nil, fmt.Errorf("storage: GetShipment: %w", err)
	}
	return s, nil
}

func (r *docShipmentsRepository) ListShipments(ctx context.Context) ([]Shipment, error) {
	out, err := listDocs[Shipment](ctx, r.store, CollectionShipments)
	if err != nil {
		return nil, fmt.Errorf("storage: ListShipments: %w", err)
	}
	return out, nil
}

func (r *docShipmentsRepository) UpsertShipment(ctx context.Context, s *Shipment) error {
	if s.Code == "" {
		return fmt.Errorf("storage: UpsertShipment: empty code")
	}
	if err := putDoc(ctx, r.store, CollectionShipments, s.Code, s); err != nil {
		return fmt.Errorf("storage: UpsertShipment: %w", err)
	}
	return nil
}

func (r *docShipmentsRepository) DeleteShipment(ctx context.Context, code string) error {
	if err := r.store.Delete(ctx, CollectionShipments, code); err != nil {
		return fmt.Errorf("storage: DeleteShipment: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// DriversRepository
// ---------------------------------------------------------------------------

type docDriversRepository struct {
	store DocumentStore
}

// NewDriversRepository creates a DriversRepository backed by store.
func NewDriversRepository(store DocumentStore) DriversRepository {
	return &docDriversRepository{store: store}
}

func (r *docDriversRepository) GetDriver(ctx context.Context, id string) (*Driver, error) {
	d, err := getDoc[Driver](ctx, r.store, CollectionDrivers, id)
	if err != nil {
		return nil, fmt.Errorf("storage: GetDriver: %w", err)
	}
	return d, nil
}

func (r *docDriversRepository) ListDrivers(ctx context.Context) ([]Driver, error) {
	out, err := listDocs[Driver](ctx, r.store, CollectionDrivers)
	if err != nil {
		return nil, fmt.Errorf("storage: ListDrivers: %w", err)
	}
	return out, nil
}

func (r *docDriversRepository) UpsertDriver(ctx context.Context, d *Driver) error {
	if d.ID == "" {
		return fmt.Errorf("storage: UpsertDriver: empty id")
	}
	if err := putDoc(ctx, r.store, CollectionDrivers, d.ID, d); err != nil {
		return fmt.Errorf("storage: UpsertDriver: %w", err)
	}
	return nil
}

func (r *docDriversRepository) DeleteDriver(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionDrivers, id); err != nil {
		return fmt.Errorf("storage: DeleteDriver: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// UsersRepository
// ---------------------------------------------------------------------------

type docUsersRepository struct {
	store DocumentStore
}

// NewUsersRepository creates a UsersRepository backed by store.
func NewUsersRepository(store DocumentStore) UsersRepository {
	return &docUsersRepository{store: store}
}

func (r *docUsersRepository) GetUser(ctx context.Context, username string) (*AdminUser, error) {
	u, err := getDoc[AdminUser](ctx, r.store, CollectionUsers, username)
	if err != nil {
		return nil, fmt.Errorf("storage: GetUser: %w", err)
	}
	return u, nil
}

func (r *docUsersRepository) ListUsers(ctx context.Context) ([]AdminUser, error) {
	out, err := listDocs[AdminUser](ctx, r.store, CollectionUsers)
	if err != nil {
		return nil, fmt.Errorf("storage: ListUsers: %w", err)
	}
	return out, nil
}

func (r *docUsersRepository) UpsertUser(ctx context.Context, u *AdminUser) error {
	if u.Username == "" {
		return fmt.Errorf("storage: UpsertUser: empty username")
	}
	if err := putDoc(ctx, r.store, CollectionUsers, u.Username, u); err != nil {
		return fmt.Errorf("storage: UpsertUser: %w", err)
	}
	return nil
}

func (r *docUsersRepository) DeleteUser(ctx context.Context, username string) error {
	if err := r.store.Delete(ctx, CollectionUsers, username); err != nil {
		return fmt.Errorf("storage: DeleteUser: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// SettingsRepository
// ---------------------------------------------------------------------------

type docSettingsRepository struct {
	store DocumentStore
}

// NewSettingsRepository creates a SettingsRepository backed by store.
func NewSettingsRepository(store DocumentStore) SettingsRepository {
	return &docSettingsRepository{store: store}
}

func (r *docSettingsRepository) GetSettings(ctx context.Context) (*CompanySettings, error) {
	s, err := getDoc[CompanySettings](ctx, r.store, CollectionSettings, settingsKey)
	if err != nil {
		return nil, fmt.Errorf("storage: GetSettings: %w", err)
	}
	return s, nil
}

func (r *docSettingsRepository) SaveSettings(ctx context.Context, s *CompanySettings) error {
	if err := putDoc(ctx, r.store, CollectionSettings, settingsKey, s); err != nil {
		return fmt.Errorf("storage: SaveSettings: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// RefreshTokensRepository
// ---------------------------------------------------------------------------

type docRefreshTokensRepository struct {
	store DocumentStore
	now   func() time.Time
}

// NewRefreshTokensRepository creates a RefreshTokensRepository backed by store.
func NewRefreshTokensRepository(store DocumentStore) RefreshTokensRepository {
	return &docRefreshTokensRepository{store: store, now: time.Now}
}

func (r *docRefreshTokensRepository) StoreRefreshToken(ctx context.Context, tokenHash, username string, expiresAt time.Time) error {
	t := &RefreshToken{
		TokenHash: tokenHash,
		Username:  username,
		ExpiresAt: expiresAt,
		CreatedAt: r.now(),
	}
	if err := putDoc(ctx, r.store, CollectionRefreshTokens, tokenHash, t); err != nil {
		return fmt.Errorf("storage: StoreRefreshToken: %w", err)
	}
	return nil
}

func (r *docRefreshTokensRepository) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	t, err := getDoc[RefreshToken](ctx, r.store, CollectionRefreshTokens, tokenHash)
	if err != nil {
		return nil, fmt.Errorf("storage: GetRefreshToken: %w", err)
	}
	return t, nil
}

func (r *docRefreshTokensRepository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	t, err := r.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return err
	}
	if t == nil || t.Revoked {
		return nil
	}
	t.Revoked = true
	if err := putDoc(ctx, r.store, CollectionRefreshTokens, tokenHash, t); err != nil {
		return fmt.Errorf("storage: RevokeRefreshToken: %w", err)
	}
	return nil
}

func (r *docRefreshTokensRepository) RevokeAllUserTokens(ctx context.Context, username string) error {
	tokens, err := listDocs[RefreshToken](ctx, r.store, CollectionRefreshTokens)
	if err != nil {
		return fmt.Errorf("storage: RevokeAllUserTokens: %w", err)
	}
	for i := range tokens {
		t := &tokens[i]
		if t.Username != username || t.Revoked {
			continue
		}
		t.Revoked = true
		if err := putDoc(ctx, r.store, CollectionRefreshTokens, t.TokenHash, t); err != nil {
			return fmt.Errorf("storage: RevokeAllUserTokens: %w", err)
		}
	}
	return nil
}
