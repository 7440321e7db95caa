package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/neomorfeo/apsconnect/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: InstallationRepository implements domain.InstallationRepository.
var _ domain.InstallationRepository = (*InstallationRepository)(nil)

// InstallationRepository implements domain.InstallationRepository using SQLite.
type InstallationRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*InstallationRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns a ready repository.
// Use this when the *sql.DB has been pre-configured (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*InstallationRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &InstallationRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *InstallationRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters (e.g., river).
func (r *InstallationRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// GetByOAuthKey returns the installation OA signs its calls with oauthKey for.
func (r *InstallationRepository) GetByOAuthKey(ctx context.Context, oauthKey string) (domain.Installation, error) {
	var inst domain.Installation
	err := r.db.QueryRowContext(ctx,
		`SELECT oauth_key, oauth_secret, product_id, installation_id
		 FROM configuration WHERE oauth_key = ?`, oauthKey,
	).Scan(&inst.OAuthKey, &inst.OAuthSecret, &inst.ProductID, &inst.InstallationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Installation{}, domain.ErrConfigurationNotFound
		}
		return domain.Installation{}, fmt.Errorf("scanning configuration: %w", err)
	}
	return inst, nil
}

// Save stores an installation, replacing the one with the same OAuth key.
func (r *InstallationRepository) Save(ctx context.Context, inst domain.Installation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO configuration (oauth_key, oauth_secret, product_id, installation_id)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(oauth_key) DO UPDATE SET
		   oauth_secret = excluded.oauth_secret,
		   product_id = excluded.product_id,
		   installation_id = excluded.installation_id`,
		inst.OAuthKey, inst.OAuthSecret, inst.ProductID, inst.InstallationID,
	)
	if err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return nil
}

// BindApp records the hub an application instance was installed on.
func (r *InstallationRepository) BindApp(ctx context.Context, appID, hubID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO global_app_configuration (app_instance_id, hub_uuid)
		 VALUES (?, ?)
		 ON CONFLICT(app_instance_id) DO UPDATE SET hub_uuid = excluded.hub_uuid`,
		appID, hubID,
	)
	if err != nil {
		return fmt.Errorf("binding app instance: %w", err)
	}
	return nil
}

// HubForApp returns the hub an application instance is bound to.
func (r *InstallationRepository) HubForApp(ctx context.Context, appID string) (string, error) {
	var hubID string
	err := r.db.QueryRowContext(ctx,
		`SELECT hub_uuid FROM global_app_configuration WHERE app_instance_id = ?`, appID,
	).Scan(&hubID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrHubNotFound
		}
		return "", fmt.Errorf("scanning app binding: %w", err)
	}
	return hubID, nil
}

// UnbindApp removes the hub binding of an application instance.
func (r *InstallationRepository) UnbindApp(ctx context.Context, appID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM global_app_configuration WHERE app_instance_id = ?`, appID,
	)
	if err != nil {
		return fmt.Errorf("unbinding app instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAppInstanceNotFound
	}
	return nil
}

// TouchHub records the controller a hub was last seen calling from.
func (r *InstallationRepository) TouchHub(ctx context.Context, hub domain.HubInstance) error {
	lastCheck := hub.LastCheck
	if lastCheck.IsZero() {
		lastCheck = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hub_instances (hub_id, app_instance_id, controller_uri, last_check)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(hub_id) DO UPDATE SET
		   app_instance_id = excluded.app_instance_id,
		   controller_uri = excluded.controller_uri,
		   last_check = excluded.last_check`,
		hub.HubID, hub.AppInstanceID, hub.ControllerURI, lastCheck.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("touching hub: %w", err)
	}
	return nil
}
