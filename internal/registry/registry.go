// Package registry persists Tool registrations: the per-Tool endpoints,
// credentials and key material every launch and token grant resolves
// against.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ErrToolNotFound means no registration matches the lookup key.
var ErrToolNotFound = errors.New("registry: tool not found")

// Tool is one registered external tool. LTI 1.1 tools carry OAuth1
// credentials; LTI 1.3 tools carry a client_id plus key material. A row
// may carry both during a 1.1 to 1.3 migration.
type Tool struct {
	ID    string
	Title string

	LaunchURL string

	// LTI 1.1 credentials.
	OAuthKey    string
	OAuthSecret string

	// LTI 1.3 registration.
	ClientID     string
	DeploymentID string
	OIDCURL      string

	// Tool verification key material: a pinned PEM public key, a remote
	// keyset URL, or both.
	PublicKeyPEM string
	KeysetURL    string

	// SecretHash is the bcrypt hash backing the client_secret_post
	// fallback at the token endpoint. Empty disables the fallback.
	SecretHash string

	// AllowedScopes restricts token grants; empty means the platform
	// default scope set.
	AllowedScopes []string
}

// Store is the dual-driver SQL registry.
type Store struct {
	db     *sql.DB
	driver Driver
}

// Open opens the registry DB and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:lticore.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/lticore?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("registry: unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaFor(driver)); err != nil {
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces a registration by id.
func (s *Store) Upsert(ctx context.Context, t Tool) error {
	q := `
INSERT INTO tools (id, title, launch_url, oauth_key, oauth_secret,
  client_id, deployment_id, oidc_url, public_key_pem, keyset_url,
  secret_hash, allowed_scopes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  title=EXCLUDED.title, launch_url=EXCLUDED.launch_url,
  oauth_key=EXCLUDED.oauth_key, oauth_secret=EXCLUDED.oauth_secret,
  client_id=EXCLUDED.client_id, deployment_id=EXCLUDED.deployment_id,
  oidc_url=EXCLUDED.oidc_url, public_key_pem=EXCLUDED.public_key_pem,
  keyset_url=EXCLUDED.keyset_url, secret_hash=EXCLUDED.secret_hash,
  allowed_scopes=EXCLUDED.allowed_scopes`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		t.ID, t.Title, t.LaunchURL, t.OAuthKey, t.OAuthSecret,
		t.ClientID, t.DeploymentID, t.OIDCURL, t.PublicKeyPEM, t.KeysetURL,
		t.SecretHash, strings.Join(t.AllowedScopes, " "))
	return err
}

// Get resolves a registration by id.
func (s *Store) Get(ctx context.Context, id string) (Tool, error) {
	return s.getBy(ctx, "id", id)
}

// GetByClientID resolves an LTI 1.3 registration by its OAuth client id.
func (s *Store) GetByClientID(ctx context.Context, clientID string) (Tool, error) {
	return s.getBy(ctx, "client_id", clientID)
}

// GetByOAuthKey resolves an LTI 1.1 registration by its consumer key.
func (s *Store) GetByOAuthKey(ctx context.Context, key string) (Tool, error) {
	return s.getBy(ctx, "oauth_key", key)
}

func (s *Store) getBy(ctx context.Context, col, val string) (Tool, error) {
	q := `
SELECT id, title, launch_url, oauth_key, oauth_secret,
  client_id, deployment_id, oidc_url, public_key_pem, keyset_url,
  secret_hash, allowed_scopes
FROM tools WHERE ` + col + ` = $1`
	var t Tool
	var scopes string
	err := s.db.QueryRowContext(ctx, s.rebind(q), val).Scan(
		&t.ID, &t.Title, &t.LaunchURL, &t.OAuthKey, &t.OAuthSecret,
		&t.ClientID, &t.DeploymentID, &t.OIDCURL, &t.PublicKeyPEM, &t.KeysetURL,
		&t.SecretHash, &scopes)
	if errors.Is(err, sql.ErrNoRows) {
		return Tool{}, ErrToolNotFound
	}
	if err != nil {
		return Tool{}, err
	}
	if scopes != "" {
		t.AllowedScopes = strings.Fields(scopes)
	}
	return t, nil
}

// Delete removes a registration. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM tools WHERE id = $1`), id)
	return err
}

// rebind rewrites $N placeholders for SQLite, which wants ?.
func (s *Store) rebind(q string) string {
	if s.driver == DriverPostgres {
		return q
	}
	out := q
	for i := 12; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), "?")
	}
	return out
}

func schemaFor(driver Driver) string {
	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT," // BIGSERIAL in Postgres
	if driver == DriverPostgres {
		idCol = "id BIGSERIAL PRIMARY KEY,"
	}
	return `
CREATE TABLE IF NOT EXISTS tools (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  launch_url TEXT NOT NULL DEFAULT '',
  oauth_key TEXT NOT NULL DEFAULT '',
  oauth_secret TEXT NOT NULL DEFAULT '',
  client_id TEXT NOT NULL DEFAULT '',
  deployment_id TEXT NOT NULL DEFAULT '',
  oidc_url TEXT NOT NULL DEFAULT '',
  public_key_pem TEXT NOT NULL DEFAULT '',
  keyset_url TEXT NOT NULL DEFAULT '',
  secret_hash TEXT NOT NULL DEFAULT '',
  allowed_scopes TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tools_client_id ON tools (client_id);
CREATE INDEX IF NOT EXISTS idx_tools_oauth_key ON tools (oauth_key);

CREATE TABLE IF NOT EXISTS scores (
  tool_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  score REAL,
  comment TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (tool_id, user_id)
);

CREATE TABLE IF NOT EXISTS content_items (
  ` + idCol + `
  tool_id TEXT NOT NULL,
  item_type TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`
}
