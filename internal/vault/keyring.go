package vault

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"tunelink/internal/domain"
)

const (
	keySize = 32

	secretsBusName     = "org.freedesktop.secrets"
	secretsServicePath = "/org/freedesktop/secrets"
	defaultCollection  = "/org/freedesktop/secrets/aliases/default"

	serviceIface    = "org.freedesktop.Secret.Service"
	collectionIface = "org.freedesktop.Secret.Collection"
	itemIface       = "org.freedesktop.Secret.Item"
)

// SecretsClient abstracts the org.freedesktop.secrets D-Bus surface the
// keyring needs. The indirection keeps the keyring testable without a
// session bus.
//
//go:generate mockgen -destination=mocks/secrets_client_mock.go -package=mocks tunelink/internal/vault SecretsClient
type SecretsClient interface {
	// Close closes the bus connection
	Close() error

	// OpenSession opens a plain (unencrypted transport) secrets session
	OpenSession() (dbus.ObjectPath, error)

	// SearchItems returns unlocked items matching the attributes
	SearchItems(attributes map[string]string) ([]dbus.ObjectPath, error)

	// CreateItem stores a secret in the default collection, replacing any
	// item with the same attributes
	CreateItem(session dbus.ObjectPath, label string, attributes map[string]string, secret []byte) (dbus.ObjectPath, error)

	// GetSecret reads the secret value of an item
	GetSecret(item, session dbus.ObjectPath) ([]byte, error)
}

// Keyring holds the vault key in the OS Secret Service. The key is created
// on first use and never leaves the keyring other than into process memory;
// it is never written to application storage.
type Keyring struct {
	logger *zap.Logger
	dial   func() (SecretsClient, error)

	mu     sync.Mutex
	client SecretsClient
	key    []byte
}

// NewKeyring creates a keyring that lazily connects to the session bus.
// Construction never fails; an unreachable Secret Service surfaces as
// ErrEncryptionUnavailable on first key use.
func NewKeyring(logger *zap.Logger) *Keyring {
	return &Keyring{
		logger: logger,
		dial: func() (SecretsClient, error) {
			return NewStdSecretsClient()
		},
	}
}

// Key returns the 32-byte vault key, creating it in the keyring on first use
func (k *Keyring) Key(ctx context.Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.key != nil {
		return append([]byte(nil), k.key...), nil
	}

	if k.client == nil {
		client, err := k.dial()
		if err != nil {
			return nil, fmt.Errorf("%w: secret service: %v", domain.ErrEncryptionUnavailable, err)
		}
		k.client = client
	}

	session, err := k.client.OpenSession()
	if err != nil {
		return nil, fmt.Errorf("%w: open session: %v", domain.ErrEncryptionUnavailable, err)
	}

	attributes := map[string]string{
		"application": "tunelink",
		"purpose":     "secret-vault",
	}

	items, err := k.client.SearchItems(attributes)
	if err != nil {
		return nil, fmt.Errorf("%w: search items: %v", domain.ErrEncryptionUnavailable, err)
	}

	if len(items) > 0 {
		secret, err := k.client.GetSecret(items[0], session)
		if err != nil {
			return nil, fmt.Errorf("%w: get secret: %v", domain.ErrEncryptionUnavailable, err)
		}
		if len(secret) == keySize {
			k.key = secret
			k.logger.Debug("Vault key loaded from OS keyring")
			return append([]byte(nil), k.key...), nil
		}
		// Unusable entry; fall through and replace it
		k.logger.Warn("Keyring entry has unexpected size, replacing",
			zap.Int("size", len(secret)))
	}

	fresh := make([]byte, keySize)
	if _, err := rand.Read(fresh); err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", domain.ErrEncryptionUnavailable, err)
	}

	if _, err := k.client.CreateItem(session, "Tunelink vault key", attributes, fresh); err != nil {
		return nil, fmt.Errorf("%w: create item: %v", domain.ErrEncryptionUnavailable, err)
	}

	k.key = fresh
	k.logger.Info("Vault key created in OS keyring")
	return append([]byte(nil), k.key...), nil
}

// Close releases the bus connection
func (k *Keyring) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.client == nil {
		return nil
	}
	err := k.client.Close()
	k.client = nil
	return err
}

// dbusSecret matches the Secret Service (oayays) secret struct
type dbusSecret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// StdSecretsClient is the real Secret Service client over the session bus
type StdSecretsClient struct {
	conn *dbus.Conn
}

// NewStdSecretsClient connects to the session bus
func NewStdSecretsClient() (*StdSecretsClient, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdSecretsClient{conn: conn}, nil
}

// Close closes the bus connection
func (c *StdSecretsClient) Close() error {
	return c.conn.Close()
}

// OpenSession opens a plain secrets session
func (c *StdSecretsClient) OpenSession() (dbus.ObjectPath, error) {
	service := c.conn.Object(secretsBusName, secretsServicePath)

	var output dbus.Variant
	var session dbus.ObjectPath
	err := service.Call(serviceIface+".OpenSession", 0, "plain", dbus.MakeVariant("")).
		Store(&output, &session)
	return session, err
}

// SearchItems returns unlocked items matching the attributes
func (c *StdSecretsClient) SearchItems(attributes map[string]string) ([]dbus.ObjectPath, error) {
	service := c.conn.Object(secretsBusName, secretsServicePath)

	var unlocked, locked []dbus.ObjectPath
	err := service.Call(serviceIface+".SearchItems", 0, attributes).
		Store(&unlocked, &locked)
	return unlocked, err
}

// CreateItem stores a secret in the default collection
func (c *StdSecretsClient) CreateItem(session dbus.ObjectPath, label string, attributes map[string]string, secret []byte) (dbus.ObjectPath, error) {
	collection := c.conn.Object(secretsBusName, defaultCollection)

	properties := map[string]dbus.Variant{
		itemIface + ".Label":      dbus.MakeVariant(label),
		itemIface + ".Attributes": dbus.MakeVariant(attributes),
	}
	payload := dbusSecret{
		Session:     session,
		Value:       secret,
		ContentType: "application/octet-stream",
	}

	var item, prompt dbus.ObjectPath
	err := collection.Call(collectionIface+".CreateItem", 0, properties, payload, true).
		Store(&item, &prompt)
	return item, err
}

// GetSecret reads the secret value of an item
func (c *StdSecretsClient) GetSecret(item, session dbus.ObjectPath) ([]byte, error) {
	obj := c.conn.Object(secretsBusName, item)

	var secret dbusSecret
	if err := obj.Call(itemIface+".GetSecret", 0, session).Store(&secret); err != nil {
		return nil, err
	}
	return secret.Value, nil
}
