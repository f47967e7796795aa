package vault

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"tunelink/internal/domain"
	"tunelink/internal/vault/mocks"
)

func newTestKeyring(client SecretsClient) *Keyring {
	return &Keyring{
		logger: zap.NewNop(),
		dial:   func() (SecretsClient, error) { return client, nil },
	}
}

func TestKeyring_LoadsExistingKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockSecretsClient(ctrl)

	session := dbus.ObjectPath("/org/freedesktop/secrets/session/s1")
	item := dbus.ObjectPath("/org/freedesktop/secrets/collection/login/42")
	stored := testKey()

	mock.EXPECT().OpenSession().Return(session, nil)
	mock.EXPECT().SearchItems(gomock.Any()).Return([]dbus.ObjectPath{item}, nil)
	mock.EXPECT().GetSecret(item, session).Return(stored, nil)

	k := newTestKeyring(mock)
	key, err := k.Key(context.Background())
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if !bytes.Equal(key, stored) {
		t.Error("returned key differs from the stored secret")
	}

	// Second call must serve from the cache without touching the bus
	again, err := k.Key(context.Background())
	if err != nil {
		t.Fatalf("cached Key failed: %v", err)
	}
	if !bytes.Equal(again, stored) {
		t.Error("cached key differs from the stored secret")
	}
}

func TestKeyring_CreatesKeyWhenAbsent(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockSecretsClient(ctrl)

	session := dbus.ObjectPath("/org/freedesktop/secrets/session/s1")
	item := dbus.ObjectPath("/org/freedesktop/secrets/collection/login/43")

	var created []byte
	mock.EXPECT().OpenSession().Return(session, nil)
	mock.EXPECT().SearchItems(gomock.Any()).Return(nil, nil)
	mock.EXPECT().CreateItem(session, gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ dbus.ObjectPath, _ string, _ map[string]string, secret []byte) (dbus.ObjectPath, error) {
			created = append([]byte(nil), secret...)
			return item, nil
		})

	k := newTestKeyring(mock)
	key, err := k.Key(context.Background())
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if len(key) != keySize {
		t.Fatalf("key size = %d, want %d", len(key), keySize)
	}
	if !bytes.Equal(key, created) {
		t.Error("returned key differs from the created secret")
	}
}

func TestKeyring_ReplacesUndersizedEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockSecretsClient(ctrl)

	session := dbus.ObjectPath("/org/freedesktop/secrets/session/s1")
	item := dbus.ObjectPath("/org/freedesktop/secrets/collection/login/44")

	mock.EXPECT().OpenSession().Return(session, nil)
	mock.EXPECT().SearchItems(gomock.Any()).Return([]dbus.ObjectPath{item}, nil)
	mock.EXPECT().GetSecret(item, session).Return([]byte("stale"), nil)
	mock.EXPECT().CreateItem(session, gomock.Any(), gomock.Any(), gomock.Any()).Return(item, nil)

	k := newTestKeyring(mock)
	key, err := k.Key(context.Background())
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if len(key) != keySize {
		t.Errorf("key size = %d, want %d", len(key), keySize)
	}
}

func TestKeyring_DialFailure(t *testing.T) {
	k := &Keyring{
		logger: zap.NewNop(),
		dial: func() (SecretsClient, error) {
			return nil, errors.New("no session bus")
		},
	}

	_, err := k.Key(context.Background())
	if !errors.Is(err, domain.ErrEncryptionUnavailable) {
		t.Errorf("expected ErrEncryptionUnavailable, got %v", err)
	}
}

func TestKeyring_SessionFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockSecretsClient(ctrl)

	mock.EXPECT().OpenSession().Return(dbus.ObjectPath(""), errors.New("denied"))

	k := newTestKeyring(mock)
	_, err := k.Key(context.Background())
	if !errors.Is(err, domain.ErrEncryptionUnavailable) {
		t.Errorf("expected ErrEncryptionUnavailable, got %v", err)
	}
}

func TestKeyring_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := mocks.NewMockSecretsClient(ctrl)

	session := dbus.ObjectPath("/org/freedesktop/secrets/session/s1")
	mock.EXPECT().OpenSession().Return(session, nil)
	mock.EXPECT().SearchItems(gomock.Any()).Return([]dbus.ObjectPath{"/item"}, nil)
	mock.EXPECT().GetSecret(dbus.ObjectPath("/item"), session).Return(testKey(), nil)
	mock.EXPECT().Close().Return(nil)

	k := newTestKeyring(mock)
	if _, err := k.Key(context.Background()); err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	if err := k.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Closing again is a no-op
	if err := k.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}
