package store

import (
	"context"
	"errors"
	"testing"

	"hr_assistant_bot/internal/config"
	"hr_assistant_bot/internal/domain"
)

func TestOpenSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	backend, err := Open(ctx, config.Config{StorageBackend: config.BackendSQLite, SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if backend.Name != config.BackendSQLite {
		t.Fatalf("expected sqlite backend, got %q", backend.Name)
	}
	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}

	user, err := backend.Users.CreateUser(ctx, domain.User{ExternalID: 5})
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if _, err := backend.Applications.CreateApplication(ctx, domain.Application{UserID: user.ID, Position: "QA", Region: "East"}); err != nil {
		t.Fatalf("CreateApplication returned error: %v", err)
	}

	if err := backend.Close(ctx); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if err := backend.Ping(ctx); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}

func TestOpenMongoBackendEnsuresIndexes(t *testing.T) {
	fake := newFakeMongoClient(t)
	restoreConnect := stubConnect(fake, nil)
	defer restoreConnect()

	recorder := newIndexRecorder(t, "")
	restoreIndexes := recorder.stub()
	defer restoreIndexes()

	ctx := context.Background()
	backend, err := Open(ctx, config.Config{StorageBackend: config.BackendMongo, MongoURI: "mongodb://localhost", MongoDB: "hr"})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	if backend.Name != config.BackendMongo {
		t.Fatalf("expected mongo backend, got %q", backend.Name)
	}
	if len(recorder.calls) != 2 {
		t.Fatalf("expected indexes on 2 collections, got %d", len(recorder.calls))
	}
	if err := backend.Ping(ctx); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if err := backend.Close(ctx); err != nil || !fake.disconnectCalled {
		t.Fatalf("expected close to disconnect, err=%v", err)
	}
}

func TestOpenMongoBackendDisconnectsOnIndexFailure(t *testing.T) {
	fake := newFakeMongoClient(t)
	restoreConnect := stubConnect(fake, nil)
	defer restoreConnect()

	restoreIndexes := newIndexRecorder(t, CollectionUsers).stub()
	defer restoreIndexes()

	_, err := Open(context.Background(), config.Config{StorageBackend: config.BackendMongo, MongoURI: "mongodb://localhost", MongoDB: "hr"})
	if !errors.Is(err, errIndexFailure) {
		t.Fatalf("expected index failure, got %v", err)
	}
	if !fake.disconnectCalled {
		t.Fatalf("expected client to be disconnected")
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), config.Config{StorageBackend: "redis"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	var nilBackend *Backend
	if err := nilBackend.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping on nil backend to fail")
	}
	if err := nilBackend.Close(context.Background()); err != nil {
		t.Fatalf("expected close on nil backend to be a no-op, got %v", err)
	}
}
