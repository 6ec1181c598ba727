package store

import (
	"testing"

	"github.com/qrvivo/qrvivo/internal/database"
	"github.com/qrvivo/qrvivo/internal/model"
)

func setupQRCodeTestDB(t *testing.T) (*QRCodeStore, *model.Account) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	as := NewAccountStore(db)
	a, err := as.Create("alice@example.com", "hash", "Alice", nil, nil)
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return NewQRCodeStore(db), a
}

func TestQRCodeCreate(t *testing.T) {
	qs, a := setupQRCodeTestDB(t)

	qr, err := qs.Create(a.ID, "My Link", "link", "example.com/page")
	if err != nil {
		t.Fatalf("create qr code: %v", err)
	}
	if qr.ID == "" {
		t.Error("expected generated id")
	}
	if qr.Type != "link" || qr.Payload != "example.com/page" {
		t.Errorf("qr = %+v", qr)
	}
}

func TestQRCodeCreateDefaultName(t *testing.T) {
	qs, a := setupQRCodeTestDB(t)

	qr, err := qs.Create(a.ID, "", "text", "hello")
	if err != nil {
		t.Fatalf("create qr code: %v", err)
	}
	if qr.Name != "Untitled QR" {
		t.Errorf("name = %q, want default", qr.Name)
	}
}

func TestQRCodeUpdateKeepsID(t *testing.T) {
	qs, a := setupQRCodeTestDB(t)

	created, _ := qs.Create(a.ID, "My Link", "link", "old.example.com")
	updated, err := qs.Update(created.ID, a.ID, "My Link", "link", "new.example.com")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil {
		t.Fatal("expected updated qr code")
	}
	if updated.ID != created.ID {
		t.Errorf("id changed: %q -> %q", created.ID, updated.ID)
	}
	if updated.Payload != "new.example.com" {
		t.Errorf("payload = %q", updated.Payload)
	}
}

func TestQRCodeUpdateWrongOwner(t *testing.T) {
	qs, a := setupQRCodeTestDB(t)

	created, _ := qs.Create(a.ID, "My Link", "link", "example.com")
	updated, err := qs.Update(created.ID, a.ID+1, "x", "link", "evil.example.com")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated != nil {
		t.Error("expected nil when updating someone else's code")
	}

	qr, _ := qs.GetByID(created.ID)
	if qr.Payload != "example.com" {
		t.Errorf("payload = %q, want untouched", qr.Payload)
	}
}

func TestQRCodeDelete(t *testing.T) {
	qs, a := setupQRCodeTestDB(t)

	created, _ := qs.Create(a.ID, "My Link", "link", "example.com")

	deleted, err := qs.Delete(created.ID, a.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted {
		t.Error("expected deletion")
	}

	qr, _ := qs.GetByID(created.ID)
	if qr != nil {
		t.Error("expected nil after delete")
	}

	again, _ := qs.Delete(created.ID, a.ID)
	if again {
		t.Error("second delete should report nothing removed")
	}
}

func TestQRCodeListByAccount(t *testing.T) {
	qs, a := setupQRCodeTestDB(t)

	qs.Create(a.ID, "One", "link", "one.example.com")
	qs.Create(a.ID, "Two", "text", "hello")

	codes, err := qs.ListByAccountID(a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(codes) != 2 {
		t.Errorf("len = %d, want 2", len(codes))
	}
}
