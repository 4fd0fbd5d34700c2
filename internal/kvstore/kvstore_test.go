package kvstore

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := openTestStore(t)

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := store.Set(KeyAuthToken, "tok-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := store.Get(KeyAuthToken)
	if err != nil || !ok || got != "tok-1" {
		t.Fatalf("Get() = %q ok=%v err=%v, want tok-1", got, ok, err)
	}

	// Overwrite
	if err := store.Set(KeyAuthToken, "tok-2"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _, _ = store.Get(KeyAuthToken)
	if got != "tok-2" {
		t.Errorf("Get() after overwrite = %q, want tok-2", got)
	}

	if err := store.Delete(KeyAuthToken); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Get(KeyAuthToken); ok {
		t.Error("key survived Delete")
	}
	// Deleting an absent key is fine
	if err := store.Delete(KeyAuthToken); err != nil {
		t.Errorf("Delete(absent) error = %v", err)
	}
}

func TestTypedHelpers(t *testing.T) {
	store := openTestStore(t)

	if err := store.SetBool(KeyApproved, true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	approved, err := store.GetBool(KeyApproved)
	if err != nil || !approved {
		t.Errorf("GetBool() = %v err=%v, want true", approved, err)
	}

	if err := store.SetInt64(KeyWalletBalance, 4200); err != nil {
		t.Fatalf("SetInt64() error = %v", err)
	}
	balance, err := store.GetInt64(KeyWalletBalance)
	if err != nil || balance != 4200 {
		t.Errorf("GetInt64() = %d err=%v, want 4200", balance, err)
	}

	// Absent keys default to zero values
	if v, err := store.GetBool("absent"); err != nil || v {
		t.Errorf("GetBool(absent) = %v err=%v", v, err)
	}
	if v, err := store.GetInt64("absent"); err != nil || v != 0 {
		t.Errorf("GetInt64(absent) = %d err=%v", v, err)
	}
}

func TestCredentials(t *testing.T) {
	store := openTestStore(t)
	creds := NewCredentials(store)

	if _, err := creds.Token(); err == nil {
		t.Error("Token() should fail before login stores one")
	}

	if err := store.Set(KeyAuthToken, "bearer-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	token, err := creds.Token()
	if err != nil || token != "bearer-1" {
		t.Fatalf("Token() = %q err=%v", token, err)
	}

	if err := creds.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := creds.Token(); err == nil {
		t.Error("Token() should fail after Clear")
	}
}
