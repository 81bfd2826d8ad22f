// store/memory_test.go
package store

import (
	"testing"
	"time"
)

func TestPutAndGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ver, err := s.Put("k1", []byte("hello"), 0, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ver != 1 {
		t.Errorf("expected version 1, got %d", ver)
	}

	val, gotVer, err := s.Get("k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "hello" {
		t.Errorf("expected hello, got %s", val)
	}
	if gotVer != 1 {
		t.Errorf("expected version 1, got %d", gotVer)
	}
}

func TestGetMissing(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, _, err := s.Get("nope")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutVersionConflict(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Put("k1", []byte("a"), 0, 0); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Create over an existing key fails.
	if _, err := s.Put("k1", []byte("b"), 0, 0); err != ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict on re-create, got %v", err)
	}

	// Stale version fails, current version succeeds.
	if _, err := s.Put("k1", []byte("b"), 5, 0); err != ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict on stale version, got %v", err)
	}
	ver, err := s.Put("k1", []byte("b"), 1, 0)
	if err != nil {
		t.Fatalf("CAS update failed: %v", err)
	}
	if ver != 2 {
		t.Errorf("expected version 2, got %d", ver)
	}
}

func TestConcurrentWriterLoses(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("k1", []byte("base"), 0, 0)
	_, v, _ := s.Get("k1")

	// Both read version 1; only the first CAS wins.
	if _, err := s.Put("k1", []byte("first"), v, 0); err != nil {
		t.Fatalf("first writer failed: %v", err)
	}
	if _, err := s.Put("k1", []byte("second"), v, 0); err != ErrVersionConflict {
		t.Errorf("expected second writer to lose, got %v", err)
	}

	val, _, _ := s.Get("k1")
	if string(val) != "first" {
		t.Errorf("expected first writer's value, got %s", val)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("k1", []byte("v"), 0, 30*time.Millisecond)
	if _, _, err := s.Get("k1"); err != nil {
		t.Fatalf("expected key alive, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if _, _, err := s.Get("k1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestPutRefreshesTTL(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("k1", []byte("v"), 0, 40*time.Millisecond)
	time.Sleep(25 * time.Millisecond)
	if _, err := s.Put("k1", []byte("v2"), 1, 40*time.Millisecond); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	// Past the original deadline but inside the refreshed one.
	if _, _, err := s.Get("k1"); err != nil {
		t.Errorf("expected key alive after refresh, got %v", err)
	}
}

func TestSetNX(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ok, err := s.SetNX("lock:room1", "1", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected acquire, got ok=%v err=%v", ok, err)
	}
	ok, _ = s.SetNX("lock:room1", "1", time.Second)
	if ok {
		t.Error("expected second acquire to fail")
	}

	s.Delete("lock:room1")
	ok, _ = s.SetNX("lock:room1", "1", time.Second)
	if !ok {
		t.Error("expected acquire after delete")
	}
}

func TestSetNXExpiredLock(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.SetNX("lock:room1", "1", 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	ok, _ := s.SetNX("lock:room1", "1", time.Second)
	if !ok {
		t.Error("expected acquire after lock expiry")
	}
}

func TestCompareAndDelete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("k", []byte("v1"), 0, 0)

	ok, err := s.CompareAndDelete("k", []byte("v2"))
	if err != nil || ok {
		t.Fatalf("mismatched value must not delete, got ok=%v err=%v", ok, err)
	}
	if _, _, err := s.Get("k"); err != nil {
		t.Fatal("key must survive a mismatched delete")
	}

	ok, _ = s.CompareAndDelete("k", []byte("v1"))
	if !ok {
		t.Fatal("expected matching delete to claim the key")
	}
	ok, _ = s.CompareAndDelete("k", []byte("v1"))
	if ok {
		t.Error("second claim must lose")
	}
}

func TestKeysPrefix(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("timer:dice:room1", []byte("a"), 0, 0)
	s.Put("timer:dice:room2", []byte("b"), 0, 0)
	s.Put("game:dice:room1", []byte("c"), 0, 0)

	keys, err := s.Keys("timer:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 timer keys, got %d: %v", len(keys), keys)
	}
}

func TestJanitorRemovesExpired(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	s.Put("k1", []byte("v"), 0, 20*time.Millisecond)
	time.Sleep(1200 * time.Millisecond)

	s.mu.RLock()
	_, ok := s.entries["k1"]
	s.mu.RUnlock()
	if ok {
		t.Error("expected janitor to drop expired entry")
	}
}
