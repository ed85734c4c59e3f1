package id

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ConnPrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}
		parts := strings.Split(id, "_")
		if len(parts) != 2 || len(parts[1]) != 26 {
			t.Errorf("Prefixed ID should have format 'prefix_ulid', got: %s", id)
		}
		if !IsValid(id) {
			t.Errorf("Prefixed ID should be valid: %s", id)
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	connID := NewConnID()
	reqID := NewRequestID()

	if !strings.HasPrefix(connID.String(), "conn_") {
		t.Errorf("ConnID should start with 'conn_', got: %s", connID)
	}
	if !strings.HasPrefix(reqID.String(), "req_") {
		t.Errorf("RequestID should start with 'req_', got: %s", reqID)
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{NewGenerator().Generate().String(), true},
		{string(NewConnID()), true},
		{"", false},
		{"not-a-ulid", false},
		{"conn_short", false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.id); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	reqID := NewRequestID()
	after := time.Now().Add(time.Second)

	ts, err := Timestamp(string(reqID))
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(after) {
		t.Errorf("Timestamp %v outside [%v, %v]", ts, before, after)
	}
}

func TestDeterministicEntropy(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 64)
	a := NewGeneratorWithEntropy(bytes.NewReader(seed)).Generate()
	b := NewGeneratorWithEntropy(bytes.NewReader(seed)).Generate()

	if a.Entropy()[0] != b.Entropy()[0] {
		t.Error("Same entropy source should yield the same random component")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[ConnID]bool, workers*perWorker)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := NewConnID()
				mu.Lock()
				if seen[id] {
					t.Errorf("Duplicate ID generated: %s", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
