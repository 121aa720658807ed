package storage

import (
	"testing"
	"time"
)

func TestAttemptStore(t *testing.T) {
	db, err := InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	attempt := Attempt{
		QuoteId:      "quote1",
		MintURL:      "http://127.0.0.1:3338",
		Fingerprint:  "fingerprint1",
		Amount:       1000,
		FeeReserve:   10,
		ProofsAmount: 1100,
		State:        Redeeming,
		CreatedAt:    time.Now().Unix(),
	}
	if err := db.SaveAttempt(attempt); err != nil {
		t.Fatal(err)
	}

	stored := db.GetAttempt("quote1")
	if stored == nil {
		t.Fatal("expected attempt but got nil")
	}
	if stored.State != Redeeming {
		t.Errorf("expected state '%v' but got '%v' instead", Redeeming, stored.State)
	}
	if stored.ProofsAmount != 1100 {
		t.Errorf("expected proofs amount 1100 but got '%v' instead", stored.ProofsAmount)
	}

	if db.GetAttempt("nonexistent") != nil {
		t.Error("expected nil for nonexistent attempt")
	}

	byFingerprint := db.GetAttemptByFingerprint("fingerprint1")
	if byFingerprint == nil {
		t.Fatal("expected attempt but got nil")
	}
	if byFingerprint.QuoteId != "quote1" {
		t.Errorf("expected quote 'quote1' but got '%v' instead", byFingerprint.QuoteId)
	}
	if db.GetAttemptByFingerprint("nonexistent") != nil {
		t.Error("expected nil for nonexistent fingerprint")
	}

	// state updates are reflected in reads
	attempt.State = Succeeded
	attempt.Preimage = "preimage"
	if err := db.SaveAttempt(attempt); err != nil {
		t.Fatal(err)
	}
	stored = db.GetAttempt("quote1")
	if stored.State != Succeeded {
		t.Errorf("expected state '%v' but got '%v' instead", Succeeded, stored.State)
	}
	if stored.Preimage != "preimage" {
		t.Errorf("expected preimage 'preimage' but got '%v' instead", stored.Preimage)
	}
}

func TestGetAttemptsByState(t *testing.T) {
	db, err := InitBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	attempts := []Attempt{
		{QuoteId: "quote1", Fingerprint: "f1", State: Succeeded},
		{QuoteId: "quote2", Fingerprint: "f2", State: Unknown},
		{QuoteId: "quote3", Fingerprint: "f3", State: Unknown},
	}
	for _, attempt := range attempts {
		if err := db.SaveAttempt(attempt); err != nil {
			t.Fatal(err)
		}
	}

	unknown := db.GetAttemptsByState(Unknown)
	if len(unknown) != 2 {
		t.Errorf("expected 2 attempts but got %v instead", len(unknown))
	}

	if len(db.GetAttemptsByState(Failed)) != 0 {
		t.Errorf("expected no failed attempts")
	}
}

func TestConsumed(t *testing.T) {
	for _, state := range []string{Redeeming, Settling, Succeeded, Failed, Unknown} {
		attempt := Attempt{State: state}
		if !attempt.Consumed() {
			t.Errorf("expected state '%v' to count as consumed", state)
		}
	}

	rejected := Attempt{State: Rejected}
	if rejected.Consumed() {
		t.Error("expected rejected attempt to not count as consumed")
	}
}
