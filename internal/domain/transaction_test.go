package domain

import (
	"testing"
	"time"
)

func TestTransactionApplyStatus_StampsCompletionOnce(t *testing.T) {
	tx := &Transaction{Status: LedgerStatusPending}
	first := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tx.ApplyStatus(LedgerStatusCompleted, first)
	if tx.CompletedAt == nil {
		t.Fatal("expected completion timestamp after first transition to Completed")
	}
	if !tx.CompletedAt.Equal(first) {
		t.Fatalf("expected completion timestamp %s, got %s", first, tx.CompletedAt)
	}

	tx.ApplyStatus(LedgerStatusCompleted, first.Add(time.Hour))
	if !tx.CompletedAt.Equal(first) {
		t.Fatalf("expected original completion timestamp to be kept, got %s", tx.CompletedAt)
	}
}

func TestTransactionApplyStatus_NonCompletedLeavesTimestampNil(t *testing.T) {
	tx := &Transaction{Status: LedgerStatusPending}
	tx.ApplyStatus(LedgerStatusFailed, time.Now())
	if tx.CompletedAt != nil {
		t.Fatalf("expected nil completion timestamp, got %s", tx.CompletedAt)
	}
	if tx.Status != LedgerStatusFailed {
		t.Fatalf("expected status Failed, got %q", tx.Status)
	}
}

func TestNormalizeLedgerStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "lower case", input: "pending", want: LedgerStatusPending},
		{name: "canonical", input: "Completed", want: LedgerStatusCompleted},
		{name: "upper case with spaces", input: "  FAILED ", want: LedgerStatusFailed},
		{name: "unknown", input: "settled", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLedgerStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseChainStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    ChainStatus
		wantErr bool
	}{
		{input: "processing", want: ChainStatusProcessing},
		{input: "Confirmed", want: ChainStatusCompleted},
		{input: "CANCELLED", want: ChainStatusCancelled},
		{input: "mined", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChainStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
