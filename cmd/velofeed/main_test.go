package main

import (
	"errors"
	"testing"

	"github.com/rewired-gh/velofeed/internal/alerts"
	"github.com/rewired-gh/velofeed/internal/scheduler"
)

func TestPassError(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		outcomes []alerts.Outcome
		wantErr  bool
	}{
		{"empty pass", nil, false},
		{"all ok", []alerts.Outcome{{City: "a", Action: alerts.ActionTouch}}, false},
		{"partial failure", []alerts.Outcome{{City: "a", Err: boom}, {City: "b", Action: alerts.ActionOpen}}, false},
		{"all failed", []alerts.Outcome{{City: "a", Err: boom}, {City: "b", Err: boom}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := passError(scheduler.Report{Outcomes: tt.outcomes})
			if (err != nil) != tt.wantErr {
				t.Fatalf("passError() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, boom) {
				t.Errorf("error should wrap the first city failure: %v", err)
			}
		})
	}
}

func TestReportHandler_WithoutTelegram(t *testing.T) {
	handle := newReportHandler(nil)
	handle(scheduler.Report{}, errors.New("contracts down"))
	handle(scheduler.Report{Outcomes: []alerts.Outcome{{City: "a", Action: alerts.ActionOpen}}}, nil)
}
