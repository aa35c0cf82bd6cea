package models

import (
	"errors"
	"strings"
	"testing"
)

func TestCreateProjectRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		wantErr error
	}{
		{"valid", "Urban Gardens", nil},
		{"empty", "", ErrEmptyTitle},
		{"too long", strings.Repeat("a", MaxTitleLength+1), ErrTitleTooLong},
		{"at limit", strings.Repeat("a", MaxTitleLength), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := CreateProjectRequest{Title: tc.title}
			if err := req.Validate(); !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTurnRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "A theme about sustainability", nil},
		{"empty", "", ErrEmptyTurnInput},
		{"too long", strings.Repeat("a", MaxTurnInputLength+1), ErrTurnInputTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := TurnRequest{Input: tc.input}
			if err := req.Validate(); !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestStageIDIsValid(t *testing.T) {
	for _, s := range StageOrder() {
		if !s.IsValid() {
			t.Errorf("stage %s from StageOrder should be valid", s)
		}
	}
	if StageID("bogus").IsValid() {
		t.Error("unknown stage id should be invalid")
	}
	if StageID("").IsValid() {
		t.Error("empty stage id should be invalid")
	}
}

func TestTransitionState(t *testing.T) {
	valid := []TransitionState{
		StateInitial, StateCoaching, StateRefining, StateProvidingExamples,
		StateDevelopingConcept, StateForcedAdvance, StateComplete,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("state %s should be valid", s)
		}
	}
	if TransitionState("WAITING").IsValid() {
		t.Error("unknown state should be invalid")
	}

	for _, s := range valid {
		wantTerminal := s == StateForcedAdvance || s == StateComplete
		if s.IsTerminal() != wantTerminal {
			t.Errorf("state %s: IsTerminal() = %v, want %v", s, s.IsTerminal(), wantTerminal)
		}
	}
}

func TestQualityLevelNormalize(t *testing.T) {
	tests := []struct {
		in   QualityLevel
		want QualityLevel
	}{
		{QualityHigh, QualityHigh},
		{QualityMedium, QualityMedium},
		{QualityLow, QualityLow},
		{"", QualityLow},
		{"excellent", QualityLow},
	}
	for _, tc := range tests {
		if got := tc.in.Normalize(); got != tc.want {
			t.Errorf("Normalize(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestInteractionKindIsValid(t *testing.T) {
	valid := []InteractionKind{
		InteractionFreeText, InteractionIdeas, InteractionExamples, InteractionHelp,
		InteractionRefinement, InteractionWhatIf, InteractionExampleSelect, InteractionConfirm,
	}
	for _, k := range valid {
		if !k.IsValid() {
			t.Errorf("kind %s should be valid", k)
		}
	}
	if InteractionKind("shrug").IsValid() {
		t.Error("unknown kind should be invalid")
	}
}

func TestExtractedDataIsEmpty(t *testing.T) {
	var nilData *ExtractedData
	if !nilData.IsEmpty() {
		t.Error("nil extracted data should be empty")
	}
	if !(&ExtractedData{}).IsEmpty() {
		t.Error("zero extracted data should be empty")
	}
	theme := ""
	if (&ExtractedData{Theme: &theme}).IsEmpty() {
		t.Error("a present label should count even when its value is empty")
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	ok := Success(map[string]string{"id": "p1"})
	if ok.Status != string(APIStatusOK) || ok.Result == nil || ok.Message != "" {
		t.Errorf("unexpected success response: %+v", ok)
	}
	created := Created("p1")
	if created.Status != string(APIStatusCreated) || created.Result != "p1" {
		t.Errorf("unexpected created response: %+v", created)
	}
	errResp := Error("boom")
	if errResp.Status != string(APIStatusError) || errResp.Message != "boom" || errResp.Result != nil {
		t.Errorf("unexpected error response: %+v", errResp)
	}
}
