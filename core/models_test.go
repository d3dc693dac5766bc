package core

import (
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	id1 := IDFromContent("Does the document define a rollback plan?")
	id2 := IDFromContent("Does the document define a rollback plan?")
	if id1 != id2 {
		t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
	}

	if IDFromContent("question a") == IDFromContent("question b") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusQueued, "QUEUED"},
		{StatusProcessing, "PROCESSING"},
		{StatusCompleted, "COMPLETED"},
		{StatusFailed, "FAILED"},
		{Status(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatus_CanTransition(t *testing.T) {
	all := []Status{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed}

	allowed := map[Status][]Status{
		StatusQueued:     {StatusProcessing},
		StatusProcessing: {StatusCompleted, StatusFailed},
	}

	for _, from := range all {
		for _, next := range all {
			want := false
			for _, legal := range allowed[from] {
				if next == legal {
					want = true
				}
			}
			if got := from.CanTransition(next); got != want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", from, next, got, want)
			}
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusQueued.Terminal() || StatusProcessing.Terminal() {
		t.Error("non-terminal status reported as terminal")
	}
	if !StatusCompleted.Terminal() || !StatusFailed.Terminal() {
		t.Error("terminal status reported as non-terminal")
	}
}

func TestScoringSession_MergeAnswers(t *testing.T) {
	s := &ScoringSession{
		Answers: []QuestionAnswer{
			{QuestionID: 1, Answer: 2, Reasoning: "first"},
		},
	}

	s.MergeAnswers([]QuestionAnswer{
		{QuestionID: 1, Answer: 0, Reasoning: "replaced"},
		{QuestionID: 2, Answer: 1, Reasoning: "new"},
	})

	if len(s.Answers) != 2 {
		t.Fatalf("expected 2 answers after merge, got %d", len(s.Answers))
	}
	if s.Answers[0].Answer != 0 || s.Answers[0].Reasoning != "replaced" {
		t.Errorf("existing answer was not replaced: %+v", s.Answers[0])
	}
	if s.Answers[1].QuestionID != 2 {
		t.Errorf("new answer was not appended: %+v", s.Answers[1])
	}
}

func TestScoringSession_CategoryScores(t *testing.T) {
	categoryOf := map[ID]string{
		1: "security",
		2: "security",
		3: "operations",
		4: "operations", // unanswered, must not enter the denominator
	}

	s := &ScoringSession{
		Answers: []QuestionAnswer{
			{QuestionID: 1, Answer: 2},
			{QuestionID: 2, Answer: 1},
			{QuestionID: 3, Answer: 0},
		},
	}

	scores := s.CategoryScores(categoryOf)

	if got := scores["security"]; got != 0.75 {
		t.Errorf("security score = %v, want 0.75", got)
	}
	if got := scores["operations"]; got != 0 {
		t.Errorf("operations score = %v, want 0", got)
	}
}

func TestDocument_Key(t *testing.T) {
	uploaded := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	doc := &Document{ChatID: "chat-1", UploadedAt: uploaded}

	key := doc.Key()
	if key.ChatID != "chat-1" || !key.UploadedAt.Equal(uploaded) {
		t.Errorf("unexpected key: %+v", key)
	}
}
