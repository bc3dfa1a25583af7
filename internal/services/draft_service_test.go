package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// fakeCompleter scripts one response per model name.
type fakeCompleter struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeCompleter) Complete(model, prompt string) (string, error) {
	f.calls = append(f.calls, model)
	if err, ok := f.errs[model]; ok {
		return "", err
	}
	if resp, ok := f.responses[model]; ok {
		return resp, nil
	}
	return "", errors.New("no scripted response")
}

func TestUnwrapCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fence", `{"subject":"s","body":"b"}`, `{"subject":"s","body":"b"}`},
		{"tagged fence", "```json\n{\"subject\":\"s\"}\n```", `{"subject":"s"}`},
		{"bare fence", "```\n{\"subject\":\"s\"}\n```", `{"subject":"s"}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := unwrapCodeFence(tt.in); got != tt.want {
				t.Errorf("unwrapCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"valid", `{"subject":"Hello","body":"Hi there"}`, false},
		{"fenced valid", "```json\n{\"subject\":\"Hello\",\"body\":\"Hi\"}\n```", false},
		{"missing body", `{"subject":"Hello","body":""}`, true},
		{"missing subject", `{"subject":"","body":"Hi"}`, true},
		{"not json", "Sure! Here is your email.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDraft(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("parseDraft(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestGenerateDraft_FallbackChain(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")

	client := &fakeCompleter{
		errs: map[string]error{
			"model-a": errors.New("rate limited"),
			"model-b": errors.New("timeout"),
		},
		responses: map[string]string{
			"model-c": `{"subject":"Hello Acme","body":"Hi Jordan"}`,
		},
	}
	svc := NewDraftService(db, client, []string{"model-a", "model-b", "model-c"}, nil, NewLogService(db))

	draft, err := svc.GenerateDraft(user.ID, contact.ID)
	if err != nil {
		t.Fatalf("GenerateDraft failed: %v", err)
	}
	if draft.Subject != "Hello Acme" || draft.Body != "Hi Jordan" {
		t.Errorf("unexpected draft: %+v", draft)
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 provider calls, got %v", client.calls)
	}
}

func TestGenerateDraft_UnparseableCountsAsFailure(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")

	client := &fakeCompleter{
		responses: map[string]string{
			"model-a": "I'd be happy to help with that!",
			"model-b": `{"subject":"Valid","body":"Valid body"}`,
		},
	}
	svc := NewDraftService(db, client, []string{"model-a", "model-b"}, nil, NewLogService(db))

	draft, err := svc.GenerateDraft(user.ID, contact.ID)
	if err != nil {
		t.Fatalf("GenerateDraft failed: %v", err)
	}
	if draft.Subject != "Valid" {
		t.Errorf("expected the second provider's draft, got %+v", draft)
	}
}

func TestGenerateDraft_AllProvidersFailed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")

	client := &fakeCompleter{
		errs: map[string]error{
			"model-a": errors.New("down"),
			"model-b": errors.New("down"),
		},
	}
	svc := NewDraftService(db, client, []string{"model-a", "model-b"}, nil, NewLogService(db))

	_, err := svc.GenerateDraft(user.ID, contact.ID)
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Errorf("expected ErrAllProvidersFailed, got %v", err)
	}
}

func TestGenerateDraft_ContactNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)

	svc := NewDraftService(db, &fakeCompleter{}, []string{"model-a"}, nil, NewLogService(db))
	if _, err := svc.GenerateDraft(user.ID, 9999); !errors.Is(err, ErrContactNotFound) {
		t.Errorf("expected ErrContactNotFound, got %v", err)
	}
}

func TestBuildPrompt_SubjectInstruction(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewDraftService(db, &fakeCompleter{}, nil, nil, NewLogService(db))

	contact := &models.Contact{CompanyName: "Acme Corp", HRName: "Jordan"}
	settings := &models.Settings{}

	prompt := svc.buildPrompt(contact, settings)
	if !strings.Contains(prompt, "No previous conversation.") {
		t.Error("empty history must state there is no previous conversation")
	}
	if strings.Contains(prompt, "Re: ") {
		t.Error("empty history must not instruct a Re: subject")
	}

	contact.SentEmails = []models.SentEmail{
		{Subject: "Intro", Body: "Hello", SentAt: time.Now().Add(-2 * time.Hour)},
	}
	contact.Replies = []models.EmailReply{
		{Subject: "Re: Intro", Body: "Tell me more", ReceivedAt: time.Now().Add(-time.Hour)},
	}

	prompt = svc.buildPrompt(contact, settings)
	if !strings.Contains(prompt, `"Re: Re: Intro"`) {
		t.Errorf("continuing thread must mandate Re: + last subject, got:\n%s", prompt)
	}
	if strings.Contains(prompt, "No previous conversation.") {
		t.Error("non-empty history must include the transcript")
	}
}

func TestBuildPrompt_Fallbacks(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := NewDraftService(db, &fakeCompleter{}, nil, nil, NewLogService(db))

	contact := &models.Contact{CompanyName: "Acme Corp"}
	prompt := svc.buildPrompt(contact, &models.Settings{})

	if !strings.Contains(prompt, "Hiring Manager") {
		t.Error("missing HR name must fall back to Hiring Manager")
	}
	if !strings.Contains(prompt, "General placement collaboration inquiry") {
		t.Error("missing context must fall back to the generic inquiry phrase")
	}
}

// Property: if any provider in the chain succeeds, the chain succeeds,
// regardless of how many earlier providers fail.
func TestProperty_FallbackCompleteness(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")
	logService := NewLogService(db)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("first_success_wins", prop.ForAll(
		func(failures int) bool {
			chain := make([]string, 0, failures+1)
			client := &fakeCompleter{
				errs:      map[string]error{},
				responses: map[string]string{},
			}
			for i := 0; i < failures; i++ {
				name := fmt.Sprintf("bad-%d", i)
				chain = append(chain, name)
				client.errs[name] = errors.New("provider down")
			}
			chain = append(chain, "good")
			client.responses["good"] = `{"subject":"S","body":"B"}`

			svc := NewDraftService(db, client, chain, nil, logService)
			draft, err := svc.GenerateDraft(user.ID, contact.ID)
			return err == nil && draft.Subject == "S" && draft.Body == "B"
		},
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
