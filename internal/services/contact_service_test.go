package services

import (
	"errors"
	"testing"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"gorm.io/gorm"
)

func seedCoordinator(t *testing.T, db *gorm.DB, teamID uint, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "x",
		Name:         "Coordinator",
		Role:         models.RoleCoordinator,
		TeamID:       teamID,
		Enabled:      true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create coordinator: %v", err)
	}
	return user
}

func newContactService(db *gorm.DB) *ContactService {
	return NewContactService(db, nil, NewLogService(db))
}

func TestCreate_DuplicateEmailRejected(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	svc := newContactService(db)

	req := CreateContactRequest{CompanyName: "Acme Corp", Email: "HR@Acme.com"}
	if _, err := svc.Create(user, req); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	// Same address with different casing is still a duplicate.
	req.Email = "hr@acme.com"
	if _, err := svc.Create(user, req); !errors.Is(err, ErrContactExists) {
		t.Errorf("expected ErrContactExists, got %v", err)
	}
}

func TestCreate_CoordinatorSelfAssigns(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	core := seedTeamAndUser(t, db)
	coord := seedCoordinator(t, db, core.TeamID, "coord@test.local")
	svc := newContactService(db)

	contact, err := svc.Create(coord, CreateContactRequest{CompanyName: "Globex", Email: "talent@globex.com"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if contact.AssignedToID == nil || *contact.AssignedToID != coord.ID {
		t.Error("coordinator-created contact must be assigned to its creator")
	}
	if contact.Status != models.StatusPending {
		t.Errorf("new contact status = %q, want %q", contact.Status, models.StatusPending)
	}

	fromCore, err := svc.Create(core, CreateContactRequest{CompanyName: "Initech", Email: "jobs@initech.com"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if fromCore.AssignedToID != nil {
		t.Error("core-created contact must start unassigned")
	}
}

func TestListForUser_VisibilityScoping(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	core := seedTeamAndUser(t, db)
	coord := seedCoordinator(t, db, core.TeamID, "coord@test.local")
	other := seedCoordinator(t, db, core.TeamID, "other@test.local")
	svc := newContactService(db)

	if _, err := svc.Create(core, CreateContactRequest{CompanyName: "Acme", Email: "hr@acme.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	mine, err := svc.Create(coord, CreateContactRequest{CompanyName: "Globex", Email: "talent@globex.com"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Create(other, CreateContactRequest{CompanyName: "Umbrella", Email: "hiring@umbrella.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	coreList, err := svc.ListForUser(core)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(coreList) != 3 {
		t.Errorf("core sees %d contacts, want all 3", len(coreList))
	}

	coordList, err := svc.ListForUser(coord)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(coordList) != 1 || coordList[0].ID != mine.ID {
		t.Errorf("coordinator must see only owned or created contacts, got %d", len(coordList))
	}

	// Lookups of foreign contacts are denied, not hidden as missing.
	foreign := coreList[0]
	if foreign.ID == mine.ID {
		foreign = coreList[1]
	}
	if _, err := svc.GetByID(coord, foreign.ID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("expected ErrAccessDenied, got %v", err)
	}
}

func TestGetByID_CrossTeamLooksLikeMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")
	svc := newContactService(db)

	otherTeam := &models.Team{Name: "Other Cell"}
	if err := db.Create(otherTeam).Error; err != nil {
		t.Fatalf("create team failed: %v", err)
	}
	outsider := &models.User{
		Email: "out@other.local", PasswordHash: "x", Name: "Out",
		Role: models.RoleCore, TeamID: otherTeam.ID, Enabled: true,
	}
	if err := db.Create(outsider).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	if _, err := svc.GetByID(outsider, contact.ID); !errors.Is(err, ErrContactNotFound) {
		t.Errorf("cross-team lookup must report not-found, got %v", err)
	}
}

func TestNormalizeCompanyName_LegacyFallbackAndBackfill(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	svc := newContactService(db)

	contact := &models.Contact{
		LegacyCompanyName: "Old Importer Inc",
		Email:             "legacy@old.com",
		Status:            models.StatusPending,
		TeamID:            user.TeamID,
		CreatedByID:       user.ID,
	}
	if err := db.Create(contact).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := svc.GetByID(user, contact.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CompanyName != "Old Importer Inc" {
		t.Errorf("read must fall back to the legacy column, got %q", got.CompanyName)
	}

	// The read backfills the primary column in place.
	var stored models.Contact
	if err := db.First(&stored, contact.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.CompanyName != "Old Importer Inc" {
		t.Errorf("primary column not backfilled, got %q", stored.CompanyName)
	}
}

func TestNormalizeCompanyName_PrimaryWins(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	svc := newContactService(db)

	contact := &models.Contact{
		CompanyName:       "Current Name",
		LegacyCompanyName: "Stale Name",
		Email:             "both@x.com",
		Status:            models.StatusPending,
		TeamID:            user.TeamID,
		CreatedByID:       user.ID,
	}
	if err := db.Create(contact).Error; err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := svc.GetByID(user, contact.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CompanyName != "Current Name" {
		t.Errorf("primary value must win over legacy, got %q", got.CompanyName)
	}
}

func TestAssign_CoreOnlyAndNotifyOptional(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	core := seedTeamAndUser(t, db)
	coord := seedCoordinator(t, db, core.TeamID, "coord@test.local")
	contact := seedContact(t, db, core, "hr@acme.com")
	svc := newContactService(db) // nil mailer: notification is skipped, not fatal

	if _, err := svc.Assign(coord, contact.ID, coord.ID); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("coordinator assignment must be denied, got %v", err)
	}

	assigned, err := svc.Assign(core, contact.ID, coord.ID)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if assigned.AssignedToID == nil || *assigned.AssignedToID != coord.ID {
		t.Error("assignment not recorded")
	}
	if assigned.AssignedToName != coord.Name {
		t.Errorf("assignee name = %q, want %q", assigned.AssignedToName, coord.Name)
	}
}

func TestUpdate_PartialFieldsOnly(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")
	svc := newContactService(db)

	linkedin := "https://linkedin.com/in/jordanlee"
	if _, err := svc.Update(user, contact.ID, UpdateContactRequest{LinkedIn: &linkedin}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	var stored models.Contact
	if err := db.First(&stored, contact.ID).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.LinkedIn != linkedin {
		t.Errorf("linkedin = %q, want %q", stored.LinkedIn, linkedin)
	}
	if stored.CompanyName != "Acme Corp" || stored.HRName != "Jordan Lee" {
		t.Error("untouched fields must survive a partial update")
	}
}

func TestDelete_RemovesHistory(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	contact := seedContact(t, db, user, "hr@acme.com")
	svc := newContactService(db)

	db.Create(&models.SentEmail{ContactID: contact.ID, Subject: "Hello"})
	db.Create(&models.EmailReply{ContactID: contact.ID, Subject: "Re: Hello"})

	if err := svc.Delete(user, contact.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var sent, replies int64
	db.Model(&models.SentEmail{}).Where("contact_id = ?", contact.ID).Count(&sent)
	db.Model(&models.EmailReply{}).Where("contact_id = ?", contact.ID).Count(&replies)
	if sent != 0 || replies != 0 {
		t.Error("correspondence history must be removed with the contact")
	}
}

func TestStats_CountsByStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	user := seedTeamAndUser(t, db)
	svc := newContactService(db)

	statuses := []string{
		models.StatusPending,
		models.StatusSent,
		models.StatusSent,
		models.StatusReplyReceived,
	}
	for i, status := range statuses {
		contact := seedContact(t, db, user, "c"+string(rune('a'+i))+"@x.com")
		if err := db.Model(contact).Update("status", status).Error; err != nil {
			t.Fatalf("seed status failed: %v", err)
		}
	}

	stats, err := svc.Stats(user)
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.Total != 4 || stats.Pending != 1 || stats.Sent != 2 || stats.ReplyReceived != 1 || stats.Generated != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
