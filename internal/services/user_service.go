package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beingkumara/placement-pitcher/internal/database/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidCredentials indicates a failed login attempt
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserExists indicates the email is already registered
	ErrUserExists = errors.New("user with this email already exists")
	// ErrUserNotFound indicates the user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidInvitation indicates an unknown or spent invitation token
	ErrInvalidInvitation = errors.New("invalid invitation token")
)

// UserService manages users, teams, and invitations.
type UserService struct {
	db          *gorm.DB
	mailer      *MailerService
	logService  *LogService
	frontendURL string
}

// NewUserService creates a new UserService instance
func NewUserService(db *gorm.DB, mailer *MailerService, logService *LogService, frontendURL string) *UserService {
	return &UserService{
		db:          db,
		mailer:      mailer,
		logService:  logService,
		frontendURL: frontendURL,
	}
}

// Authenticate verifies credentials and returns the user.
func (s *UserService) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.Enabled {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// GetByID returns a user by id.
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateCoreWithTeam bootstraps a new team with its first core member.
func (s *UserService) CreateCoreWithTeam(teamName, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.checkEmailFree(email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		team := &models.Team{Name: strings.TrimSpace(teamName)}
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		user = &models.User{
			Email:        email,
			PasswordHash: string(hash),
			Name:         strings.TrimSpace(name),
			Role:         models.RoleCore,
			TeamID:       team.ID,
			Enabled:      true,
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return nil, err
	}

	s.logService.LogInfo(user.ID, models.LogModuleAuth, "create_core", "Core member created with new team", map[string]interface{}{
		"team_id": user.TeamID,
		"email":   user.Email,
	})
	return user, nil
}

// CreateCoordinator invites a coordinator into the inviter's team. The
// account stays disabled until the invitation is accepted. Invitation
// email failure does not fail the creation; the token can be re-sent.
func (s *UserService) CreateCoordinator(inviter *models.User, name, email string) (*models.User, error) {
	if !inviter.IsCore() {
		return nil, ErrAccessDenied
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.checkEmailFree(email); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:           email,
		Name:            strings.TrimSpace(name),
		Role:            models.RoleCoordinator,
		TeamID:          inviter.TeamID,
		InvitationToken: uuid.NewString(),
		Enabled:         false,
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}

	if s.mailer != nil {
		link := fmt.Sprintf("%s/setup-account?token=%s", strings.TrimSuffix(s.frontendURL, "/"), user.InvitationToken)
		body := fmt.Sprintf("Hi %s,\n\n%s has invited you to join their placement team as a coordinator.\n\nSet up your account here: %s",
			user.Name, inviter.Name, link)
		if err := s.mailer.SendSystemEmail(user.Email, "You're invited to Placement Pitcher", body); err != nil {
			s.logService.LogWarn(inviter.ID, models.LogModuleAuth, "invite_notify", "Invitation email failed", map[string]interface{}{
				"invitee": user.Email,
				"error":   err.Error(),
			})
		}
	}

	s.logService.LogInfo(inviter.ID, models.LogModuleAuth, "invite", "Coordinator invited", map[string]interface{}{
		"invitee": user.Email,
	})
	return user, nil
}

// SetupAccount consumes an invitation token and activates the account.
func (s *UserService) SetupAccount(token, password string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidInvitation
	}

	var user models.User
	err := s.db.Where("invitation_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidInvitation
	}
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"password_hash":    string(hash),
		"invitation_token": "",
		"enabled":          true,
	}
	if err := s.db.Model(&user).Updates(updates).Error; err != nil {
		return nil, err
	}

	user.PasswordHash = string(hash)
	user.InvitationToken = ""
	user.Enabled = true
	return &user, nil
}

// ListTeam returns all members of the user's team.
func (s *UserService) ListTeam(user *models.User) ([]models.User, error) {
	var users []models.User
	if err := s.db.Where("team_id = ?", user.TeamID).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SeedDefaultAdmin creates a bootstrap team and core user on an empty
// database so a fresh deployment is immediately usable.
func (s *UserService) SeedDefaultAdmin(email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err := s.CreateCoreWithTeam("Placement Cell", "Admin", email, password)
	return err
}

func (s *UserService) checkEmailFree(email string) error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrUserExists
	}
	return nil
}
