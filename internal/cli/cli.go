package cli

import (
	"os"

	"github.com/beingkumara/placement-pitcher/internal/config"
	"github.com/beingkumara/placement-pitcher/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db          *gorm.DB
	cfg         *config.Config
	userService *services.UserService
	logService  *services.LogService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "placement-pitcher",
	Short: "Placement outreach backend service",
	Long: `Placement Pitcher is the backend service for a placement cell's
outreach workflow: AI-drafted emails, threaded dispatch, and automatic
reply tracking.

Command line examples:
  placement-pitcher user create-core    # bootstrap a team with a core member
  placement-pitcher user list           # list all users
  placement-pitcher replies check       # run one reply poll cycle`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	logService = services.NewLogServiceWithLevel(db, cfg.LogLevel)
	userService = services.NewUserService(db, nil, logService, cfg.FrontendURL)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(repliesCmd)
}
