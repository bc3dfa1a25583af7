package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management",
	Long:  `Manage users: bootstrap a core member with a new team and list existing users.`,
}

// userCreateCoreCmd bootstraps a team with its first core member
var userCreateCoreCmd = &cobra.Command{
	Use:   "create-core",
	Short: "Create a core member with a new team",
	Long:  `Interactively create a new team and its first core member.`,
	Run: func(cmd *cobra.Command, args []string) {
		reader := bufio.NewReader(os.Stdin)

		teamName := promptLine(reader, "Team name: ")
		if teamName == "" {
			fmt.Fprintln(os.Stderr, "Error: team name must not be empty")
			os.Exit(1)
		}

		name := promptLine(reader, "Full name: ")
		if name == "" {
			fmt.Fprintln(os.Stderr, "Error: name must not be empty")
			os.Exit(1)
		}

		email := promptLine(reader, "Email: ")
		if email == "" {
			fmt.Fprintln(os.Stderr, "Error: email must not be empty")
			os.Exit(1)
		}

		password := promptPassword("Password (min 8 characters): ")
		if len(password) < 8 {
			fmt.Fprintln(os.Stderr, "Error: password must be at least 8 characters")
			os.Exit(1)
		}
		if password != promptPassword("Confirm password: ") {
			fmt.Fprintln(os.Stderr, "Error: passwords do not match")
			os.Exit(1)
		}

		user, err := userService.CreateCoreWithTeam(teamName, name, email, password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create core member: %v\n", err)
			os.Exit(1)
		}

		fmt.Println()
		fmt.Println("Core member created.")
		fmt.Printf("  ID: %d\n", user.ID)
		fmt.Printf("  Email: %s\n", user.Email)
		fmt.Printf("  Team ID: %d\n", user.TeamID)
	},
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Run: func(cmd *cobra.Command, args []string) {
		var users []struct {
			ID      uint
			Email   string
			Name    string
			Role    string
			TeamID  uint
			Enabled bool
		}
		if err := db.Table("users").Order("id ASC").Find(&users).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list users: %v\n", err)
			os.Exit(1)
		}

		if len(users) == 0 {
			fmt.Println("No users yet.")
			return
		}

		fmt.Printf("%-6s %-30s %-20s %-12s %-8s %s\n", "ID", "Email", "Name", "Role", "Team", "Enabled")
		fmt.Println(strings.Repeat("-", 84))
		for _, u := range users {
			fmt.Printf("%-6d %-30s %-20s %-12s %-8d %v\n", u.ID, u.Email, u.Name, u.Role, u.TeamID, u.Enabled)
		}
		fmt.Printf("\n%d user(s)\n", len(users))
	},
}

func promptLine(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read input: %v\n", err)
		os.Exit(1)
	}
	return strings.TrimSpace(line)
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read password: %v\n", err)
		os.Exit(1)
	}
	return string(passwordBytes)
}

func init() {
	userCmd.AddCommand(userCreateCoreCmd)
	userCmd.AddCommand(userListCmd)
}
