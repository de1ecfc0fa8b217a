package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cuemby/forkful/pkg/client"
	"github.com/cuemby/forkful/pkg/storage"
	"github.com/spf13/cobra"
)

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "localhost:8080", "Server address")
	cmd.Flags().String("token", "", "Session token (default $FORKFUL_TOKEN)")
	cmd.Flags().String("username", "", "Log in with this username instead of a token")
	cmd.Flags().String("password", "", "Password for --username (default $FORKFUL_PASSWORD)")
}

// clientFromFlags connects to the server and, when auth is required,
// authenticates with a token or a username and password
func clientFromFlags(cmd *cobra.Command, auth bool) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	if token == "" {
		token = os.Getenv("FORKFUL_TOKEN")
	}
	if password == "" {
		password = os.Getenv("FORKFUL_PASSWORD")
	}

	c, err := client.NewClientWithToken(server, token)
	if err != nil {
		return nil, err
	}

	if username != "" {
		if _, err := c.Login(username, password); err != nil {
			return nil, fmt.Errorf("failed to log in: %w", err)
		}
	}

	if auth && c.Token() == "" {
		return nil, fmt.Errorf("not signed in: pass --token or --username")
	}
	return c, nil
}

// Recipe commands
var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Browse recipes on a server",
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		tag, _ := cmd.Flags().GetString("tag")
		author, _ := cmd.Flags().GetString("author")

		c, err := clientFromFlags(cmd, false)
		if err != nil {
			return err
		}

		recipes, err := c.ListRecipes(client.ListOptions{Search: search, Tag: tag, Author: author})
		if err != nil {
			return fmt.Errorf("failed to list recipes: %w", err)
		}

		if len(recipes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No recipes found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSERVINGS\tTAGS\tCREATED")
		for _, r := range recipes {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				r.ID, r.Title, r.Servings, strings.Join(r.Tags, ","), r.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

var recipeGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show a recipe, optionally scaled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		factor, _ := cmd.Flags().GetFloat64("factor")

		c, err := clientFromFlags(cmd, false)
		if err != nil {
			return err
		}

		r, err := c.GetRecipe(args[0], factor)
		if err != nil {
			return fmt.Errorf("failed to get recipe: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", r.Title)
		if r.Summary.Count > 0 {
			fmt.Fprintf(out, "Rating: %.1f (%d)\n", r.Summary.Average, r.Summary.Count)
		}
		fmt.Fprintf(out, "Scale: ×%g\n\nIngredients:\n", r.Factor)
		for _, line := range r.Ingredients {
			fmt.Fprintf(out, "  - %s\n", line)
		}
		if len(r.Steps) > 0 {
			fmt.Fprintln(out, "\nSteps:")
			for i, step := range r.Steps {
				fmt.Fprintf(out, "  %d. %s\n", i+1, step)
			}
		}
		return nil
	},
}

// User commands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts on a server",
}

var userRegisterCmd = &cobra.Command{
	Use:   "register USERNAME",
	Short: "Create an account and print a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		displayName, _ := cmd.Flags().GetString("display-name")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("FORKFUL_PASSWORD")
		}
		if password == "" {
			return fmt.Errorf("--password or $FORKFUL_PASSWORD is required")
		}

		c, err := clientFromFlags(cmd, false)
		if err != nil {
			return err
		}

		user, err := c.Register(args[0], displayName, password)
		if err != nil {
			return fmt.Errorf("failed to register: %w", err)
		}
		login, err := c.Login(args[0], password)
		if err != nil {
			return fmt.Errorf("failed to log in: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Account created: %s (ID: %s)\n", user.Username, user.ID)
		fmt.Fprintf(out, "Token: %s\n", login.Token)
		fmt.Fprintf(out, "Expires: %s\n", login.ExpiresAt.Format("2006-01-02 15:04"))
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a snapshot of the database",
	Long: `Copy the database to a file. The server holds a lock on the database,
so stop it first or point --data-dir at a copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		outPath, _ := cmd.Flags().GetString("out")
		if outPath == "" {
			outPath = filepath.Join(dataDir, "forkful.db.backup")
		}

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create backup file: %w", err)
		}

		n, err := store.Backup(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Backup written: %s (%d bytes)\n", outPath, n)
		return nil
	},
}

func init() {
	recipeListCmd.Flags().String("search", "", "Search titles and ingredients")
	recipeListCmd.Flags().String("tag", "", "Only recipes with this tag")
	recipeListCmd.Flags().String("author", "", "Only recipes by this username")
	addClientFlags(recipeListCmd)

	recipeGetCmd.Flags().Float64("factor", 1, "Scale factor")
	addClientFlags(recipeGetCmd)

	recipeCmd.AddCommand(recipeListCmd)
	recipeCmd.AddCommand(recipeGetCmd)

	userRegisterCmd.Flags().String("display-name", "", "Display name")
	addClientFlags(userRegisterCmd)
	userCmd.AddCommand(userRegisterCmd)

	backupCmd.Flags().String("data-dir", "./forkful-data", "Data directory")
	backupCmd.Flags().String("out", "", "Backup file (default <data-dir>/forkful.db.backup)")

	rootCmd.AddCommand(recipeCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(backupCmd)
}
