package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"feed-go/internal/app"
	"feed-go/internal/config"
	"feed-go/internal/encryption"
	"feed-go/internal/identity"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

// newApp reads the config, creates a FeedApp and unlocks it when the
// substrate is encrypted. The caller must defer app.Close().
func newApp(ctx context.Context, command string) (*app.FeedApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config (run `feed config init` first): %w", err)
	}

	a, err := app.NewFeedApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	if a.Encrypted() {
		passphrase, err := readSecret("FEED_PASSPHRASE", "Passphrase: ")
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := a.Unlock(passphrase); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// withApp runs fn against a fresh app and records its outcome.
func withApp(cmd *cobra.Command, fn func(a *app.FeedApp) error) error {
	command := strings.TrimPrefix(cmd.CommandPath(), rootCmd.Name()+" ")
	a, err := newApp(cmd.Context(), command)
	if err != nil {
		return err
	}
	defer a.Close()

	err = fn(a)
	a.Done(err)
	return err
}

var rootCmd = &cobra.Command{
	Use:           "feed",
	Short:         "Social feed on a key/value store",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		substrateType, _ := cmd.Flags().GetString("substrate")
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir, rand.Text())
		cfg.Substrate.Type = substrateType
		cfg.Substrate.Encrypt = encrypt

		if encrypt {
			enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
			if err != nil {
				return err
			}
			passphrase, err := readSecret("FEED_PASSPHRASE", "New passphrase: ")
			if err != nil {
				return err
			}
			if passphrase == "" {
				return fmt.Errorf("passphrase must not be empty")
			}
			confirm, err := readConfirmation("FEED_PASSPHRASE", "Confirm passphrase: ", passphrase)
			if err != nil {
				return err
			}
			if confirm != passphrase {
				return fmt.Errorf("passphrases do not match")
			}
			if err := enc.Setup(passphrase); err != nil {
				return fmt.Errorf("generating keys: %w", err)
			}
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Fprintf(out, "Base Dir:  %s\n", cfg.BaseDir)
		fmt.Fprintf(out, "Substrate: %s\n", cfg.Substrate.Type)
		if encrypt {
			fmt.Fprintf(out, "Public key: %s\n", cfg.Encryption.PublicKeyPath)
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		printConfig(cmd.OutOrStdout(), defaults.ConfigPath, cfg)
		return nil
	},
}

// account commands
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		username, _ := cmd.Flags().GetString("username")

		password, err := readSecret("FEED_PASSWORD", "Password: ")
		if err != nil {
			return err
		}
		confirm, err := readConfirmation("FEED_PASSWORD", "Confirm password: ", password)
		if err != nil {
			return err
		}

		return withApp(cmd, func(a *app.FeedApp) error {
			id, err := a.Register(identity.RegisterInput{
				Email:           email,
				Password:        password,
				PasswordConfirm: confirm,
				Username:        username,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Registered ")
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			var err error
			if email, err = readPlain("Email: "); err != nil {
				return err
			}
		}
		password, err := readSecret("FEED_PASSWORD", "Password: ")
		if err != nil {
			return err
		}

		return withApp(cmd, func(a *app.FeedApp) error {
			id, err := a.Login(email, password)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Logged in as ")
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			if err := a.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			id, err := a.WhoAmI()
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Change username or avatar",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		avatar, _ := cmd.Flags().GetString("avatar")
		if username == "" && avatar == "" {
			return fmt.Errorf("nothing to change: pass --username and/or --avatar")
		}

		return withApp(cmd, func(a *app.FeedApp) error {
			id, err := a.UpdateProfile(username, avatar)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), "Updated ")
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var userCmd = &cobra.Command{
	Use:   "user ID",
	Short: "Show an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			id, err := a.User(args[0])
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), id)
			return nil
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")
		filter, _ := cmd.Flags().GetString("filter")

		return withApp(cmd, func(a *app.FeedApp) error {
			p, err := a.Users(page, perPage, filter)
			if err != nil {
				return err
			}
			printIdentityPage(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

// record commands
var postCmd = &cobra.Command{
	Use:   "post [TEXT]",
	Short: "Publish a record",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, _ := cmd.Flags().GetStringArray("file")
		location, _ := cmd.Flags().GetString("location")
		var text string
		if len(args) > 0 {
			text = args[0]
		}

		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Post(text, files, location)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Posted %s\n", rec.ID)
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		perPage, _ := cmd.Flags().GetInt("per-page")
		sort, _ := cmd.Flags().GetString("sort")
		filter, _ := cmd.Flags().GetString("filter")

		return withApp(cmd, func(a *app.FeedApp) error {
			p, err := a.List(page, perPage, sort, filter)
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Show(args[0])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

var editCmd = &cobra.Command{
	Use:   "edit ID TEXT",
	Short: "Replace the text of a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Edit(args[0], args[1])
			if err != nil {
				return err
			}
			printRecord(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate ID [LOCATION]",
	Short: "Set or clear the location of a record",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var location string
		if len(args) > 1 {
			location = args[1]
		}
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Locate(args[0], location)
			if err != nil {
				return err
			}
			if rec.Location == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared location of %s\n", rec.ID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Located %s at %s\n", rec.ID, rec.Location)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			if err := a.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var likeCmd = &cobra.Command{
	Use:   "like ID",
	Short: "Like a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Like(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Liked %s (%d likes)\n", rec.ID, rec.LikeCount)
			return nil
		})
	},
}

var unlikeCmd = &cobra.Command{
	Use:   "unlike ID",
	Short: "Remove your like from a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Unlike(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unliked %s (%d likes)\n", rec.ID, rec.LikeCount)
			return nil
		})
	},
}

// comment command
var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add ID TEXT",
	Short: "Comment on a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Comment(args[0], args[1])
			if err != nil {
				return err
			}
			c := rec.Comments[len(rec.Comments)-1]
			fmt.Fprintf(cmd.OutOrStdout(), "Commented on %s (comment %s)\n", rec.ID, c.ID)
			return nil
		})
	},
}

var commentRmCmd = &cobra.Command{
	Use:   "rm ID COMMENT_ID",
	Short: "Remove one of your comments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Uncomment(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed comment %s from %s (%d left)\n", args[1], rec.ID, rec.CommentCount)
			return nil
		})
	},
}

// attachment command
var attachmentCmd = &cobra.Command{
	Use:   "attachment",
	Short: "Manage attachments",
}

var attachmentRmCmd = &cobra.Command{
	Use:   "rm ID NAME",
	Short: "Remove an attachment from a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app.FeedApp) error {
			rec, err := a.Detach(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s (%d attachments left)\n", args[1], rec.ID, len(rec.Attachments))
			return nil
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("substrate", "sqlite", "Storage backend: memory, filesystem, sqlite, postgres or s3")
	configInitCmd.Flags().Bool("encrypt", false, "Encrypt stored values with a new age key pair")

	// account commands
	rootCmd.AddCommand(registerCmd)
	registerCmd.Flags().String("email", "", "Email address")
	registerCmd.Flags().String("username", "", "Username (letters and digits)")
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().String("email", "", "Email address")
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().String("username", "", "New username")
	profileCmd.Flags().String("avatar", "", "Path to a new avatar image")
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(usersCmd)
	usersCmd.Flags().IntP("page", "p", 1, "Page number, starting at 1")
	usersCmd.Flags().IntP("per-page", "n", 0, "Accounts per page (default 20)")
	usersCmd.Flags().String("filter", "", `Filter, e.g. 'username ~ "ana" && email ~ "example.org"'`)

	// record commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(postCmd)
	postCmd.Flags().StringArrayP("file", "f", nil, "Attach a file or every file in a directory (repeatable)")
	postCmd.Flags().StringP("location", "l", "", "Where the post was made")
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntP("page", "p", 1, "Page number, starting at 1")
	listCmd.Flags().IntP("per-page", "n", 0, "Records per page (default from config)")
	listCmd.Flags().StringP("sort", "s", "recent", "Order: recent, oldest or popular")
	listCmd.Flags().String("filter", "", `Filter, e.g. 'author.username ~ "ana" && text ~ "gato"'`)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(unlikeCmd)

	rootCmd.AddCommand(commentCmd)
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentRmCmd)

	rootCmd.AddCommand(attachmentCmd)
	attachmentCmd.AddCommand(attachmentRmCmd)
}
