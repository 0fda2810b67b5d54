package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CrowderSoup/bizniz-quest/client"
	"github.com/CrowderSoup/bizniz-quest/database"
	"github.com/CrowderSoup/bizniz-quest/quest"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:3001"

func addClientFlags(cmd *cobra.Command) {
	stateDir := "./.bizquest"
	if dir, err := os.UserConfigDir(); err == nil {
		stateDir = filepath.Join(dir, "bizniz-quest")
	}
	cmd.Flags().String("server", defaultServer, "server base URL")
	cmd.Flags().String("state-dir", stateDir, "directory for local state and credentials")
}

func tokenStore(cmd *cobra.Command) (*client.TokenStore, string, error) {
	stateDir, _ := cmd.Flags().GetString("state-dir")
	ring, err := client.OpenKeyring(filepath.Join(stateDir, "credentials"))
	if err != nil {
		return nil, "", err
	}
	return client.NewTokenStore(ring), stateDir, nil
}

// remoteSession is a logged-in view of one account from the command line.
type remoteSession struct {
	accountID string
	stateDir  string
	store     *client.RemoteStore
	gateway   *quest.Gateway
	holder    *quest.Holder
}

// openRemote loads the account's tasks the way a freshly mounted view does:
// migrate the legacy cache if present, then run the daily reset check.
func openRemote(ctx context.Context, cmd *cobra.Command) (*remoteSession, error) {
	server, _ := cmd.Flags().GetString("server")
	tokens, stateDir, err := tokenStore(cmd)
	if err != nil {
		return nil, err
	}
	token, err := tokens.Get(server)
	if errors.Is(err, client.ErrNoToken) {
		return nil, fmt.Errorf("not logged in to %s, run `bizquest login` first", server)
	}
	if err != nil {
		return nil, err
	}

	logger := log.New(io.Discard, "", 0)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger = log.Default()
	}

	store := client.NewRemoteStore(server, token)
	accountID, err := store.Verify(ctx)
	if quest.IsAuthError(err) {
		return nil, fmt.Errorf("session expired, run `bizquest login` again")
	}
	if err != nil {
		return nil, err
	}

	gw := quest.NewGateway(store, logger)
	res, err := gw.Load(ctx, accountID, quest.FileLegacyCache{Path: filepath.Join(stateDir, "lists.json")})
	if err != nil {
		return nil, err
	}

	h := quest.NewHolder(nil)
	h.Initialize(res.Snapshot)

	scheduler := quest.NewResetScheduler(nil, &quest.FileMarkers{Path: filepath.Join(stateDir, "reset-markers.json")}, logger)
	reset, err := scheduler.Check(ctx, accountID, h)
	if err != nil {
		logger.Printf("Reset check failed: %v", err)
	}
	if reset {
		if err := gw.Save(ctx, accountID, h.Snapshot()); err != nil {
			return nil, err
		}
	}

	return &remoteSession{accountID: accountID, stateDir: stateDir, store: store, gateway: gw, holder: h}, nil
}

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token from a magic link",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			token, _ := cmd.Flags().GetString("token")
			if token == "" {
				return fmt.Errorf("--token is required")
			}

			accountID, err := client.NewRemoteStore(server, token).Verify(cmd.Context())
			if err != nil {
				return fmt.Errorf("token rejected: %w", err)
			}

			tokens, _, err := tokenStore(cmd)
			if err != nil {
				return err
			}
			if err := tokens.Set(server, token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", server, accountID)
			return nil
		},
	}
	addClientFlags(cmd)
	cmd.Flags().String("token", "", "session token from the magic link redirect")
	return cmd
}

func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			server, _ := cmd.Flags().GetString("server")
			tokens, _, err := tokenStore(cmd)
			if err != nil {
				return err
			}
			return tokens.Delete(server)
		},
	}
	addClientFlags(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show your task buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := openRemote(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			printBuckets(cmd.OutOrStdout(), rs.holder.Snapshot())
			return nil
		},
	}
	addClientFlags(cmd)
	cmd.Flags().BoolP("verbose", "v", false, "log sync activity")
	return cmd
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [bucket] [task name]",
		Short: "Add a task to a bucket (1-4)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bucket must be a number: %w", err)
			}

			rs, err := openRemote(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			task, ok := rs.holder.AddTask(database.BucketKey{Number: number}, args[1])
			if !ok {
				return fmt.Errorf("nothing added: unknown bucket or empty name")
			}
			if err := rs.gateway.Save(cmd.Context(), rs.accountID, rs.holder.Snapshot()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", task.Name, task.ID)
			return nil
		},
	}
	addClientFlags(cmd)
	cmd.Flags().BoolP("verbose", "v", false, "log sync activity")
	return cmd
}

func renameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rename [bucket] [title]",
		Short: "Rename a bucket (1-3)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bucket must be a number: %w", err)
			}

			rs, err := openRemote(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			if !rs.holder.RenameBucket(database.BucketKey{Number: number}, args[1]) {
				return fmt.Errorf("nothing renamed: unknown or recurring bucket, or invalid title")
			}
			if err := rs.gateway.Save(cmd.Context(), rs.accountID, rs.holder.Snapshot()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed bucket %d to %q\n", number, strings.TrimSpace(args[1]))
			return nil
		},
	}
	addClientFlags(cmd)
	cmd.Flags().BoolP("verbose", "v", false, "log sync activity")
	return cmd
}

func printBuckets(w io.Writer, snap database.Snapshot) {
	for _, b := range snap {
		title := b.Name
		if b.Year != nil {
			title = fmt.Sprintf("%s %d", b.Name, *b.Year)
		}
		mark := " "
		if b.Completed {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %d. %s\n", mark, b.Number, title)
		for _, t := range b.Tasks {
			check := " "
			if t.Completed {
				check = "x"
			}
			fmt.Fprintf(w, "    [%s] %s\n", check, t.Name)
		}
	}
}
