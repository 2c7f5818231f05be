package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/drive-api/internal/app"
	"github.com/noah-isme/drive-api/internal/models"
	"github.com/noah-isme/drive-api/pkg/config"
	"github.com/noah-isme/drive-api/pkg/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the environment config and wires a DriveApp. The caller must
// defer Close.
func newApp(ctx context.Context) (*app.DriveApp, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logr)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, logr, nil
}

// parsePrincipal builds a principal from the --user and --group flags. An
// empty user selects the system session.
func parsePrincipal(user string, groups []string, admin bool) (*models.Principal, error) {
	if user == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(user)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", user, err)
	}
	p := &models.Principal{ID: id, Admin: admin}
	for _, raw := range groups {
		g, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid group id %q: %w", raw, err)
		}
		p.Groups = append(p.Groups, g)
	}
	return p, nil
}

var (
	userFlag   string
	groupFlags []string
	adminFlag  bool
)

var rootCmd = &cobra.Command{
	Use:          "drivectl",
	Short:        "Maintenance tool for the drive node store",
	SilenceUsage: true,
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Destroy nodes whose destroy time has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, logr, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck
		defer a.Close(ctx)

		n, err := a.Filesystem.CollectExpired(ctx)
		if err != nil {
			return fmt.Errorf("collecting expired nodes: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Destroyed %d node(s)\n", n)
		return nil
	},
}

var (
	treePath    string
	treeID      string
	treeDepth   int
	treeDeleted int
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print a collection subtree",
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, err := parsePrincipal(userFlag, groupFlags, adminFlag)
		if err != nil {
			return err
		}
		mode := models.DeletedMode(treeDeleted)
		if !mode.Valid() {
			return fmt.Errorf("invalid --deleted value %d", treeDeleted)
		}

		ctx := cmd.Context()
		a, logr, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck
		defer a.Close(ctx)

		s := a.Filesystem.NewSession(principal)
		defer s.Close()
		dir, err := s.FindCollection(ctx, treeID, treePath)
		if err != nil {
			return err
		}
		tree, err := buildTree(ctx, dir, mode, treeDepth)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), tree.Print())
		return nil
	},
}

var (
	deltaCursor string
	deltaLimit  int
	deltaScope  string
)

var deltaCmd = &cobra.Command{
	Use:   "delta",
	Short: "Print one page of a principal's change feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, err := parsePrincipal(userFlag, groupFlags, adminFlag)
		if err != nil {
			return err
		}
		if principal == nil {
			return fmt.Errorf("--user is required")
		}
		var scope *primitive.ObjectID
		if deltaScope != "" {
			id, err := primitive.ObjectIDFromHex(deltaScope)
			if err != nil {
				return fmt.Errorf("invalid --id %q: %w", deltaScope, err)
			}
			scope = &id
		}

		ctx := cmd.Context()
		a, logr, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck
		defer a.Close(ctx)

		s := a.Filesystem.NewSession(principal)
		defer s.Close()
		page, err := s.GetDelta(ctx, deltaCursor, deltaLimit, scope)
		if err != nil {
			return err
		}
		return writeDelta(cmd.OutOrStdout(), page)
	},
}

var tokenName string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a principal",
	RunE: func(cmd *cobra.Command, args []string) error {
		principal, err := parsePrincipal(userFlag, groupFlags, adminFlag)
		if err != nil {
			return err
		}
		if principal == nil {
			return fmt.Errorf("--user is required")
		}
		principal.Name = tokenName

		ctx := cmd.Context()
		a, logr, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck
		defer a.Close(ctx)

		token, expiresAt, err := a.Tokens.Issue(principal)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "Expires: %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "principal id, empty for the system session")
	rootCmd.PersistentFlags().StringSliceVar(&groupFlags, "group", nil, "group ids of the principal")
	rootCmd.PersistentFlags().BoolVar(&adminFlag, "admin", false, "mark the principal as administrator")

	treeCmd.Flags().StringVar(&treePath, "path", "/", "collection path")
	treeCmd.Flags().StringVar(&treeID, "id", "", "collection id")
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "levels to print, 0 for all")
	treeCmd.Flags().IntVar(&treeDeleted, "deleted", int(models.DeletedExclude), "0 live, 1 deleted only, 2 both")

	deltaCmd.Flags().StringVar(&deltaCursor, "cursor", "", "cursor returned by the previous page")
	deltaCmd.Flags().IntVar(&deltaLimit, "limit", 0, "page size")
	deltaCmd.Flags().StringVar(&deltaScope, "id", "", "collection scoping the first poll")

	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")

	rootCmd.AddCommand(gcCmd, treeCmd, deltaCmd, tokenCmd)
}
