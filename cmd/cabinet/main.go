package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	models "cabinet/internal/domain/models/namespace"
	nsSvc "cabinet/internal/domain/services/namespace"
	"cabinet/internal/repository/postgres/migrations"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var actorID string

var rootCmd = &cobra.Command{
	Use:          "cabinet",
	Short:        "Partitioned folder and file namespace",
	SilenceUsage: true,
}

// actor returns the --as flag or fails
func actor() (string, error) {
	if strings.TrimSpace(actorID) == "" {
		return "", fmt.Errorf("--as is required")
	}
	return actorID, nil
}

// withApp runs fn against a freshly wired app
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		pool, err := openPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.MigrateUp(pool, cfg.TablePrefix); err != nil {
			return err
		}
		logger.Info("migrations applied", "table_prefix", cfg.TablePrefix)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the schema is at the latest version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, closer, err := loadConfig()
		if err != nil {
			return err
		}
		defer closer.Close()

		pool, err := openPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := migrations.CheckStatus(pool, cfg.TablePrefix); err != nil {
			return err
		}
		fmt.Println("Schema is up to date")
		return nil
	},
}

// bootstrap command
var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the system partitions if absent",
	RunE: func(cmd *cobra.Command, args []string) error {
		// newApp bootstraps on every start
		return withApp(cmd, func(ctx context.Context, a *app) error {
			fmt.Println("Partitions ready")
			return nil
		})
	},
}

// tree command
var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the folder tree of every partition",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := actor()
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		return withApp(cmd, func(ctx context.Context, a *app) error {
			roots, err := a.trees.GetFolderTree(ctx, owner)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), roots)
			}
			for _, root := range roots {
				printNode(cmd.OutOrStdout(), root, 0)
			}
			return nil
		})
	},
}

func printNode(w io.Writer, node *models.TreeNode, depth int) {
	id := "-"
	if node.FolderID != nil {
		id = *node.FolderID
	}
	fmt.Fprintf(w, "%s%s  (%d bytes, %s)\n", strings.Repeat("  ", depth), node.Name, node.Size, id)
	for _, child := range node.Children {
		printNode(w, child, depth+1)
	}
}

// du command
var duCmd = &cobra.Command{
	Use:   "du <folder-id>",
	Short: "Show the total size of a folder subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			size, err := a.trees.CalculateFolderSize(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), size)
			return nil
		})
	},
}

// ls command
var lsCmd = &cobra.Command{
	Use:   "ls <partition|folder-id>",
	Short: "List one level of a partition or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			contents, err := a.folders.GetFolderChildren(ctx, user, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, f := range contents.Folders {
				fmt.Fprintf(w, "d  %s  %s  %s\n", f.PermissionBits, f.ID, f.Name)
			}
			for _, f := range contents.Files {
				fmt.Fprintf(w, "-  %s  %s  %s  v%d  %d\n", f.PermissionBits, f.ID, f.Name, f.CurrentVersion, f.Size)
			}
			return nil
		})
	},
}

// mkdir command
var mkdirCmd = &cobra.Command{
	Use:   "mkdir <name>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := actor()
		if err != nil {
			return err
		}
		parent, _ := cmd.Flags().GetString("parent")
		partition, _ := cmd.Flags().GetString("partition")
		perm, _ := cmd.Flags().GetString("perm")

		req := &nsSvc.CreateFolderRequest{Name: args[0], OwnerID: owner, PermissionBits: perm}
		if parent != "" {
			req.ParentID = &parent
		}
		if partition != "" {
			t, ok := models.ParsePartitionType(partition)
			if !ok {
				return fmt.Errorf("unknown partition %q", partition)
			}
			req.Partition = &t
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			folder, err := a.folders.CreateFolder(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), folder)
		})
	},
}

// mv command
var mvCmd = &cobra.Command{
	Use:   "mv",
	Short: "Rename, move or chmod folders and files",
}

var mvFolderCmd = &cobra.Command{
	Use:   "folder <folder-id>",
	Short: "Update a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		req := &nsSvc.UpdateFolderRequest{}
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			req.Name = &name
		}
		if cmd.Flags().Changed("perm") {
			perm, _ := cmd.Flags().GetString("perm")
			req.PermissionBits = &perm
		}
		if cmd.Flags().Changed("parent") {
			parent, _ := cmd.Flags().GetString("parent")
			if parent == "" {
				req.ParentID = nsSvc.ClearID()
			} else {
				req.ParentID = nsSvc.SetID(parent)
			}
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			folder, err := a.folders.UpdateFolder(ctx, user, args[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), folder)
		})
	},
}

var mvFileCmd = &cobra.Command{
	Use:   "file <file-id>",
	Short: "Update a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		req := &nsSvc.UpdateFileRequest{}
		if cmd.Flags().Changed("name") {
			name, _ := cmd.Flags().GetString("name")
			req.Name = &name
		}
		if cmd.Flags().Changed("perm") {
			perm, _ := cmd.Flags().GetString("perm")
			req.PermissionBits = &perm
		}
		if cmd.Flags().Changed("folder") {
			folder, _ := cmd.Flags().GetString("folder")
			req.FolderID = &folder
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			file, err := a.files.UpdateFile(ctx, user, args[0], req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), file)
		})
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Delete folders and files",
}

var rmFolderCmd = &cobra.Command{
	Use:   "folder <folder-id>",
	Short: "Delete a folder and everything beneath it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return a.folders.DeleteFolder(ctx, user, args[0])
		})
	},
}

var rmFileCmd = &cobra.Command{
	Use:   "file <file-id>",
	Short: "Delete a file and all its versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return a.files.DeleteFile(ctx, user, args[0])
		})
	},
}

// put command
var putCmd = &cobra.Command{
	Use:   "put <local-path>...",
	Short: "Upload files into a folder (same name adds a version)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := actor()
		if err != nil {
			return err
		}
		folderID, _ := cmd.Flags().GetString("folder")
		perm, _ := cmd.Flags().GetString("perm")

		req := &nsSvc.BatchUploadRequest{FolderID: &folderID, OwnerID: owner}
		for _, p := range args {
			f, err := os.Open(p)
			if err != nil {
				return fmt.Errorf("opening %s: %w", p, err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			req.Items = append(req.Items, nsSvc.UploadedItem{
				Name:           filepath.Base(p),
				Content:        f,
				MimeType:       mime.TypeByExtension(filepath.Ext(p)),
				Size:           info.Size(),
				PermissionBits: perm,
			})
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			files, err := a.files.UploadFiles(ctx, req)
			if err != nil {
				return err
			}
			if len(files) < len(req.Items) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d uploads failed, see log\n", len(req.Items)-len(files), len(req.Items))
			}
			return printJSON(cmd.OutOrStdout(), files)
		})
	},
}

// get command
var getCmd = &cobra.Command{
	Use:   "get <file-id>",
	Short: "Download a file version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		var version *int
		if cmd.Flags().Changed("version") {
			v, _ := cmd.Flags().GetInt("version")
			version = &v
		}
		out, _ := cmd.Flags().GetString("output")

		return withApp(cmd, func(ctx context.Context, a *app) error {
			content, err := a.files.GetFileContent(ctx, user, args[0], version)
			if err != nil {
				return err
			}
			defer content.Body.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if _, err := io.Copy(w, content.Body); err != nil {
				return fmt.Errorf("writing content: %w", err)
			}
			return nil
		})
	},
}

// versions command
var versionsCmd = &cobra.Command{
	Use:   "versions <file-id>",
	Short: "List the version chain of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := actor()
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			chain, err := a.files.ListVersions(ctx, user, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), chain)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorID, "as", os.Getenv("CABINET_USER"), "acting user ID (defaults to $CABINET_USER)")

	migrateCmd.AddCommand(migrateStatusCmd)

	treeCmd.Flags().Bool("json", false, "print the tree as JSON")

	mkdirCmd.Flags().String("parent", "", "parent folder ID (empty for partition level)")
	mkdirCmd.Flags().String("partition", "", "partition when no parent is given (general, private)")
	mkdirCmd.Flags().String("perm", "", "permission bits, e.g. 755")

	for _, c := range []*cobra.Command{mvFolderCmd, mvFileCmd} {
		c.Flags().String("name", "", "new name")
		c.Flags().String("perm", "", "new permission bits")
	}
	mvFolderCmd.Flags().String("parent", "", "new parent folder ID (empty moves to partition level)")
	mvFileCmd.Flags().String("folder", "", "destination folder ID")
	mvCmd.AddCommand(mvFolderCmd, mvFileCmd)

	rmCmd.AddCommand(rmFolderCmd, rmFileCmd)

	putCmd.Flags().String("folder", "", "destination folder ID")
	putCmd.Flags().String("perm", "", "permission bits, e.g. 644")
	_ = putCmd.MarkFlagRequired("folder")

	getCmd.Flags().Int("version", 0, "version to fetch (defaults to current)")
	getCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")

	rootCmd.AddCommand(
		migrateCmd,
		bootstrapCmd,
		treeCmd,
		duCmd,
		lsCmd,
		mkdirCmd,
		mvCmd,
		rmCmd,
		putCmd,
		getCmd,
		versionsCmd,
	)
}
