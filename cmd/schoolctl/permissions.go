package main

import (
	"fmt"
	"strings"

	"schoolhub/internal/client"
	"schoolhub/internal/editor"
	"schoolhub/internal/model"

	"github.com/spf13/cobra"
)

var permissionsCmd = &cobra.Command{
	Use:     "permissions",
	Aliases: []string{"perms"},
	Short:   "Show and edit role permission matrices",
}

var permissionsShowCmd = &cobra.Command{
	Use:   "show [role]",
	Short: "Print permission rows for one role, or every role",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPermissionsShow,
}

var permissionsSetCmd = &cobra.Command{
	Use:   "set <role> <module>.<action>=<all|owned|none>...",
	Short: "Change cells of a role's permission matrix",
	Long: `Change cells of a role's permission matrix and save the whole set.

Actions are add, view, update and delete. Values are checked before
anything is sent; the first invalid cell aborts the save.

Example:
  schoolctl permissions set teacher exams.view=all exams.update=owned`,
	Args: cobra.MinimumNArgs(2),
	RunE: runPermissionsSet,
}

func loadRoleStore(cmd *cobra.Command) (*editor.RoleStore, error) {
	store := editor.NewRoleStore(api, log)
	if err := store.Refresh(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	return store, nil
}

type permissionsView struct {
	Role        string              `yaml:"role"`
	ID          string              `yaml:"id"`
	Permissions []client.Permission `yaml:"permissions"`
}

func runPermissionsShow(cmd *cobra.Command, args []string) error {
	store, err := loadRoleStore(cmd)
	if err != nil {
		return err
	}
	snap := store.Snapshot()

	roles := snap.Roles
	if len(args) == 1 {
		role, err := resolveRole(snap.Roles, args[0])
		if err != nil {
			return err
		}
		roles = []client.RoleRef{role}
	}

	views := make([]permissionsView, 0, len(roles))
	for _, r := range roles {
		views = append(views, permissionsView{Role: r.Name, ID: r.ID, Permissions: snap.Permissions[r.ID]})
	}

	out := cmd.OutOrStdout()
	if output == "yaml" {
		return writeYAML(out, views)
	}
	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%s)\n", v.Role, v.ID)
		if len(v.Permissions) == 0 {
			fmt.Fprintln(out, "  no permissions")
			continue
		}
		fmt.Fprintf(out, "  %-16s %-6s %-6s %-6s %-6s\n", "MODULE", "ADD", "VIEW", "UPDATE", "DELETE")
		for _, p := range v.Permissions {
			fmt.Fprintf(out, "  %-16s %-6s %-6s %-6s %-6s\n", p.Module, p.Add, p.View, p.Update, p.Delete)
		}
	}
	return nil
}

// parseCell splits "module.action=level"
func parseCell(arg string) (string, model.Action, string, error) {
	key, level, ok := strings.Cut(arg, "=")
	if !ok {
		return "", "", "", fmt.Errorf("expected <module>.<action>=<level>, got %q", arg)
	}
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return "", "", "", fmt.Errorf("expected <module>.<action>=<level>, got %q", arg)
	}
	return key[:idx], model.Action(strings.ToLower(key[idx+1:])), strings.ToLower(level), nil
}

func runPermissionsSet(cmd *cobra.Command, args []string) error {
	store, err := loadRoleStore(cmd)
	if err != nil {
		return err
	}
	role, err := resolveRole(store.Snapshot().Roles, args[0])
	if err != nil {
		return err
	}

	ed := editor.NewPermissionEditor(store, log)
	if err := ed.Open(role.ID); err != nil {
		return fmt.Errorf("%s: %w", role.Name, err)
	}
	defer ed.Close()

	for _, arg := range args[1:] {
		module, action, level, err := parseCell(arg)
		if err != nil {
			return err
		}
		if err := ed.SetAccess(module, action, level); err != nil {
			return err
		}
	}

	saveErr := ed.Save(cmd.Context())
	if b := ed.Banner(); b != nil {
		fmt.Fprintln(cmd.OutOrStdout(), b.Text)
	}
	return saveErr
}
