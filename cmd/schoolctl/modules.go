package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"schoolhub/internal/client"
	"schoolhub/internal/editor"
	"schoolhub/internal/modules"
	"schoolhub/internal/navigation"

	"github.com/spf13/cobra"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Show and change which modules each role can see",
	RunE:  runModulesList,
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every role's module map",
	Args:  cobra.NoArgs,
	RunE:  runModulesList,
}

var modulesSetCmd = &cobra.Command{
	Use:   "set <role> <module>=<on|off>...",
	Short: "Change module toggles for one role",
	Long: `Change module toggles for one role. The role may be given by id or name.

Only modules whose value differs from the server are sent; when nothing
differs no request is made.

Example:
  schoolctl modules set teacher cbt=on fees=off`,
	Args: cobra.MinimumNArgs(2),
	RunE: runModulesSet,
}

var modulesNavCmd = &cobra.Command{
	Use:   "nav <role>",
	Short: "Print the navigation a role would see",
	Args:  cobra.ExactArgs(1),
	RunE:  runModulesNav,
}

func loadModuleEditor(cmd *cobra.Command) (*editor.ModuleEditor, error) {
	ed := editor.NewModuleEditor(api, log)
	if err := ed.Load(cmd.Context()); err != nil {
		return nil, fmt.Errorf("failed to load role modules: %w", err)
	}
	return ed, nil
}

// resolveRole matches arg against role ids first, then names (case-insensitive)
func resolveRole(roles []client.RoleRef, arg string) (client.RoleRef, error) {
	for _, r := range roles {
		if r.ID == arg {
			return r, nil
		}
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, arg) {
			return r, nil
		}
	}
	return client.RoleRef{}, fmt.Errorf("role %q not found", arg)
}

func parseToggle(arg string) (string, bool, error) {
	module, raw, ok := strings.Cut(arg, "=")
	if !ok || module == "" {
		return "", false, fmt.Errorf("expected <module>=<on|off>, got %q", arg)
	}
	switch strings.ToLower(raw) {
	case "on", "enable", "enabled":
		return module, true, nil
	case "off", "disable", "disabled":
		return module, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return "", false, fmt.Errorf("invalid value %q for module %s", raw, module)
	}
	return module, v, nil
}

type roleModulesView struct {
	Role    string          `yaml:"role"`
	ID      string          `yaml:"id"`
	Modules map[string]bool `yaml:"modules"`
}

func runModulesList(cmd *cobra.Command, args []string) error {
	ed, err := loadModuleEditor(cmd)
	if err != nil {
		return err
	}

	views := make([]roleModulesView, 0, len(ed.Roles()))
	for _, r := range ed.Roles() {
		if err := ed.SelectRole(r.ID); err != nil {
			return err
		}
		views = append(views, roleModulesView{Role: r.Name, ID: r.ID, Modules: ed.Modules()})
	}

	out := cmd.OutOrStdout()
	if output == "yaml" {
		return writeYAML(out, views)
	}

	available := ed.AvailableModules()
	fmt.Fprintf(out, "%-20s", "ROLE")
	for _, m := range available {
		fmt.Fprintf(out, " %-12s", m)
	}
	fmt.Fprintln(out)
	for _, v := range views {
		fmt.Fprintf(out, "%-20s", v.Role)
		for _, m := range available {
			mark := "-"
			if v.Modules[m] {
				mark = "on"
			}
			fmt.Fprintf(out, " %-12s", mark)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func runModulesSet(cmd *cobra.Command, args []string) error {
	ed, err := loadModuleEditor(cmd)
	if err != nil {
		return err
	}
	role, err := resolveRole(ed.Roles(), args[0])
	if err != nil {
		return err
	}
	if err := ed.SelectRole(role.ID); err != nil {
		return err
	}

	for _, arg := range args[1:] {
		module, want, err := parseToggle(arg)
		if err != nil {
			return err
		}
		if ed.Modules()[module] == want {
			continue
		}
		if err := ed.Toggle(module); err != nil {
			return fmt.Errorf("%s: %w", module, err)
		}
	}

	out := cmd.OutOrStdout()
	if !ed.CanSave() {
		fmt.Fprintf(out, "No changes for %s\n", role.Name)
		return nil
	}

	pending := ed.Pending()
	saveErr := ed.Save(cmd.Context())
	if b := ed.Banner(); b != nil {
		fmt.Fprintln(out, b.Text)
	}
	if saveErr != nil {
		return saveErr
	}

	changed := make([]string, 0, len(pending))
	for m, v := range pending {
		changed = append(changed, fmt.Sprintf("%s=%t", m, v))
	}
	sort.Strings(changed)
	fmt.Fprintf(out, "%s: %s\n", role.Name, strings.Join(changed, " "))
	return nil
}

func runModulesNav(cmd *cobra.Command, args []string) error {
	ed, err := loadModuleEditor(cmd)
	if err != nil {
		return err
	}
	role, err := resolveRole(ed.Roles(), args[0])
	if err != nil {
		return err
	}
	if err := ed.SelectRole(role.ID); err != nil {
		return err
	}

	entries := navigation.Filter(modules.Parse(ed.Modules()), navigation.DefaultEntries())

	out := cmd.OutOrStdout()
	if output == "yaml" {
		return writeYAML(out, entries)
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%-24s %s\n", e.Name, e.Href)
		for _, sub := range e.SubItems {
			fmt.Fprintf(out, "  %-22s %s\n", sub.Name, sub.Href)
		}
	}
	return nil
}
