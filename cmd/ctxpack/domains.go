package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/ctxpack/internal/rules"
	"github.com/standardbeagle/ctxpack/internal/types"
	"github.com/standardbeagle/ctxpack/internal/workspace"
)

func domainsCommand() *cli.Command {
	return &cli.Command{
		Name:  "domains",
		Usage: "Manage the Domain/Rule Registry's domain overrides (.context/domains.json)",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List matched-rule domains plus custom and disabled overrides",
				Action: domainsListAction,
			},
			{
				Name:      "add",
				Usage:     "Add a custom domain",
				ArgsUsage: "NAME keyword1,keyword2,...",
				Action:    domainsAddAction,
			},
			{
				Name:      "remove",
				Usage:     "Remove a custom domain",
				ArgsUsage: "NAME",
				Action:    domainsRemoveAction,
			},
			{
				Name:      "enable",
				Usage:     "Re-enable a previously disabled domain",
				ArgsUsage: "NAME",
				Action:    domainsEnableAction,
			},
			{
				Name:      "disable",
				Usage:     "Disable a domain (built-in, framework-contributed, or custom)",
				ArgsUsage: "NAME",
				Action:    domainsDisableAction,
			},
		},
	}
}

func domainsListAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	root := cfg.Project.Root

	cached, _ := workspace.LoadProjectCache(root)
	reg := rules.NewRegistry(root, rules.BuiltinRules(), cached.ActiveDiscoveries)
	applyDomainOverrides(reg, root)

	domains := reg.Domains()
	sort.Slice(domains, func(i, j int) bool { return domains[i].Name < domains[j].Name })
	for _, d := range domains {
		fmt.Printf("%s\t%s\n", d.Name, strings.Join(d.Keywords, ", "))
	}

	overrides, _ := workspace.LoadDomainOverrides(root)
	if len(overrides.DisabledDomains) > 0 {
		fmt.Printf("disabled: %s\n", strings.Join(overrides.DisabledDomains, ", "))
	}
	return nil
}

func domainsAddAction(c *cli.Context) error {
	if c.NArg() < 2 {
		return fmt.Errorf("usage: ctxpack domains add NAME keyword1,keyword2,...")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	root := cfg.Project.Root

	name := c.Args().Get(0)
	keywords := strings.Split(c.Args().Get(1), ",")
	for i := range keywords {
		keywords[i] = strings.TrimSpace(keywords[i])
	}

	overrides, _ := workspace.LoadDomainOverrides(root)
	filtered := overrides.CustomDomains[:0]
	for _, d := range overrides.CustomDomains {
		if d.Name != name {
			filtered = append(filtered, d)
		}
	}
	overrides.CustomDomains = append(filtered, types.Domain{Name: name, Keywords: keywords})

	if err := workspace.SaveDomainOverrides(root, overrides); err != nil {
		return fmt.Errorf("save domain overrides: %w", err)
	}
	fmt.Printf("ctxpack: added custom domain %q\n", name)
	return nil
}

func domainsRemoveAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: ctxpack domains remove NAME")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	root := cfg.Project.Root
	name := c.Args().Get(0)

	overrides, _ := workspace.LoadDomainOverrides(root)
	kept := overrides.CustomDomains[:0]
	for _, d := range overrides.CustomDomains {
		if d.Name != name {
			kept = append(kept, d)
		}
	}
	overrides.CustomDomains = kept

	if err := workspace.SaveDomainOverrides(root, overrides); err != nil {
		return fmt.Errorf("save domain overrides: %w", err)
	}
	fmt.Printf("ctxpack: removed custom domain %q\n", name)
	return nil
}

func domainsEnableAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: ctxpack domains enable NAME")
	}
	return setDomainDisabled(c, c.Args().Get(0), false)
}

func domainsDisableAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("usage: ctxpack domains disable NAME")
	}
	return setDomainDisabled(c, c.Args().Get(0), true)
}

func setDomainDisabled(c *cli.Context, name string, disabled bool) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	root := cfg.Project.Root

	overrides, _ := workspace.LoadDomainOverrides(root)
	remaining := overrides.DisabledDomains[:0]
	for _, n := range overrides.DisabledDomains {
		if n != name {
			remaining = append(remaining, n)
		}
	}
	if disabled {
		remaining = append(remaining, name)
	}
	overrides.DisabledDomains = remaining

	if err := workspace.SaveDomainOverrides(root, overrides); err != nil {
		return fmt.Errorf("save domain overrides: %w", err)
	}
	verb := "enabled"
	if disabled {
		verb = "disabled"
	}
	fmt.Printf("ctxpack: %s domain %q\n", verb, name)
	return nil
}
