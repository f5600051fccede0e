package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// DefaultRootFlagName exposes the shared repository root flag name.
	DefaultRootFlagName = "root"
	// DefaultRootFlagUsage describes the shared repository root flag purpose.
	DefaultRootFlagUsage = "Directories scanned for forks with an upstream remote (repeatable)"
)

// RootFlagDefinition captures configuration for repository root flags.
type RootFlagDefinition struct {
	Name       string
	Usage      string
	Persistent bool
}

// RootFlagValues stores repository root flag values.
type RootFlagValues struct {
	Roots []string
}

// BindRootFlags attaches the repository root flag to command and returns the bound values.
func BindRootFlags(command *cobra.Command, defaults RootFlagValues, definition RootFlagDefinition) *RootFlagValues {
	values := RootFlagValues{Roots: append([]string{}, defaults.Roots...)}
	if command == nil {
		return &values
	}
	flagName := definition.Name
	if len(flagName) == 0 {
		flagName = DefaultRootFlagName
	}
	flagUsage := definition.Usage
	if len(flagUsage) == 0 {
		flagUsage = DefaultRootFlagUsage
	}

	targetSet := command.Flags()
	if definition.Persistent {
		targetSet = command.PersistentFlags()
	}
	if targetSet.Lookup(flagName) == nil {
		targetSet.StringArrayVar(&values.Roots, flagName, values.Roots, flagUsage)
	}
	return &values
}

// Changed reports whether flagName was set on command, including inherited persistent flags.
func Changed(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	flagSets := []*pflag.FlagSet{command.Flags(), command.PersistentFlags(), command.InheritedFlags()}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSets = append(flagSets, rootCommand.PersistentFlags())
	}
	for _, flagSet := range flagSets {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
