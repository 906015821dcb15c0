package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/latextools/internal/config"
)

const (
	globalFlagName = "global"
	forceFlagName  = "force"

	initUse                = "init"
	initShortDescription   = "write a default configuration file"
	initLongDescription    = "init writes .latextools.yaml into the working directory, or ~/.latextools/config.yaml with --global."
	globalFlagDescription  = "write the global configuration instead of the local one"
	forceFlagDescription   = "overwrite an existing configuration file"
	initializedMessageText = "wrote configuration to %s\n"
)

func createInitCommand() *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:          initUse,
		Short:        initShortDescription,
		Long:         initLongDescription,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destinationPath, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			fmt.Fprintf(command.OutOrStdout(), initializedMessageText, destinationPath)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, "", false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, "", false, forceFlagDescription)
	return initCommand
}
