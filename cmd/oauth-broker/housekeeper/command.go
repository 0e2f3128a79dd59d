package housekeeper

import (
	"github.com/spf13/cobra"

	"github.com/mcpconsole/oauth-broker/internal/business"
	"github.com/mcpconsole/oauth-broker/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"housekeeper",
		"OAuth Broker Housekeeping job",
		"OAuth Broker Housekeeping job sweeps expired pending authorizations out of the shared store.",
		buildInfo,
		cmdutils.RunAsService,
		business.HousekeeperMain,
	)
}
