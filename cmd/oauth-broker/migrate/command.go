package migrate

import (
	"github.com/spf13/cobra"

	"github.com/mcpconsole/oauth-broker/internal/business"
	"github.com/mcpconsole/oauth-broker/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"OAuth Broker migrations",
		"OAuth Broker migrations applies the database schema for the server registry.",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
