package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/mcpconsole/oauth-broker/internal/business"
	"github.com/mcpconsole/oauth-broker/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"OAuth Broker API server",
		"OAuth Broker API server hosts the console-facing authorization HTTP API",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
