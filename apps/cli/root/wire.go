package root

import (
	"github.com/caretrack-hq/caretrack/apps/cli/cmd/auth"
	tenantcmd "github.com/caretrack-hq/caretrack/apps/cli/cmd/tenant"
)

func init() {
	Root().AddCommand(auth.Command())
	Root().AddCommand(tenantcmd.Command())
}
