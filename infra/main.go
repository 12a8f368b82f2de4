// Command infra is the Pulumi program the demo Stack deploys. The operator
// builds it from this directory (PROJECT_REPO_DIR=infra).
package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/chalkan3/pko-demo/pkg/infra"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		return infra.Program(infra.ArgsFromConfig(ctx))(ctx)
	})
}
