package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/reoring/jsonrel/internal/server"
	"github.com/reoring/jsonrel/pkg/logger"
)

var serveBindings = []binding{
	{"addr", "server.addr"},
	{"max-body-bytes", "server.max_body_bytes"},
	{"driver", "input.driver"},
	{"on-duplicate-key", "parse.on_duplicate_key"},
}

// ServeCmd runs the HTTP service until the command context is canceled.
func ServeCmd(fs afero.Fs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve normalization over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cfg, err := setup(cmd, fs, append(append([]binding{}, serveBindings...), policyBindings...), negations(cmd.Flags()))
			if err != nil {
				return err
			}
			if cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv, err := server.New(cfg, logger.FromContext(ctx))
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "listen address (default :8080)")
	f.Int64("max-body-bytes", 0, "maximum request body size")
	f.String("driver", "", "JSON driver: go-json|encoding/json")
	f.String("on-duplicate-key", "", "ignore|warn|error")
	addPolicyFlags(f)
	return cmd
}
