package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/psantana5/stratum/pkg/auth"
	tlsutil "github.com/psantana5/stratum/pkg/tls"
)

var certHosts []string

// apikeyCmd represents the apikey command
var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate an API key for the inspection server",
	Long:  `Print a random API key. Add it to api.keys in the config to require it on POST routes.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.NewKeySet().Generate("cli")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

// certCmd represents the cert command
var certCmd = &cobra.Command{
	Use:   "cert <dir>",
	Short: "Generate a self-signed certificate for the inspection server",
	Long: `Write server.crt and server.key into dir. Point tls.cert_file and tls.key_file
at them to serve HTTPS.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cert := filepath.Join(args[0], "server.crt")
		key := filepath.Join(args[0], "server.key")
		if err := tlsutil.GenerateSelfSigned(cert, key, "stratum", certHosts...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", cert, key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	rootCmd.AddCommand(certCmd)
	certCmd.Flags().StringSliceVar(&certHosts, "host", nil, "extra IP addresses or host names for the certificate")
}
