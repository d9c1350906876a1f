package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ecoaily/gridinsight/pkg/httpx"
	gridtls "github.com/ecoaily/gridinsight/pkg/tls"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 15 * time.Second
)

// outputs lists the accepted --output values.
var outputs = []string{"table", "json"}

// options is the resolved configuration shared by every subcommand.
type options struct {
	Server   string        `mapstructure:"server"`
	Zone     string        `mapstructure:"zone"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Output   string        `mapstructure:"output"`
	Color    bool          `mapstructure:"color"`
	CAFile   string        `mapstructure:"ca-file"`
	CertFile string        `mapstructure:"cert-file"`
	KeyFile  string        `mapstructure:"key-file"`
}

func (o *options) validate() error {
	if o.Server == "" {
		return errors.New("server cannot be empty")
	}
	if !strings.HasPrefix(o.Server, "http://") && !strings.HasPrefix(o.Server, "https://") {
		return fmt.Errorf("server %q must start with http:// or https://", o.Server)
	}
	if o.Timeout <= 0 {
		return errors.New("timeout must be > 0")
	}
	for _, out := range outputs {
		if o.Output == out {
			return nil
		}
	}
	return fmt.Errorf("invalid output %q (must be table or json)", o.Output)
}

func (o *options) tls() gridtls.Config {
	return gridtls.Config{
		Enabled:  o.CAFile != "" || o.CertFile != "",
		CertFile: o.CertFile,
		KeyFile:  o.KeyFile,
		CAFile:   o.CAFile,
	}
}

// app carries the viper instance and the resolved options to subcommands.
type app struct {
	v    *viper.Viper
	opts options
}

// newRootCmd builds the command tree. Each call gets its own viper instance
// so commands can be executed repeatedly in tests.
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "ecoctl",
		Short:         "Query grid sustainability insights from a gridinsight dashboard.",
		Long:          `ecoctl shows the current and predicted carbon intensity and renewable share of an electricity zone, together with advice on when to consume energy.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", defaultServer, "Dashboard base URL")
	flags.String("zone", "", "Grid zone (default: the dashboard's zone)")
	flags.Duration("timeout", defaultTimeout, "Request timeout")
	flags.StringP("output", "o", "table", "Output format: table or json")
	flags.Bool("color", true, "Colour table output")
	flags.String("ca-file", "", "CA certificate used to verify the dashboard")
	flags.String("cert-file", "", "Client certificate for mutual TLS")
	flags.String("key-file", "", "Client key for mutual TLS")
	flags.String("config", "", "Path to config file")
	if err := a.v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}

	root.AddCommand(newInsightCmd(a), newBreakdownCmd(a), newSeriesCmd(a))
	return root
}

// setup merges defaults, the config file, ECOCTL_* variables and flags.
func (a *app) setup() error {
	v := a.v
	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".ecoctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix("ECOCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&a.opts); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}
	a.opts.Server = strings.TrimRight(a.opts.Server, "/")
	return a.opts.validate()
}

func (a *app) client() (*apiClient, error) {
	hc, err := httpx.NewClient(a.opts.tls(), a.opts.Timeout)
	if err != nil {
		return nil, err
	}
	return &apiClient{baseURL: a.opts.Server, http: hc}, nil
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.opts.Timeout)
}
