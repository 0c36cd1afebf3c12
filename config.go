package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	maxRooms       int
	origins        []string
	port           int
	prefix         string
	profile        bool
	roundEndDelay  time.Duration
	sessionTimeout time.Duration
	settleDelay    time.Duration
	shortDeck      bool
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.maxRooms < 1 {
		return fmt.Errorf("invalid room limit (must be positive): %d", c.maxRooms)
	}
	if c.settleDelay < 0 {
		return fmt.Errorf("invalid settle delay (must not be negative): %s", c.settleDelay)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SKEWERBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "skewerbox...",
		Short:         "A pair of fast-paced multiplayer party games behind a single relay server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SKEWERBOX_BIND)")
	fs.IntVar(&cfg.maxRooms, "max-rooms", 512, "maximum number of concurrently open rooms (env: SKEWERBOX_MAX_ROOMS)")
	fs.StringSliceVar(&cfg.origins, "origins", []string{}, "allowed websocket origins, or * for any (env: SKEWERBOX_ORIGINS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SKEWERBOX_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SKEWERBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SKEWERBOX_PROFILE)")
	fs.DurationVar(&cfg.roundEndDelay, "round-end-delay", 1500*time.Millisecond, "pause between the final skewer submission and the results screen (env: SKEWERBOX_ROUND_END_DELAY)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed (env: SKEWERBOX_IDLE_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.settleDelay, "settle-delay", 400*time.Millisecond, "window between a card flip and turn resolution, for client animation sync (env: SKEWERBOX_SETTLE_DELAY)")
	fs.BoolVar(&cfg.shortDeck, "short-deck", false, "deal a truncated deck of five cards per player, for faster games (env: SKEWERBOX_SHORT_DECK)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SKEWERBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SKEWERBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SKEWERBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SKEWERBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("skewerbox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
