package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/artpar/cloudgate/config"
	"github.com/artpar/cloudgate/pkg/cloudclient"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	clientURL      string
	clientUser     string
	clientPassword string
	clientTimeout  time.Duration
	clientVerbose  bool
)

// addClientFlags registers the connection flags on a command that talks to
// a server. Unset flags fall back to the client section of the config.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&clientURL, "url", "", "API entry point URL")
	cmd.Flags().StringVarP(&clientUser, "user", "u", "", "API user")
	cmd.Flags().StringVarP(&clientPassword, "password", "p", "", "API password (prompted when empty)")
	cmd.Flags().DurationVar(&clientTimeout, "timeout", 0, "request timeout")
	cmd.Flags().BoolVarP(&clientVerbose, "verbose", "v", false, "log requests and schema diagnostics to stderr")
}

func connect(cmd *cobra.Command) (*cloudclient.Client, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, err
	}
	cc := cfg.Client

	if clientURL != "" {
		cc.URL = clientURL
	}
	if clientUser != "" {
		cc.User = clientUser
	}
	if clientPassword != "" {
		cc.Password = clientPassword
	}
	if clientTimeout > 0 {
		cc.Timeout = clientTimeout
	}
	if cc.User == "" {
		cc.User = cfg.Auth.User
	}
	if cc.Password == "" {
		cc.Password, err = promptPassword(cc.User)
		if err != nil {
			return nil, err
		}
	}

	clientCfg := cloudclient.Config{
		BaseURL:  cc.URL,
		Username: cc.User,
		Password: cc.Password,
		Timeout:  cc.Timeout,
	}
	if clientVerbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(zerolog.DebugLevel).With().Timestamp().Logger()
		clientCfg.Logger = &logger
	}

	return cloudclient.New(commandContext(cmd), clientCfg)
}

func promptPassword(user string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no password configured for %s; use --password or client.password", user)
	}
	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(password), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseKeyValues turns repeated k=v flags into params.
func parseKeyValues(pairs []string) (cloudclient.Params, error) {
	params := cloudclient.Params{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value %q", pair)
		}
		params[k] = v
	}
	return params, nil
}
