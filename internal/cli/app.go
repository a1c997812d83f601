package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/cloud/ec2"
	"github.com/lobot-sh/lobot/internal/config"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/keys"
	"github.com/lobot-sh/lobot/internal/lifecycle"
	"github.com/lobot-sh/lobot/internal/logger"
	"github.com/lobot-sh/lobot/internal/pricing"
	"github.com/lobot-sh/lobot/internal/remote"
	"github.com/lobot-sh/lobot/internal/ui"
)

// priceSource is the slice of the pricing client the CLI needs.
type priceSource interface {
	Prices(ctx context.Context, instanceTypes []string, region string) map[string]float64
}

// app holds the wired subsystems for one invocation. Commands build it
// once, run their workflow against it, and throw it away; nothing is
// shared across invocations.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	cloud   cloud.ControlPlane
	ctrl    *lifecycle.Controller
	session *remote.Session
	keys    *keys.Store
	prices  priceSource

	out io.Writer
}

// newApp loads config and wires the real subsystems against the
// provider. The --region flag overrides the configured region for this
// invocation only.
func newApp() (*app, error) {
	cfg, err := config.LoadOrDefault(configFlag)
	if err != nil {
		return nil, err
	}
	if regionFlag != "" {
		cfg.Region = regionFlag
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	log := newLogger()

	client, err := ec2.New(cfg.Region, log)
	if err != nil {
		return nil, err
	}

	store, err := keys.NewStore(cfg.KeysDir)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:  cfg,
		log:  log,
		keys: store,
		out:  os.Stdout,
	}
	a.wireRegion(client)
	return a, nil
}

// wireRegion points the control-plane-backed subsystems at a client.
func (a *app) wireRegion(client *ec2.Client) {
	a.cloud = client
	a.ctrl = lifecycle.New(client, lifecycle.Policy{
		PollInterval:     a.cfg.Poll.Interval,
		MaxPolls:         a.cfg.Poll.Attempts,
		TransientRetries: a.cfg.Poll.TransientRetries,
	}, lifecycle.RealClock(), a.log)
	a.prices = pricing.New(client.Session(), a.log)
	a.wireSession()
}

// wireSession rebuilds the remote session after a user or region change.
func (a *app) wireSession() {
	a.session = remote.NewSession(a.ctrl, a.keys, nil, remote.Options{
		User:               a.cfg.RemoteUser,
		ConnectTimeout:     a.cfg.ConnectTimeout,
		RemoteBase:         a.cfg.RemoteBase,
		NotebookRemotePort: a.cfg.Notebook.RemotePort,
		NotebookLocalPort:  a.cfg.Notebook.LocalPort,
	}, a.log)
}

// setRegion re-targets the app at another region for this session.
func (a *app) setRegion(region string) error {
	if region == "" || region == a.cfg.Region {
		return nil
	}
	client, err := ec2.New(region, a.log)
	if err != nil {
		return err
	}
	a.cfg.Region = region
	a.wireRegion(client)
	return nil
}

// setRemoteUser changes the SSH login user for this session.
func (a *app) setRemoteUser(user string) {
	if user == "" || user == a.cfg.RemoteUser {
		return
	}
	a.cfg.RemoteUser = user
	a.wireSession()
}

// newLogger builds the logger from the global verbosity flags.
func newLogger() logger.Logger {
	if quietFlag {
		return logger.Noop()
	}
	return logger.New(os.Stderr, "lobot", verboseFlag)
}

// resolveInstance turns a command argument into an instance snapshot.
// The argument matches by id first, then by name. With no argument the
// interactive picker runs over the region's instances.
func (a *app) resolveInstance(ctx context.Context, arg string) (cloud.Instance, error) {
	instances, err := a.cloud.ListInstances(ctx)
	if err != nil {
		return cloud.Instance{}, err
	}

	if arg == "" {
		picked, err := ui.PickInstance(instances)
		if err != nil {
			return cloud.Instance{}, err
		}
		if picked == nil {
			return cloud.Instance{}, errors.New(errors.ErrNotFound,
				"no instance selected",
				"Pick one from the list or pass an instance id")
		}
		return *picked, nil
	}

	for _, inst := range instances {
		if inst.ID == arg {
			return inst, nil
		}
	}
	for _, inst := range instances {
		if strings.EqualFold(inst.Name, arg) {
			return inst, nil
		}
	}

	return cloud.Instance{}, errors.New(errors.ErrNotFound,
		fmt.Sprintf("no instance %q in %s", arg, a.cfg.Region),
		"Run 'lobot list' to see what's there, or switch regions with --region")
}

// loadPrices fetches hourly prices for the listed instances when
// enabled. Lookup failures degrade to a listing without prices.
func (a *app) loadPrices(ctx context.Context, instances []cloud.Instance) map[string]float64 {
	if !a.cfg.LoadPrices || len(instances) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var types []string
	for _, inst := range instances {
		if !seen[inst.Type] {
			seen[inst.Type] = true
			types = append(types, inst.Type)
		}
	}
	return a.prices.Prices(ctx, types, a.cfg.Region)
}
