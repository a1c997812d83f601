package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/config"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/ui"
)

// Menu entries beyond the per-state actions.
const (
	menuInfo    = "info"
	menuBack    = "back"
	menuQuit    = "quit"
	menuRegion  = "region"
	menuUser    = "user"
	menuRefresh = "refresh"
)

// menuCommand runs the interactive loop: pick an instance, pick an
// action legal for its observed state, run it, repeat. Esc on the
// picker opens the session menu (region/user switching).
func menuCommand(ctx context.Context) error {
	if !ui.IsTerminal(os.Stdout) {
		return errors.New(errors.ErrConfig,
			"interactive mode needs a terminal",
			"Use the subcommands instead: lobot list, lobot start, ...")
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		instances, err := a.cloud.ListInstances(ctx)
		if err != nil {
			return err
		}

		prices := a.loadPrices(ctx, instances)
		fmt.Fprintf(a.out, "\nInstances in %s (user %s):\n\n", a.cfg.Region, a.cfg.RemoteUser)
		fmt.Fprintln(a.out, ui.RenderInstanceTable(instances, prices))

		inst, err := pickMenuInstance(instances)
		if err != nil {
			return err
		}
		if inst == nil {
			done, err := a.sessionMenu(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			continue
		}

		// The state shown may have drifted; the controller re-checks
		// preconditions against a fresh read anyway.
		action, err := pickAction(*inst)
		if err != nil {
			return err
		}
		if action == menuQuit {
			return nil
		}
		if action == menuBack {
			continue
		}

		if err := a.dispatch(ctx, *inst, action); err != nil {
			if ctx.Err() != nil {
				return err
			}
			if stderrors.Is(err, errCancelled) {
				fmt.Fprintln(a.out, "Cancelled.")
				continue
			}
			fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}

// pickMenuInstance wraps the picker; zero instances drop straight into
// the session menu rather than erroring out of the loop.
func pickMenuInstance(instances []cloud.Instance) (*cloud.Instance, error) {
	if len(instances) == 0 {
		return nil, nil
	}
	return ui.PickInstance(instances)
}

// pickAction offers the actions legal for the instance's current state.
func pickAction(inst cloud.Instance) (string, error) {
	options := actionOptions(inst.State)

	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("%s is %s", inst.Label(), inst.State)).
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"failed to read the action selection",
			"Use the subcommands instead: lobot start, lobot shell, ...")
	}
	return chosen, nil
}

// actionOptions builds the menu for a state: its legal lifecycle and
// session actions, then info, back, quit.
func actionOptions(state cloud.State) []huh.Option[string] {
	var options []huh.Option[string]
	for _, action := range cloud.ActionsFor(state) {
		options = append(options, huh.NewOption(actionLabel(action), action.String()))
	}
	options = append(options,
		huh.NewOption("Show details", menuInfo),
		huh.NewOption("Back", menuBack),
		huh.NewOption("Quit", menuQuit),
	)
	return options
}

// actionLabel is the human wording for a menu entry.
func actionLabel(a cloud.Action) string {
	switch a {
	case cloud.ActionStart:
		return "Start"
	case cloud.ActionStop:
		return "Stop"
	case cloud.ActionResize:
		return "Change instance type"
	case cloud.ActionRename:
		return "Rename"
	case cloud.ActionConnect:
		return "Open shell"
	case cloud.ActionNotebook:
		return "Open notebook"
	case cloud.ActionDeploy:
		return "Deploy files"
	case cloud.ActionFetch:
		return "Fetch files"
	default:
		return a.String()
	}
}

// dispatch runs the workflow for a chosen menu entry.
func (a *app) dispatch(ctx context.Context, inst cloud.Instance, action string) error {
	switch action {
	case cloud.ActionStart.String():
		return a.startWorkflow(ctx, inst)
	case cloud.ActionStop.String():
		return a.stopWorkflow(ctx, inst)
	case cloud.ActionResize.String():
		return a.resizeWorkflow(ctx, inst, "")
	case cloud.ActionRename.String():
		return a.renameWorkflow(ctx, inst, "")
	case cloud.ActionConnect.String():
		return a.shellWorkflow(ctx, inst)
	case cloud.ActionNotebook.String():
		return a.notebookWorkflow(ctx, inst)
	case cloud.ActionDeploy.String():
		return a.deployWorkflow(ctx, inst)
	case cloud.ActionFetch.String():
		return a.fetchWorkflow(ctx, inst)
	case menuInfo:
		return a.infoWorkflow(ctx, inst)
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("unknown action %q", action), "")
	}
}

// sessionMenu handles the region/user switches and quitting. Returns
// true when the operator chose to quit.
func (a *app) sessionMenu(ctx context.Context) (bool, error) {
	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Session").
			Options(
				huh.NewOption("Refresh", menuRefresh),
				huh.NewOption(fmt.Sprintf("Switch region (%s)", a.cfg.Region), menuRegion),
				huh.NewOption(fmt.Sprintf("Switch remote user (%s)", a.cfg.RemoteUser), menuUser),
				huh.NewOption("Quit", menuQuit),
			).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return true, nil
	}

	switch chosen {
	case menuRegion:
		return false, a.switchRegion(ctx)
	case menuUser:
		return false, a.switchRemoteUser()
	case menuQuit:
		return true, nil
	default:
		return false, nil
	}
}

// switchRegion re-targets the session at another region.
func (a *app) switchRegion(ctx context.Context) error {
	regions, err := a.cloud.ListRegions(ctx)
	if err != nil {
		return err
	}

	options := make([]huh.Option[string], 0, len(regions))
	for _, r := range regions {
		label := r.Code
		if r.Location != "" {
			label = fmt.Sprintf("%s (%s)", r.Code, r.Location)
		}
		options = append(options, huh.NewOption(label, r.Code))
	}

	chosen := a.cfg.Region
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Working region").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return nil
	}

	return a.setRegion(chosen)
}

// switchRemoteUser changes the SSH login user for this session.
func (a *app) switchRemoteUser() error {
	options := make([]huh.Option[string], 0, len(config.RemoteUsers))
	for _, u := range config.RemoteUsers {
		options = append(options, huh.NewOption(u, u))
	}

	chosen := a.cfg.RemoteUser
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Remote user").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return nil
	}

	a.setRemoteUser(chosen)
	return nil
}
