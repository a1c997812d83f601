package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/lobot-sh/lobot/internal/cloud"
	"github.com/lobot-sh/lobot/internal/errors"
	"github.com/lobot-sh/lobot/internal/lifecycle"
	"github.com/lobot-sh/lobot/internal/ui"
)

// listWorkflow renders the instance table for the working region.
func (a *app) listWorkflow(ctx context.Context) error {
	instances, err := a.cloud.ListInstances(ctx)
	if err != nil {
		return err
	}

	prices := a.loadPrices(ctx, instances)

	fmt.Fprintf(a.out, "Instances in %s:\n\n", a.cfg.Region)
	fmt.Fprintln(a.out, ui.RenderInstanceTable(instances, prices))
	return nil
}

// startWorkflow starts an instance and waits for it to report running
// with a public address.
func (a *app) startWorkflow(ctx context.Context, inst cloud.Instance) error {
	spinner := ui.NewSpinner(fmt.Sprintf("Starting %s", inst.Label()))
	spinner.Start()

	result, err := a.ctrl.Start(ctx, inst.ID, spinnerProgress(spinner))
	if err != nil {
		spinner.Fail()
		return err
	}

	spinner.Success()
	fmt.Fprintf(a.out, "%s is running at %s\n", result.Label(), result.PublicAddress)
	return nil
}

// stopWorkflow stops an instance and waits for it to report stopped.
func (a *app) stopWorkflow(ctx context.Context, inst cloud.Instance) error {
	if err := a.confirm(fmt.Sprintf("Stop %s?", inst.Label())); err != nil {
		return err
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Stopping %s", inst.Label()))
	spinner.Start()

	result, err := a.ctrl.Stop(ctx, inst.ID, spinnerProgress(spinner))
	if err != nil {
		spinner.Fail()
		return err
	}

	spinner.Success()
	fmt.Fprintf(a.out, "%s is stopped\n", result.Label())
	return nil
}

// resizeWorkflow changes the machine type. With no type argument the
// configured catalog is offered as a select.
func (a *app) resizeWorkflow(ctx context.Context, inst cloud.Instance, newType string) error {
	if newType == "" {
		var err error
		newType, err = a.pickInstanceType(inst.Type)
		if err != nil {
			return err
		}
		if newType == "" {
			fmt.Fprintln(a.out, "Cancelled.")
			return nil
		}
	}

	if newType == inst.Type {
		fmt.Fprintf(a.out, "%s is already a %s\n", inst.Label(), newType)
		return nil
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Resizing %s to %s", inst.Label(), newType))
	spinner.Start()

	result, err := a.ctrl.Resize(ctx, inst.ID, newType)
	if err != nil {
		spinner.Fail()
		return err
	}

	spinner.Success()
	fmt.Fprintf(a.out, "%s is now a %s\n", result.Label(), result.Type)
	return nil
}

// renameWorkflow sets the display name. With no name argument it prompts.
func (a *app) renameWorkflow(ctx context.Context, inst cloud.Instance, newName string) error {
	if newName == "" {
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("New name for %s", inst.Label())).
				Value(&newName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}),
		))
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"failed to read the new name",
				"Pass the name as an argument: lobot rename <id> <name>")
		}
	}

	if err := a.confirm(fmt.Sprintf("Rename %s to %q?", inst.Label(), newName)); err != nil {
		return err
	}

	result, err := a.ctrl.Rename(ctx, inst.ID, newName)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s %s renamed to %q\n", ui.SymbolSuccess, result.ID, result.Name)
	return nil
}

// shellWorkflow opens an interactive shell on a running instance.
func (a *app) shellWorkflow(ctx context.Context, inst cloud.Instance) error {
	fmt.Fprintf(a.out, "Connecting to %s...\n", inst.Label())
	return a.session.Shell(ctx, inst, os.Stdin, os.Stdout, os.Stderr)
}

// notebookWorkflow tunnels the remote notebook server to a local port
// and blocks until interrupted.
func (a *app) notebookWorkflow(ctx context.Context, inst cloud.Instance) error {
	spinner := ui.NewSpinner(fmt.Sprintf("Preparing notebook on %s", inst.Label()))
	spinner.Start()

	nb, err := a.session.Notebook(ctx, inst)
	if err != nil {
		spinner.Fail()
		return err
	}
	defer nb.Close()

	spinner.Success()
	fmt.Fprintf(a.out, "\nNotebook available at:\n\n  %s\n\nPress Ctrl+C to close the tunnel.\n", nb.URL)

	err = nb.Tunnel.Serve(ctx)
	if ctx.Err() != nil {
		// Normal teardown on interrupt; the remote server keeps running.
		fmt.Fprintf(a.out, "\nTunnel closed. The notebook server is still running on %s.\n", inst.Label())
		return nil
	}
	return err
}

// runWorkflow executes a one-off command on a running instance and
// propagates its exit code.
func (a *app) runWorkflow(ctx context.Context, inst cloud.Instance, command string) error {
	code, err := a.session.Run(ctx, inst, command, a.out, os.Stderr)
	if err != nil {
		return err
	}
	if code != 0 {
		return errors.NewExitError(code)
	}
	return nil
}

// deployWorkflow pushes the local deploy directory to the instance.
func (a *app) deployWorkflow(ctx context.Context, inst cloud.Instance) error {
	if err := a.confirm(fmt.Sprintf("Deploy %s to %s?", a.cfg.DeployDir, inst.Label())); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Deploying %s -> %s\n", a.cfg.DeployDir, inst.Label())
	if err := a.session.Push(ctx, inst, a.cfg.DeployDir, a.out); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Deploy complete\n", ui.SymbolSuccess)
	return nil
}

// fetchWorkflow pulls the remote fetch directory into the local one.
func (a *app) fetchWorkflow(ctx context.Context, inst cloud.Instance) error {
	fmt.Fprintf(a.out, "Fetching from %s -> %s\n", inst.Label(), a.cfg.FetchDir)
	if err := a.session.Pull(ctx, inst, a.cfg.FetchDir, a.out); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s Fetch complete\n", ui.SymbolSuccess)
	return nil
}

// infoWorkflow shows the extended details view for one instance.
func (a *app) infoWorkflow(ctx context.Context, inst cloud.Instance) error {
	details, err := a.cloud.DescribeInstanceDetails(ctx, inst.ID)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Name", details.Name},
		{"ID", details.ID},
		{"Type", details.Type},
		{"State", details.State.String()},
		{"Address", orDash(details.PublicAddress)},
		{"Key pair", orDash(details.KeyName)},
		{"Zone", orDash(details.Zone)},
		{"Image", orDash(details.ImageID)},
		{"Image name", orDash(details.ImageName)},
		{"CPU cores", fmt.Sprintf("%d", details.CPUCores)},
	}
	if !details.LaunchTime.IsZero() {
		rows = append(rows, []string{"Launched", details.LaunchTime.Format(time.RFC3339)})
	}

	fmt.Fprintln(a.out, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Field", Width: 12},
		{Title: "Value", Width: 44},
	}, rows))
	return nil
}

// regionsWorkflow lists the regions available to the account.
func (a *app) regionsWorkflow(ctx context.Context) error {
	regions, err := a.cloud.ListRegions(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(regions))
	for _, r := range regions {
		rows = append(rows, []string{r.Code, orDash(r.Location)})
	}

	fmt.Fprintln(a.out, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Region", Width: 16},
		{Title: "Location", Width: 32},
	}, rows))
	return nil
}

// confirm asks before a mutating action unless --yes was given. A
// decline returns errCancelled so the whole workflow unwinds cleanly.
func (a *app) confirm(title string) error {
	if yesFlag {
		return nil
	}

	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"failed to read confirmation",
			"Pass --yes to skip prompts")
	}
	if !ok {
		return errCancelled
	}
	return nil
}

// errCancelled unwinds a declined confirmation without rendering an
// error; workflows treat it as a clean no-op.
var errCancelled = errors.New(errors.ErrConfig, "cancelled", "")

// pickInstanceType offers the configured catalog as a select. Returns
// "" when the operator cancels.
func (a *app) pickInstanceType(current string) (string, error) {
	options := make([]huh.Option[string], 0, len(a.cfg.InstanceTypes))
	for _, t := range sortedTypes(a.cfg.InstanceTypes) {
		label := t
		if desc := a.cfg.InstanceTypes[t]; desc != "" {
			label = fmt.Sprintf("%s (%s)", t, desc)
		}
		if t == current {
			label += " [current]"
		}
		options = append(options, huh.NewOption(label, t))
	}

	var chosen string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("New instance type").
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"failed to read the type selection",
			"Pass the type as an argument: lobot resize <id> <type>")
	}
	return chosen, nil
}

// spinnerProgress adapts a spinner into a polling progress callback.
func spinnerProgress(s *ui.Spinner) lifecycle.ProgressFunc {
	return func(inst cloud.Instance) {
		s.SetLabel(fmt.Sprintf("%s is %s", inst.Label(), inst.State))
	}
}

// sortedTypes returns the catalog's type names in stable order.
func sortedTypes(catalog map[string]string) []string {
	types := make([]string, 0, len(catalog))
	for t := range catalog {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
