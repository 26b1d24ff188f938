// Package customerctl implements the customerctl subcommands.
package customerctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/models"
	"github.com/kylevidrine/portal/pkg/logger"
)

const usage = `usage: customerctl <command> [args]

commands:
  list               list customers, newest first
  count              print the number of customers
  show <id>          print one customer with credentials redacted
  delete -yes <id>   hard-delete a customer
`

var errUsage = errors.New("invalid usage")

// Run executes one subcommand and returns the process exit code.
func Run(ctx context.Context, svc *customers.Service, args []string, out, errOut io.Writer) int {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if len(args) == 0 {
		fmt.Fprint(errOut, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "list":
		err = list(ctx, svc, out)
	case "count":
		err = count(ctx, svc, out)
	case "show":
		err = show(ctx, svc, args[1:], out)
	case "delete":
		err = remove(ctx, svc, args[1:], out, errOut)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command %q\n", args[0])
		fmt.Fprint(errOut, usage)
		return 2
	}
	if errors.Is(err, errUsage) {
		fmt.Fprint(errOut, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return 1
	}
	return 0
}

func list(ctx context.Context, svc *customers.Service, out io.Writer) error {
	all, err := svc.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tWORKSPACE\tACCOUNTING\tCREATED")
	for _, c := range all {
		company := "-"
		if c.HasAccounting() {
			company = c.Accounting.CompanyID
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", c.ID, c.Email, c.HasWorkspace(), company, c.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}

func count(ctx context.Context, svc *customers.Service, out io.Writer) error {
	n, err := svc.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, n)
	return nil
}

type shownCustomer struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Name       string            `json:"name"`
	Picture    string            `json:"picture,omitempty"`
	Workspace  map[string]string `json:"workspace,omitempty"`
	Accounting map[string]string `json:"accounting,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func redacted(c *models.Customer) shownCustomer {
	s := shownCustomer{ID: c.ID, Email: c.Email, Name: c.Name, Picture: c.Picture, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	if c.HasWorkspace() {
		s.Workspace = map[string]string{
			"accessToken":  logger.Redact(c.Workspace.AccessToken),
			"refreshToken": logger.Redact(c.Workspace.RefreshToken),
			"expiresAt":    c.Workspace.ExpiresAt.UTC().Format(time.RFC3339),
			"scopes":       fmt.Sprint(c.Workspace.Scopes),
		}
	}
	if c.HasAccounting() {
		s.Accounting = map[string]string{
			"accessToken":  logger.Redact(c.Accounting.AccessToken),
			"refreshToken": logger.Redact(c.Accounting.RefreshToken),
			"companyId":    c.Accounting.CompanyID,
			"apiBaseUrl":   c.Accounting.APIBaseURL,
			"expiresAt":    c.Accounting.ExpiresAt.UTC().Format(time.RFC3339),
		}
	}
	return s
}

func show(ctx context.Context, svc *customers.Service, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errUsage
	}
	c, err := svc.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("customer %s not found", args[0])
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(redacted(c))
}

func remove(ctx context.Context, svc *customers.Service, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(errOut)
	yes := fs.Bool("yes", false, "confirm the delete")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	if !*yes {
		return errors.New("refusing to delete without -yes")
	}
	id := fs.Arg(0)
	res, err := svc.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !res.Deleted {
		fmt.Fprintf(out, "customer %s not found; nothing deleted\n", id)
		return nil
	}
	logger.Infof("audit: action=customer.delete customer=%s actor=customerctl", id)
	fmt.Fprintf(out, "deleted customer %s (%s)\n", id, res.Email)
	return nil
}
