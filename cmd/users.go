package cmd

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/webitel/user-admin-client/config"
	"github.com/webitel/user-admin-client/infra/client/users"
	"github.com/webitel/user-admin-client/internal/domain/model"
	"github.com/webitel/user-admin-client/internal/service"
)

func usersCmd() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage users on the backend",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Search users, 10 per page",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}},
					&cli.IntFlag{Name: "page", Value: 1},
				},
				Action: withDirectory(func(c *cli.Context, dir service.Directory) error {
					page, err := dir.Search(c.Context, c.String("query"), c.Int("page"))
					if err != nil {
						return err
					}
					printUsers(c.App.Writer, page.Users...)
					fmt.Fprintf(c.App.Writer, "page %d/%d, %d users\n", page.Page, page.TotalPages, page.Total)
					return nil
				}),
			},
			{
				Name:      "get",
				ArgsUsage: "<id>",
				Action: withDirectory(func(c *cli.Context, dir service.Directory) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					u, err := dir.GetByID(c.Context, id)
					if err != nil {
						return err
					}
					printUsers(c.App.Writer, u)
					return nil
				}),
			},
			{
				Name: "create",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.BoolFlag{Name: "active", Value: true},
				},
				Action: withDirectory(func(c *cli.Context, dir service.Directory) error {
					u, err := dir.Create(c.Context, userInput(c))
					if err != nil {
						return err
					}
					printUsers(c.App.Writer, u)
					return nil
				}),
			},
			{
				Name:      "update",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email"},
					&cli.StringFlag{Name: "username"},
					&cli.StringFlag{Name: "password"},
					&cli.BoolFlag{Name: "active"},
				},
				Action: withDirectory(func(c *cli.Context, dir service.Directory) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					u, err := dir.Update(c.Context, id, userInput(c))
					if err != nil {
						return err
					}
					printUsers(c.App.Writer, u)
					return nil
				}),
			},
			{
				Name:      "delete",
				ArgsUsage: "<id>",
				Action: withDirectory(func(c *cli.Context, dir service.Directory) error {
					id, err := argID(c)
					if err != nil {
						return err
					}
					if err := dir.Delete(c.Context, id); err != nil {
						return err
					}
					fmt.Fprintf(c.App.Writer, "User %d deleted\n", id)
					return nil
				}),
			},
		},
	}
}

// withDirectory builds a directory over the REST client and turns classified
// client errors into operator messages.
func withDirectory(fn func(*cli.Context, service.Directory) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		dir, err := newDirectory(cfg)
		if err != nil {
			return err
		}
		if err := fn(c, dir); err != nil {
			return cli.Exit(users.Classify(err), 1)
		}
		return nil
	}
}

func newDirectory(cfg *config.Config) (*service.UserDirectory, error) {
	api := users.New(cfg.APIURL,
		users.WithHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		users.WithTokenSource(users.NewFileStore(cfg.Auth.TokenFile)),
		users.WithBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
	)
	return service.NewUserDirectory(api, cfg.Cache.Size)
}

// userInput only carries flags that were given so updates stay partial.
func userInput(c *cli.Context) model.UserInput {
	var in model.UserInput
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	in.Email = str("email")
	in.Username = str("username")
	in.Password = str("password")
	if c.IsSet("active") || c.Command.Name == "create" {
		v := c.Bool("active")
		in.IsActive = &v
	}
	return in
}

func argID(c *cli.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return 0, cli.Exit("a numeric user id is required", 2)
	}
	return id, nil
}

func printUsers(w io.Writer, list ...model.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tSTATUS")
	for _, u := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.ActivityLabel())
	}
	_ = tw.Flush()
}
