package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"gitlab.bluewillows.net/root/mchostdns/pkg/propagation"
	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// challengeFlags are the inputs certbot passes to manual hooks.
func challengeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "domain",
			Aliases: []string{"d"},
			Usage:   "domain being validated",
			EnvVars: []string{"CERTBOT_DOMAIN"},
		},
		&cli.StringFlag{
			Name:    "validation",
			Usage:   "TXT record value",
			EnvVars: []string{"CERTBOT_VALIDATION"},
		},
	}
}

type challenge struct {
	domain     string
	recordName string
	value      string
}

func challengeFrom(c *cli.Context) (challenge, error) {
	domain := c.String("domain")
	value := c.String("validation")

	if domain == "" {
		return challenge{}, errors.New("domain is required (--domain or CERTBOT_DOMAIN)")
	}
	if value == "" {
		return challenge{}, errors.New("validation is required (--validation or CERTBOT_VALIDATION)")
	}

	return challenge{
		domain:     strings.TrimPrefix(provider.NormalizeName(domain), "*."),
		recordName: provider.ChallengeRecordName(domain),
		value:      value,
	}, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Create the _acme-challenge TXT record (certbot --manual-auth-hook)",
		Flags: append(challengeFlags(),
			&cli.BoolFlag{
				Name:  "no-wait",
				Usage: "do not wait for the record to propagate",
			},
		),
		Action: runAuth,
	}
}

func runAuth(c *cli.Context) error {
	st := stateFrom(c)
	ch, err := challengeFrom(c)
	if err != nil {
		return err
	}

	if err := st.provider.Perform(c.Context, ch.domain, ch.recordName, ch.value); err != nil {
		return err
	}

	prop := st.cfg.Propagation
	if !prop.Enabled || c.Bool("no-wait") {
		return nil
	}

	checker, err := propagation.NewChecker(
		propagation.WithNameservers(prop.Nameservers...),
		propagation.WithTimeout(prop.Timeout),
		propagation.WithInterval(prop.Interval),
		propagation.WithLogger(st.logger),
	)
	if err != nil {
		return err
	}

	st.logger.Info("waiting for TXT propagation",
		slog.String("record", ch.recordName),
		slog.Any("nameservers", checker.Nameservers()),
	)

	return checker.Wait(c.Context, ch.recordName, ch.value)
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:   "cleanup",
		Usage:  "Remove the _acme-challenge TXT record (certbot --manual-cleanup-hook)",
		Flags:  challengeFlags(),
		Action: runCleanup,
	}
}

func runCleanup(c *cli.Context) error {
	st := stateFrom(c)
	ch, err := challengeFrom(c)
	if err != nil {
		return err
	}

	return st.provider.Cleanup(c.Context, ch.domain, ch.recordName, ch.value)
}

func domainsCommand() *cli.Command {
	return &cli.Command{
		Name:   "domains",
		Usage:  "List domains with a DNS order in the account",
		Action: runDomains,
	}
}

func runDomains(c *cli.Context) error {
	client, err := stateFrom(c).provider.Client(c.Context)
	if err != nil {
		return err
	}

	registry := client.Domains()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tORDER")
	for _, d := range registry.Domains() {
		fmt.Fprintf(w, "%s\t%s\n", d, registry[d])
	}
	return w.Flush()
}

func recordsCommand() *cli.Command {
	return &cli.Command{
		Name:      "records",
		Usage:     "List TXT records of the zone owning a domain",
		ArgsUsage: "<domain>",
		Action:    runRecords,
	}
}

func runRecords(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("records requires exactly one domain argument")
	}

	client, err := stateFrom(c).provider.Client(c.Context)
	if err != nil {
		return err
	}

	base, zoneID, err := client.ResolveDomain(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	records, err := client.TXTRecords(c.Context, zoneID)
	if err != nil {
		return err
	}

	type row struct {
		id            int64
		name, content string
	}
	rows := make([]row, 0, len(records))
	for key, id := range records {
		rows = append(rows, row{id: id, name: key.Name, content: key.Content})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })

	fmt.Fprintf(c.App.Writer, "zone %d (%s)\n", zoneID, base)
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCONTENT")
	for _, r := range rows {
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.id, r.name, r.content)
	}
	return w.Flush()
}
