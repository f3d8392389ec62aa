package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadpipe-cli/internal/report"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print aggregate lead metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		rep, err := report.New(st).Full(ctx)
		if err != nil {
			return err
		}

		switch reportFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return eris.Wrap(enc.Encode(rep), "encode report")
		case "yaml":
			enc := yaml.NewEncoder(os.Stdout)
			defer enc.Close()
			return eris.Wrap(enc.Encode(rep), "encode report")
		case "text":
			printTextReport(rep)
			return nil
		default:
			return eris.Errorf("unknown format %q (want text, json or yaml)", reportFormat)
		}
	},
}

func printTextReport(rep *report.Report) {
	s := rep.Summary
	fmt.Println("Summary")
	fmt.Printf("  total leads        %d\n", s.TotalLeads)
	fmt.Printf("  fresh leads        %d\n", s.FreshLeads)
	fmt.Printf("  total calls        %d\n", s.TotalCalls)
	fmt.Printf("  answered calls     %d\n", s.AnsweredCalls)
	fmt.Printf("  avg response time  %.1fs\n", s.AvgResponseTime)
	fmt.Printf("  avg call duration  %.1fs\n", s.AvgCallDuration)
	fmt.Printf("  conversion rate    %.1f%%\n", s.ConversionRate)

	f := rep.Funnel
	fmt.Println("\nFunnel")
	fmt.Printf("  leads %d -> contacted %d -> answered %d\n",
		f.TotalLeads, f.ContactedLeads, f.AnsweredCalls)

	if len(rep.Channels) > 0 {
		fmt.Println("\nChannels")
		for _, c := range rep.Channels {
			fmt.Printf("  %-20s %d\n", c.Channel, c.Count)
		}
	}

	if len(rep.Agents) > 0 {
		fmt.Println("\nAgents")
		for _, a := range rep.Agents {
			fmt.Printf("  %-20s chats=%d avg_response=%.1fs\n",
				a.Employee, a.Chats, a.AvgResponseTime)
		}
	}

	if len(rep.StatusBreakdown) > 0 {
		fmt.Println("\nCall status")
		for _, sc := range rep.StatusBreakdown {
			fmt.Printf("  %-20s %d\n", sc.Status, sc.Count)
		}
	}

	if len(rep.HourlyVolume) > 0 {
		fmt.Println("\nHourly call volume")
		for _, h := range rep.HourlyVolume {
			fmt.Printf("  %02d:00  %d\n", h.Hour, h.Count)
		}
	}

	if len(rep.FreshLeadsByDate) > 0 {
		fmt.Println("\nFresh leads by date")
		for _, d := range rep.FreshLeadsByDate {
			fmt.Printf("  %s %-20s %d\n", d.Date, d.Source, d.Count)
		}
	}

	if len(rep.ConversionBySource) > 0 {
		fmt.Println("\nConversion by source")
		for _, c := range rep.ConversionBySource {
			fmt.Printf("  %-20s leads=%d converted=%d rate=%.1f%%\n",
				c.Source, c.Leads, c.Converted, c.ConversionRate)
		}
	}

	if len(rep.ResponseTimes) > 0 {
		fmt.Println("\nResponse time distribution")
		for _, b := range rep.ResponseTimes {
			fmt.Printf("  %7.1f - %7.1fs  %d\n", b.Low, b.High, b.Count)
		}
	}
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, json or yaml")
	rootCmd.AddCommand(reportCmd)
}
