package arg

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/TabWarden/internal/engine"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show block set status",
	Run: func(cmd *cobra.Command, args []string) {
		client := dial()
		defer client.Close()

		raw, err := client.GetStatus()
		if err != nil {
			log.Fatal("Failed to get status:", err)
		}
		if statusJSON {
			fmt.Println(raw)
			return
		}

		var st engine.Status
		if err := json.Unmarshal([]byte(raw), &st); err != nil {
			log.Fatal("Failed to decode status:", err)
		}
		fmt.Println(renderStatus(st, time.Now()))
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status document")
	rootCmd.AddCommand(statusCmd)
}

func renderStatus(st engine.Status, now time.Time) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("TabWarden"))
	b.WriteString("\n\n")

	state := openStyle.Render("running")
	switch {
	case !st.OptionsLoaded:
		state = dimStyle.Render("loading options")
	case st.Sleeping:
		state = dimStyle.Render("asleep")
	case st.Locked:
		state = dimStyle.Render("screen locked")
	}
	fmt.Fprintf(&b, "State:   %s\n", state)
	fmt.Fprintf(&b, "Uptime:  %s\n", formatDuration(now.Sub(st.StartedAt)))
	fmt.Fprintf(&b, "Tabs:    %d\n", st.Tabs)

	var rows []string
	for _, set := range st.Sets {
		if !set.Enabled {
			continue
		}
		rows = append(rows, renderSet(set, now))
	}
	if len(rows) == 0 {
		b.WriteString("\n" + dimStyle.Render("No block sets configured"))
		return b.String()
	}
	b.WriteString("\n" + boxStyle.Render(strings.Join(rows, "\n")))
	return b.String()
}

func renderSet(set engine.SetStatus, now time.Time) string {
	name := set.Name
	if name == "" {
		name = fmt.Sprintf("Block Set %d", set.Number)
	}

	state := openStyle.Render("open")
	if set.Blocking {
		state = blockingStyle.Render("blocking")
	}
	line := fmt.Sprintf("%d  %-20s %s", set.Number, name, state)
	if set.Lockdown {
		line += " " + blockingStyle.Render("(lockdown)")
	}
	if set.SecsLeft != nil {
		line += dimStyle.Render(fmt.Sprintf("  %s left", formatDuration(time.Duration(*set.SecsLeft*float64(time.Second)))))
	}
	if set.BudgetSeconds > 0 {
		line += dimStyle.Render(fmt.Sprintf("  budget %s/%s",
			formatDuration(time.Duration(set.BudgetUsed*float64(time.Second))),
			formatDuration(time.Duration(set.BudgetSeconds*float64(time.Second)))))
	}
	if set.Blocking && set.UnblockAt != nil {
		line += dimStyle.Render(fmt.Sprintf("  until %s", set.UnblockAt.Local().Format("Mon 15:04")))
	}
	return line
}
