package arg

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/TabWarden/internal/state"
)

var tabsCmd = &cobra.Command{
	Use:   "tabs",
	Short: "List tabs tracked by the daemon",
	Run: func(cmd *cobra.Command, args []string) {
		client := dial()
		defer client.Close()

		raw, err := client.ListTabs()
		if err != nil {
			log.Fatal("Failed to list tabs:", err)
		}
		var tabs []state.TabView
		if err := json.Unmarshal([]byte(raw), &tabs); err != nil {
			log.Fatal("Failed to decode tabs:", err)
		}
		if len(tabs) == 0 {
			fmt.Println(dimStyle.Render("No tabs"))
			return
		}
		for _, tab := range tabs {
			fmt.Println(renderTab(tab))
		}
	},
}

func init() {
	rootCmd.AddCommand(tabsCmd)
}

func renderTab(tab state.TabView) string {
	marker := " "
	if tab.Focused {
		marker = openStyle.Render("*")
	}
	line := fmt.Sprintf("%s %6d  %s", marker, tab.ID, tab.URL)
	if !tab.Blockable {
		return line + dimStyle.Render("  (ignored)")
	}
	if tab.SecsLeft != nil {
		line += dimStyle.Render(fmt.Sprintf("  %s left in set %d",
			formatDuration(time.Duration(*tab.SecsLeft*float64(time.Second))), tab.SecsLeftSet))
	}
	return line
}
