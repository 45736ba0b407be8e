package arg

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var lockdownCmd = &cobra.Command{
	Use:   "lockdown <set> <duration>",
	Short: "Block a set for a fixed duration",
	Long: `Start a lockdown on a block set. The duration uses Go syntax, for example 90m or 2h30m.
A lockdown can only be extended, never shortened.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		set, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatal("Invalid block set number:", err)
		}
		if _, err := time.ParseDuration(args[1]); err != nil {
			log.Fatal("Invalid duration:", err)
		}

		client := dial()
		defer client.Close()

		until, err := client.Lockdown(set, args[1])
		if err != nil {
			log.Fatal("Failed to start lockdown:", err)
		}
		fmt.Println(blockingStyle.Render(fmt.Sprintf("Block set %d locked down until %s",
			set, time.Unix(until, 0).Format("Mon 2 Jan 15:04:05"))))
	},
}

func init() {
	rootCmd.AddCommand(lockdownCmd)
}
