package arg

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var unblockCmd = &cobra.Command{
	Use:   "unblock <set>",
	Short: "Show when a block set stops blocking",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		set, err := strconv.Atoi(args[0])
		if err != nil {
			log.Fatal("Invalid block set number:", err)
		}

		client := dial()
		defer client.Close()

		at, ok, err := client.UnblockTime(set)
		if err != nil {
			log.Fatal("Failed to get unblock time:", err)
		}
		if !ok {
			fmt.Println(openStyle.Render(fmt.Sprintf("Block set %d is not blocking", set)))
			return
		}
		when := time.Unix(at, 0)
		fmt.Printf("Block set %d unblocks at %s (in %s)\n", set,
			when.Format("Mon 2 Jan 15:04:05"), formatDuration(time.Until(when)))
	},
}

func init() {
	rootCmd.AddCommand(unblockCmd)
}
