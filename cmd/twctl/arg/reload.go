package arg

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload options from storage",
	Run: func(cmd *cobra.Command, args []string) {
		client := dial()
		defer client.Close()

		if err := client.ReloadOptions(); err != nil {
			log.Fatal("Failed to reload options:", err)
		}
		fmt.Println("Options reloaded")
	},
}

func init() {
	rootCmd.AddCommand(reloadCmd)
}
