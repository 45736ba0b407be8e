package arg

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/TabWarden/internal/engine"
)

var blockInfoCmd = &cobra.Command{
	Use:   "blockinfo <block-page-url>",
	Short: "Describe a block page URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := dial()
		defer client.Close()

		raw, err := client.BlockInfo(args[0])
		if err != nil {
			log.Fatal("Failed to get block info:", err)
		}
		var info engine.BlockInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			log.Fatal("Failed to decode block info:", err)
		}
		fmt.Printf("Set:      %s (%s)\n", info.BlockedSetName, info.BlockedSet)
		fmt.Printf("URL:      %s\n", info.BlockedURL)
		if info.UnblockTime != "" {
			fmt.Printf("Unblocks: %s\n", info.UnblockTime)
		}
	},
}

func init() {
	rootCmd.AddCommand(blockInfoCmd)
}
