package arg

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/SoarinFerret/TabWarden/internal/ipc"
)

var busName string

var rootCmd = &cobra.Command{
	Use:   "twctl",
	Short: "twctl is the command line tool for TabWarden",
	Long: `twctl talks to the TabWarden daemon over D-Bus.
You can use it to inspect block sets and tabs, reload options and start lockdowns.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&busName, "bus", "system", `bus the daemon listens on ("system" or "session")`)
}

// dial connects to the daemon or exits.
func dial() *ipc.Client {
	client, err := ipc.Dial(busName)
	if err != nil {
		log.Fatal("Failed to connect to bus:", err)
	}
	return client
}
