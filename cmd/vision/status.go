package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/frc-vision/internal/httpc"
	"github.com/teslashibe/frc-vision/pkg/web"
)

var (
	statusJSON    bool
	statusTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [host[:port]]",
	Short: "Show the status of a running vision service",
	Long: `Queries /api/status on a running vision service and prints it.

Examples:
  vision status                     # localhost:1181
  vision status wpilibpi.local
  vision status 10.46.62.11:1181 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := ""
		if len(args) > 0 {
			addr = args[0]
		}
		url := httpc.BaseURL(addr, "1181") + "/api/status"

		var st web.Status
		if err := httpc.GetJSON(cmd.Context(), httpc.NewClient(statusTimeout), url, &st); err != nil {
			return err
		}
		if statusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}
		printStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw status document")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", httpc.DefaultTimeout, "request timeout")
	rootCmd.AddCommand(statusCmd)
}

func printStatus(w io.Writer, st web.Status) {
	fmt.Fprintf(w, "team         %d (%s, table connected: %t)\n", st.Team, st.NTMode, st.TableConnected)
	fmt.Fprintf(w, "vision       on=%t cycles=%d skipped=%d capture errors=%d\n",
		st.VisionOn, st.Cycles, st.Skipped, st.CaptureErrors)
	if st.TargetFound {
		b := st.BoundingRect
		fmt.Fprintf(w, "target       found, %d blobs, offset %.1f px, distance %.2f, box x=%.0f y=%.0f w=%.0f h=%.0f\n",
			st.TargetCount, st.TargetOffset, st.Distance, b[0], b[1], b[2], b[3])
	} else {
		fmt.Fprintln(w, "target       not found")
	}
	for _, s := range st.Streams {
		fmt.Fprintf(w, "stream       %-16s frames=%d clients=%d\n", s.Name, s.Frames, s.Clients)
	}
	fmt.Fprintf(w, "uptime       %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())
}
