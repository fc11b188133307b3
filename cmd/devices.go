package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/smazurov/mediadevice/internal/devices"
)

// deviceRow is one device in the listing.
type deviceRow struct {
	ID      string   `json:"device_id"`
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Type    string   `json:"type"`
	Flags   []string `json:"flags"`
	Running bool     `json:"running"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var catalogFile string
	var kind string
	var asJSON bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List cameras and microphones",
		Long:  `Runs discovery against the device catalog and lists every device, cameras first.`,
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			initCommandLogging(false)

			var criteria []devices.Criterion
			if kind != "" {
				k, err := devices.ParseKind(kind)
				if err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				if k == devices.KindCamera {
					criteria = append(criteria, devices.Cameras)
				} else {
					criteria = append(criteria, devices.Microphones)
				}
			}

			stack, err := newLocalStack(context.Background(), catalogFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer stack.Close()

			rows := listDevices(stack.registry, criteria...)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rows); err != nil {
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
					os.Exit(1)
				}
				return
			}

			if noColor {
				color.NoColor = true
			}
			printDevices(os.Stdout, rows)
		},
	}

	cmd.Flags().StringVar(&catalogFile, "catalog", "", "Synthetic device catalog (default: built-in catalog)")
	cmd.Flags().StringVar(&kind, "kind", "", "Only list devices of this kind (camera, microphone)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func listDevices(reg *devices.Registry, criteria ...devices.Criterion) []deviceRow {
	q := devices.NewQuery(reg, criteria...)
	defer q.Close()

	rows := make([]deviceRow, 0, q.Count())
	for i := 0; i < q.Count(); i++ {
		_, info, ok := q.At(i)
		if !ok {
			continue
		}
		key, _ := reg.KeyOf(info.ID)
		rows = append(rows, deviceRow{
			ID:      info.ID,
			Name:    info.Name,
			Kind:    info.Kind.String(),
			Type:    info.Type().String(),
			Flags:   info.Flags.Names(),
			Key:     key,
			Running: info.Running,
		})
	}
	return rows
}

func printDevices(w io.Writer, rows []deviceRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No devices found")
		return
	}

	header := color.New(color.Bold)
	camera := color.New(color.FgCyan)
	microphone := color.New(color.FgMagenta)
	running := color.New(color.FgGreen)
	idle := color.New(color.FgWhite)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint("ID\tNAME\tKIND\tTYPE\tSTATE\tFLAGS"))
	for _, r := range rows {
		kind := camera.Sprint(r.Kind)
		if r.Kind == devices.KindMicrophone.String() {
			kind = microphone.Sprint(r.Kind)
		}
		state := idle.Sprint("idle")
		if r.Running {
			state = running.Sprint("running")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, kind, r.Type, state, strings.Join(r.Flags, ","))
	}
	_ = tw.Flush()
}
