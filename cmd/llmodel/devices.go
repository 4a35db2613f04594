package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/gpu"
	"github.com/samcharles93/llmodel/internal/probe"
)

func devicesCmd() *cli.Command {
	var (
		memory uint64
		asJSON bool
	)
	return &cli.Command{
		Name:  "devices",
		Usage: "List GPU devices that can hold a model",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "memory",
				Usage:       "required device memory in bytes (0 = list all)",
				Destination: &memory,
			},
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "estimate --memory from this model file",
				Destination: &modelPath,
			},
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if modelPath != "" && !cmd.IsSet("memory") {
				memory = probe.RequiredMem(modelPath)
			}
			mgr := gpu.Default()
			devices := mgr.AvailableDevices(memory)
			if asJSON {
				return writeJSON(os.Stdout, map[string]any{
					"backend":         mgr.BackendName(),
					"memory_required": memory,
					"devices":         devices,
				})
			}
			if len(devices) == 0 {
				fmt.Printf("no devices available (backend %s)\n", mgr.BackendName())
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "INDEX\tNAME\tVENDOR\tHEAP")
			for _, d := range devices {
				heap := "unknown"
				if d.HeapSize > 0 {
					heap = formatBytes(d.HeapSize)
				}
				_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.Index, d.Name, d.Vendor, heap)
			}
			return tw.Flush()
		},
	}
}
