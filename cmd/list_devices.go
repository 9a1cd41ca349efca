package cmd

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"

	"github.com/achilleasa/wavefront/tracer/device"
)

// List the devices exposed by every registered backend.
func ListDevices(ctx *cli.Context) error {
	if _, err := loadConfig(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Backend", "Device", "Type", "Compute units", "Tier"})
	for _, backend := range device.Backends() {
		devices, err := device.List(backend)
		if err != nil {
			logger.Warningf("could not list %s devices: %v", backend, err)
			continue
		}
		for _, info := range devices {
			table.Append([]string{
				backend,
				info.Name,
				info.Type.String(),
				fmt.Sprint(info.ComputeUnits),
				info.Tier,
			})
		}
	}

	table.Render()
	logger.Noticef("available devices\n%s", buf.String())
	return nil
}
