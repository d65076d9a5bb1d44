package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/joeycumines/go-vc4cl/mailbox"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// boardInfo is the report of the info command.
type boardInfo struct {
	FirmwareRevision uint32              `yaml:"firmware_revision"`
	BoardModel       uint32              `yaml:"board_model"`
	BoardRevision    uint32              `yaml:"board_revision"`
	BoardSerial      uint64              `yaml:"board_serial"`
	ARMMemory        mailbox.MemoryRange `yaml:"arm_memory"`
	VCMemory         mailbox.MemoryRange `yaml:"vc_memory"`
	GPUMemory        uint32              `yaml:"gpu_memory"`
	V3DClockRate     uint32              `yaml:"v3d_clock_rate"`
	V3DMaxClockRate  uint32              `yaml:"v3d_max_clock_rate"`
	Temperature      uint32              `yaml:"temperature"`
	MaxTemperature   uint32              `yaml:"max_temperature"`
}

func queryBoardInfo(mb *mailbox.Mailbox) (*boardInfo, error) {
	var (
		info boardInfo
		err  error
		errs []error
	)
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}
	info.FirmwareRevision, err = mb.FirmwareRevision()
	collect(err)
	info.BoardModel, err = mb.BoardModel()
	collect(err)
	info.BoardRevision, err = mb.BoardRevision()
	collect(err)
	info.BoardSerial, err = mb.BoardSerial()
	collect(err)
	info.ARMMemory, err = mb.ARMMemory()
	collect(err)
	info.VCMemory, err = mb.VCMemory()
	collect(err)
	info.GPUMemory, err = mb.TotalGPUMemory()
	collect(err)
	info.V3DClockRate, err = mb.ClockRate(mailbox.ClockV3D)
	collect(err)
	info.V3DMaxClockRate, err = mb.MaxClockRate(mailbox.ClockV3D)
	collect(err)
	info.Temperature, err = mb.Temperature()
	collect(err)
	info.MaxTemperature, err = mb.MaxTemperature()
	collect(err)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &info, nil
}

func writeBoardInfoText(w io.Writer, info *boardInfo) error {
	_, err := fmt.Fprintf(w, ""+
		"Firmware revision:  0x%08x\n"+
		"Board model:        0x%08x\n"+
		"Board revision:     0x%08x\n"+
		"Board serial:       0x%016x\n"+
		"ARM memory:         0x%08x +%d MiB\n"+
		"VideoCore memory:   0x%08x +%d MiB\n"+
		"GPU memory:         %d MiB\n"+
		"V3D clock:          %d MHz (max %d MHz)\n"+
		"Temperature:        %.1f C (max %.1f C)\n",
		info.FirmwareRevision,
		info.BoardModel,
		info.BoardRevision,
		info.BoardSerial,
		info.ARMMemory.Base, info.ARMMemory.Size>>20,
		info.VCMemory.Base, info.VCMemory.Size>>20,
		info.GPUMemory>>20,
		info.V3DClockRate/1_000_000, info.V3DMaxClockRate/1_000_000,
		float64(info.Temperature)/1000, float64(info.MaxTemperature)/1000,
	)
	return err
}

// newInfoCmd creates the "vc4mbox info" subcommand.
func newInfoCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show board and firmware information",
		Long:  "Queries the firmware for the board model, memory split, V3D clock rate,\nand SoC temperature. Values the firmware refuses to report are zero.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "yaml" {
				return fmt.Errorf("invalid format %q, must be text or yaml", format)
			}

			ctx := a.newContext()
			defer func() { _ = ctx.Release() }()

			mb, err := ctx.Mailbox()
			if err != nil {
				return err
			}
			info, err := queryBoardInfo(mb)
			if err != nil {
				return err
			}

			if format == "yaml" {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(info); err != nil {
					return err
				}
				return enc.Close()
			}
			return writeBoardInfoText(cmd.OutOrStdout(), info)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "output format, text or yaml")
	return cmd
}
