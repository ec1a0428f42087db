package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Shimizu-Technology/reelforge-api/internal/pipeline"
)

func newPricingCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pricing",
		Short: "Print the effective credit prices",
		Long:  "Print model and add-on prices after environment and PIPELINE_CONFIG overrides are applied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.cfg.PipelineConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Model", "Label", "Credits", "Durations (s)", "Resolutions", "Image"},
				modelRows(pc.Pricing),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintln(out, renderTable(
				[]string{"Add-on", "Credits"},
				addonRows(pc.Pricing),
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func modelRows(p pipeline.Pricing) [][]string {
	var rows [][]string
	for _, name := range p.ModelNames() {
		m, _ := p.Model(name)
		durations := make([]string, len(m.Durations))
		for i, d := range m.Durations {
			durations[i] = strconv.Itoa(d)
		}
		label := string(name)
		if name == p.DefaultStoryModel {
			label += " *"
		}
		image := ""
		if m.RequiresImage {
			image = "required"
		}
		rows = append(rows, []string{
			label,
			m.Label,
			strconv.Itoa(m.BaseCost),
			strings.Join(durations, ", "),
			strings.Join(m.Resolutions, ", "),
			image,
		})
	}
	return rows
}

func addonRows(p pipeline.Pricing) [][]string {
	return [][]string{
		{"Audio track", "+" + strconv.Itoa(p.AudioSurcharge)},
		{"Pro quality", "x" + strconv.Itoa(p.ProMultiplier)},
		{"Watermark removal", strconv.Itoa(p.WatermarkFee)},
		{"Captions (per language)", strconv.Itoa(p.CaptionRate)},
		{"Scheduling (setup)", strconv.Itoa(p.ScheduleSetupFee)},
		{"Scheduling (per platform)", strconv.Itoa(p.SchedulePlatformFee)},
	}
}
