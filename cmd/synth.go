/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/gotraj/archive"
)

// SynthCmd represents the synth command
var SynthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic archive with uniform winds",
	Long: `Writes one netCDF file per time into --out, with uniform winds and index
encoded scalar fields, suitable as input to the traj command.`,
	Run: func(cmd *cobra.Command, args []string) {
		s, dir, err := synthFromFlags(cmd)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		if err = os.MkdirAll(dir, 0755); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		files, err := s.WriteNetCDF(dir)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		fmt.Printf("wrote %d files to %s\n", len(files), dir)
	},
}

func init() {
	rootCmd.AddCommand(SynthCmd)
	d := archive.DefaultSynthetic()
	SynthCmd.Flags().StringP("out", "o", "", "directory to write the archive into")
	SynthCmd.Flags().Int("nx", d.NX, "cells along x")
	SynthCmd.Flags().Int("ny", d.NY, "cells along y")
	SynthCmd.Flags().Int("nz", d.NZ, "levels")
	SynthCmd.Flags().Float64("dx", d.DX, "x spacing")
	SynthCmd.Flags().Float64("dy", d.DY, "y spacing")
	SynthCmd.Flags().Float64("dz", d.DZ, "lowest level thickness")
	SynthCmd.Flags().Float64("stretch", 0, "vertical stretching ratio, uniform when <= 1")
	SynthCmd.Flags().Int("ntimes", len(d.Times), "number of archive times")
	SynthCmd.Flags().Float64("dt", d.Times[1]-d.Times[0], "archive time interval")
	SynthCmd.Flags().Float32("u", d.U, "uniform x wind")
	SynthCmd.Flags().Float32("v", d.V, "uniform y wind")
	SynthCmd.Flags().Float32("w", d.W, "uniform z wind")
}

func synthFromFlags(cmd *cobra.Command) (s archive.Synthetic, dir string, err error) {
	var (
		f      = cmd.Flags()
		nTimes int
		dt     float64
	)
	s = archive.DefaultSynthetic()
	if dir, err = f.GetString("out"); err != nil {
		return
	}
	if dir == "" {
		err = fmt.Errorf("%w: must supply an output directory (-o, --out)", ErrUsage)
		return
	}
	for name, dst := range map[string]*int{"nx": &s.NX, "ny": &s.NY, "nz": &s.NZ, "ntimes": &nTimes} {
		if *dst, err = f.GetInt(name); err != nil {
			return
		}
	}
	for name, dst := range map[string]*float64{"dx": &s.DX, "dy": &s.DY, "dz": &s.DZ, "stretch": &s.Stretch, "dt": &dt} {
		if *dst, err = f.GetFloat64(name); err != nil {
			return
		}
	}
	for name, dst := range map[string]*float32{"u": &s.U, "v": &s.V, "w": &s.W} {
		if *dst, err = f.GetFloat32(name); err != nil {
			return
		}
	}
	if s.NX < 2 || s.NY < 2 || s.NZ < 2 || nTimes < 2 || dt <= 0 {
		err = fmt.Errorf("%w: need at least 2 cells per axis and 2 times with a positive interval", ErrUsage)
		return
	}
	if s.NodeX > s.NX {
		s.NodeX = s.NX
	}
	if s.NodeY > s.NY {
		s.NodeY = s.NY
	}
	s.Times = floats.Span(make([]float64, nTimes), 0, dt*float64(nTimes-1))
	return
}
