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
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/gotraj/InputParameters"
	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/integrate"
	"github.com/notargets/gotraj/logging"
	"github.com/notargets/gotraj/metrics"
	"github.com/notargets/gotraj/output"
	"github.com/notargets/gotraj/parcels"
	"github.com/notargets/gotraj/traj"
)

var ErrUsage = errors.New("usage error")

// TrajCmd represents the traj command
var TrajCmd = &cobra.Command{
	Use:   "traj",
	Short: "Integrate parcel trajectories through an archive",
	Long: `
Seeds a lattice of parcels and integrates them through the archive, one window
of --workers archive times at a time, writing every position to <base>.nc.

gotraj traj --histpath ./3D --base traj --time 3600 --ntimes 40 \
	--x0 1000 --y0 1000 --z0 200 --nx 10 --ny 10 --nz 1 --dx 100 --dy 100 --dz 0`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			panic(err)
		}
		ip, warnings, err := processTrajInput(viper.GetViper())
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			fmt.Println(cmd.UsageString())
			os.Exit(1)
		}
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if ip.Debug {
			ip.Print()
		}
		if err = RunTraj(ip, viper.GetString("profile"), viper.GetString("metricsAddr")); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(TrajCmd)
	TrajCmd.Flags().String("histpath", "", "archive directory holding one netCDF file per time")
	TrajCmd.Flags().String("base", "", "output base name, trajectories are written to <base>.nc")
	TrajCmd.Flags().Float64("time", 0, "start time, resolved to the nearest archive time")
	TrajCmd.Flags().Int("ntimes", 0, "number of archive steps to integrate")
	TrajCmd.Flags().Float64("x0", 0, "seed lattice origin x")
	TrajCmd.Flags().Float64("y0", 0, "seed lattice origin y")
	TrajCmd.Flags().Float64("z0", 0, "seed lattice origin z")
	TrajCmd.Flags().Int("nx", 1, "seed parcels along x")
	TrajCmd.Flags().Int("ny", 1, "seed parcels along y")
	TrajCmd.Flags().Int("nz", 1, "seed parcels along z")
	TrajCmd.Flags().Float64("dx", 0, "seed spacing along x")
	TrajCmd.Flags().Float64("dy", 0, "seed spacing along y")
	TrajCmd.Flags().Float64("dz", 0, "seed spacing along z")
	TrajCmd.Flags().Int("direction", 1, "integration direction, 1 forward or -1 backward")
	TrajCmd.Flags().Bool("debug", false, "verbose logging")
	TrajCmd.Flags().IntP("workers", "w", 4, "number of workers, one archive time each per window")
	TrajCmd.Flags().Int("margin", 0, "index cells added around the parcels, 5 when zero")
	TrajCmd.Flags().Bool("includeInvalid", false, "let parcels outside the domain widen the subset")
	TrajCmd.Flags().StringP("paramFile", "I", "", "YAML parameter file, flags override its entries")
	TrajCmd.Flags().Int64("memLimit", 0, "allocation limit per worker in bytes, 0 for none")
	TrajCmd.Flags().String("profile", "", "write a CPU profile into this directory")
	TrajCmd.Flags().String("metricsAddr", "", "serve prometheus metrics on this address")
}

// processTrajInput merges the parameter file with flags and config values, and
// reports every missing required option at once.
func processTrajInput(v *viper.Viper) (ip *InputParameters.TrajParameters, warnings []string, err error) {
	var (
		problems []string
	)
	ip = &InputParameters.TrajParameters{Direction: 1}
	if pf := v.GetString("paramFile"); pf != "" {
		var data []byte
		if data, err = os.ReadFile(pf); err != nil {
			err = fmt.Errorf("%w: %v", ErrUsage, err)
			return
		}
		if err = ip.Parse(data); err != nil {
			err = fmt.Errorf("%w: parameter file %s: %v", ErrUsage, pf, err)
			return
		}
	}
	if v.IsSet("histpath") {
		ip.HistPath = v.GetString("histpath")
	}
	if v.IsSet("base") {
		ip.Base = v.GetString("base")
	}
	if v.IsSet("time") {
		t := v.GetFloat64("time")
		ip.Time = &t
	}
	if v.IsSet("ntimes") {
		ip.NTimes = v.GetInt("ntimes")
	}
	for key, dst := range map[string]**float64{
		"x0": &ip.X0, "y0": &ip.Y0, "z0": &ip.Z0, "dx": &ip.DX, "dy": &ip.DY, "dz": &ip.DZ,
	} {
		if v.IsSet(key) {
			val := v.GetFloat64(key)
			*dst = &val
		}
	}
	for key, dst := range map[string]**int{"nx": &ip.NX, "ny": &ip.NY, "nz": &ip.NZ} {
		if v.IsSet(key) {
			val := v.GetInt(key)
			*dst = &val
		}
	}
	for key, dst := range map[string]*int{"direction": &ip.Direction, "workers": &ip.Workers, "margin": &ip.Margin} {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	if ip.Workers == 0 {
		// falls back to the flag default when bound
		ip.Workers = v.GetInt("workers")
	}
	if v.IsSet("includeInvalid") {
		ip.IncludeInvalid = v.GetBool("includeInvalid")
	}
	if v.IsSet("memLimit") {
		ip.MemLimit = v.GetInt64("memLimit")
	}
	if v.IsSet("debug") {
		ip.Debug = v.GetBool("debug")
	}
	if ip.HistPath == "" {
		problems = append(problems, "must supply an archive directory (--histpath)")
	}
	if ip.Base == "" {
		problems = append(problems, "must supply an output base name (--base)")
	}
	if ip.Time == nil {
		problems = append(problems, "must supply a start time (--time)")
	}
	if ip.NTimes < 1 {
		problems = append(problems, "must supply a positive number of steps (--ntimes)")
	}
	if ip.Direction != 1 && ip.Direction != -1 {
		problems = append(problems, fmt.Sprintf("direction must be 1 or -1, have %d", ip.Direction))
	}
	if ip.Workers < 1 {
		problems = append(problems, fmt.Sprintf("worker count must be positive, have %d", ip.Workers))
	}
	if len(problems) != 0 {
		err = fmt.Errorf("%w:\n\t%s", ErrUsage, strings.Join(problems, "\n\t"))
		return
	}
	for _, name := range ip.MissingSeeds() {
		warnings = append(warnings, fmt.Sprintf("seed option --%s not supplied, using the default", name))
	}
	return
}

func seedSpec(ip *InputParameters.TrajParameters) (sp parcels.SeedSpec) {
	sp = parcels.SeedSpec{NX: 1, NY: 1, NZ: 1}
	for _, o := range []struct {
		dst *float32
		src *float64
	}{
		{&sp.X0, ip.X0}, {&sp.Y0, ip.Y0}, {&sp.Z0, ip.Z0},
		{&sp.DX, ip.DX}, {&sp.DY, ip.DY}, {&sp.DZ, ip.DZ},
	} {
		if o.src != nil {
			*o.dst = float32(*o.src)
		}
	}
	for _, o := range []struct {
		dst *int
		src *int
	}{{&sp.NX, ip.NX}, {&sp.NY, ip.NY}, {&sp.NZ, ip.NZ}} {
		if o.src != nil {
			*o.dst = *o.src
		}
	}
	return
}

func trajConfig(ip *InputParameters.TrajParameters) *traj.Config {
	return &traj.Config{
		HistPath:       ip.HistPath,
		Base:           ip.Base,
		Time:           *ip.Time,
		NTimes:         ip.NTimes,
		Seed:           seedSpec(ip),
		Direction:      ip.Direction,
		Workers:        ip.Workers,
		Margin:         ip.Margin,
		IncludeInvalid: ip.IncludeInvalid,
		MemLimit:       ip.MemLimit,
	}
}

// RunTraj runs a validated parameter set with the netCDF archive reader, the
// reference integrator and the netCDF trajectory writer.
func RunTraj(ip *InputParameters.TrajParameters, profileDir, metricsAddr string) (err error) {
	var (
		logger = logging.NewLogger(ip.Debug)
		ctx    = logging.WithLogger(context.Background(), logger)
		cfg    = trajConfig(ip)
	)
	defer func() { _ = logger.Sync() }()
	if profileDir != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(profileDir), profile.NoShutdownHook).Stop()
	}
	if metricsAddr != "" {
		serveMetrics(logger, metricsAddr)
	}
	return traj.Run(ctx, cfg, traj.Deps{
		Reader:     archive.NewNetCDF(logger),
		Integrator: &integrate.Euler{},
		Writer:     output.NewNetCDF(logger),
	})
}

func serveMetrics(logger *zap.SugaredLogger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warnw("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Infow("Serving metrics", "addr", addr)
}
