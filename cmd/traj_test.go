package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/output"
)

func required(v *viper.Viper) {
	v.Set("histpath", "/data/run")
	v.Set("base", "traj")
	v.Set("time", 3600.)
	v.Set("ntimes", 10)
	v.Set("workers", 4)
}

func TestProcessTrajInput(t *testing.T) {
	{ // every missing option is reported together
		_, _, err := processTrajInput(viper.New())
		require.ErrorIs(t, err, ErrUsage)
		for _, s := range []string{"--histpath", "--base", "--time", "--ntimes", "worker count"} {
			assert.Contains(t, err.Error(), s)
		}
	}
	{ // seeds default with a warning each
		v := viper.New()
		required(v)
		v.Set("x0", 500.)
		v.Set("nx", 3)
		ip, warnings, err := processTrajInput(v)
		require.NoError(t, err)
		assert.Len(t, warnings, 7)
		assert.Equal(t, 1, ip.Direction)
		sp := seedSpec(ip)
		assert.Equal(t, float32(500), sp.X0)
		assert.Equal(t, 3, sp.NX)
		assert.Equal(t, 1, sp.NY)
		cfg := trajConfig(ip)
		assert.Equal(t, 3600., cfg.Time)
		assert.Equal(t, "traj.nc", cfg.OutputPath())
	}
	{ // bad direction
		v := viper.New()
		required(v)
		v.Set("direction", 2)
		_, _, err := processTrajInput(v)
		require.ErrorIs(t, err, ErrUsage)
		assert.Contains(t, err.Error(), "direction")
	}
	{ // flags override the parameter file
		file := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(file, []byte(`
histpath: /data/run
base: fromfile
time: 120
ntimes: 8
workers: 2
direction: -1
x0: 1
y0: 2
z0: 3
nx: 1
ny: 1
nz: 1
dx: 0
dy: 0
dz: 0
`), 0644))
		v := viper.New()
		v.Set("paramFile", file)
		v.Set("base", "fromflag")
		ip, warnings, err := processTrajInput(v)
		require.NoError(t, err)
		assert.Empty(t, warnings)
		assert.Equal(t, "fromflag", ip.Base)
		assert.Equal(t, -1, ip.Direction)
		assert.Equal(t, 2, ip.Workers)
		assert.Equal(t, 120., *ip.Time)
	}
	{ // unreadable parameter file
		v := viper.New()
		v.Set("paramFile", filepath.Join(t.TempDir(), "absent.yaml"))
		_, _, err := processTrajInput(v)
		require.ErrorIs(t, err, ErrUsage)
	}
}

func TestRunTraj(t *testing.T) {
	var (
		dir = t.TempDir()
		s   = archive.Synthetic{
			NX: 24, NY: 24, NZ: 10,
			DX: 100, DY: 100, DZ: 50,
			NodeX: 4, NodeY: 4,
			Times: []float64{0, 10, 20, 30, 40, 50},
			U: 5,
		}
	)
	_, err := s.WriteNetCDF(dir)
	require.NoError(t, err)
	v := viper.New()
	v.Set("histpath", dir)
	v.Set("base", filepath.Join(t.TempDir(), "run"))
	v.Set("time", 0.)
	v.Set("ntimes", 4)
	v.Set("workers", 2)
	v.Set("x0", 1000.)
	v.Set("y0", 1000.)
	v.Set("z0", 200.)
	ip, _, err := processTrajInput(v)
	require.NoError(t, err)
	require.NoError(t, RunTraj(ip, "", ""))

	tr, err := output.Read(ip.Base + ".nc")
	require.NoError(t, err)
	require.Equal(t, 5, tr.Records)
	require.Equal(t, 1, tr.NParcels)
	for r := 0; r < tr.Records; r++ {
		assert.InDelta(t, 1000+50*float64(r), tr.Data["xpos"][r][0], 1e-3)
		assert.InDelta(t, 1000, tr.Data["ypos"][r][0], 1e-3)
	}
}

func TestSynthFromFlags(t *testing.T) {
	f := SynthCmd.Flags()
	_, _, err := synthFromFlags(SynthCmd)
	require.ErrorIs(t, err, ErrUsage)

	dir := t.TempDir()
	require.NoError(t, f.Set("out", dir))
	require.NoError(t, f.Set("ntimes", "3"))
	require.NoError(t, f.Set("dt", "30"))
	require.NoError(t, f.Set("nx", "3"))
	defer func() {
		_ = f.Set("out", "")
		_ = f.Set("ntimes", "25")
		_ = f.Set("dt", "1")
		_ = f.Set("nx", "64")
	}()
	s, out, err := synthFromFlags(SynthCmd)
	require.NoError(t, err)
	assert.Equal(t, dir, out)
	assert.Equal(t, []float64{0, 30, 60}, s.Times)
	assert.Equal(t, 3, s.NX)
	assert.Equal(t, 3, s.NodeX)
	assert.Equal(t, float32(5), s.U)
}
