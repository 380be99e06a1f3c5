package InputParameters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	data := []byte(`
histpath: /data/run1/3D
base: out/traj
time: 3600
ntimes: 40
x0: 1500
y0: 2000.5
nx: 10
ny: 10
nz: 1
direction: -1
memLimit: 1073741824
`)
	ip := &TrajParameters{}
	require.NoError(t, ip.Parse(data))
	assert.Equal(t, "/data/run1/3D", ip.HistPath)
	assert.Equal(t, "out/traj", ip.Base)
	require.NotNil(t, ip.Time)
	assert.Equal(t, 3600., *ip.Time)
	assert.Equal(t, 40, ip.NTimes)
	assert.Equal(t, 2000.5, *ip.Y0)
	assert.Equal(t, 10, *ip.NX)
	assert.Equal(t, -1, ip.Direction)
	assert.Equal(t, int64(1<<30), ip.MemLimit)
	assert.Equal(t, []string{"z0", "dx", "dy", "dz"}, ip.MissingSeeds())
	ip.Print()

	assert.Error(t, (&TrajParameters{}).Parse([]byte("ntimes: [1, 2")))
	assert.Nil(t, (&TrajParameters{}).Time)
}
