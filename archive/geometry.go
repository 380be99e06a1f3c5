package archive

import (
	"fmt"

	"github.com/notargets/gotraj/grid"
)

// PopulateGeometry fills the coordinates, spacing, inverse stretching terms
// and base state of a grid from the archive structure. The lower vertical
// ghost level is a reflection about the surface.
func PopulateGeometry(st *Structure, g *grid.Grid) (err error) {
	var (
		lim = st.Limits()
	)
	if g.X0 < lim.X0 || g.X1 > lim.X1 || g.Y0 < lim.Y0 || g.Y1 > lim.Y1 || g.Z0 < 0 || g.Z1 > lim.Z1 {
		err = fmt.Errorf("grid %s exceeds archive limits %s", g.Bounds, lim)
		return
	}
	for i := 0; i <= g.NX; i++ {
		g.XF[i] = st.XFFull[g.X0+i]
	}
	for j := 0; j <= g.NY; j++ {
		g.YF[j] = st.YFFull[g.Y0+j]
	}
	for i := 0; i < g.NX; i++ {
		g.XH[i] = st.XHFull[g.X0+i]
	}
	for j := 0; j < g.NY; j++ {
		g.YH[j] = st.YHFull[g.Y0+j]
	}
	for k := range g.ZF {
		g.ZF[k] = ghostZF(st, g.Z0+k)
	}
	for k := range g.ZH {
		g.ZH[k] = ghostZH(st, g.Z0+k)
	}
	g.DX = g.XF[1] - g.XF[0]
	g.DY = g.YF[1] - g.YF[0]
	g.DZ = g.ZF[2] - g.ZF[1]
	for i := 0; i < g.NX; i++ {
		g.UH[i] = g.DX / (g.XF[i+1] - g.XF[i])
	}
	for j := 0; j < g.NY; j++ {
		g.VH[j] = g.DY / (g.YF[j+1] - g.YF[j])
	}
	for k := 0; k < g.NZ; k++ {
		g.MH[k] = g.DZ / (g.ZF[k+2] - g.ZF[k+1])
		g.QV0[k] = st.QV0[g.Z0+k]
		g.TH0[k] = st.TH0[g.Z0+k]
		g.RHO0[k] = st.RHO0[g.Z0+k]
		g.P0[k] = st.P0[g.Z0+k]
		g.U0[k] = st.U0[g.Z0+k]
		g.V0[k] = st.V0[g.Z0+k]
	}
	g.Valid = true
	return
}

// ghostZF indexes the archive faces shifted up by one level, with the
// reflective ghost face at index 0.
func ghostZF(st *Structure, s int) float32 {
	if s == 0 {
		return -st.ZF[1]
	}
	return st.ZF[s-1]
}

func ghostZH(st *Structure, s int) float32 {
	if s == 0 {
		return -st.ZH[0]
	}
	return st.ZH[s-1]
}
