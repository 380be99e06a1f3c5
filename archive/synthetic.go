package archive

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
)

/*
Synthetic describes a generated archive with analytic fields, used for
demonstrations and tests. Winds are uniform. The remaining fields encode their
own global indices so subsets can be verified exactly:

	khh, prespert   global x index
	kmh, thrhopert  global y index
	rhopert         global z index + 1000 * time index
*/
type Synthetic struct {
	NX, NY, NZ                         int
	DX, DY, DZ                         float64
	Stretch                            float64 // vertical spacing ratio between levels, uniform when <= 1
	SavedX0, SavedX1, SavedY0, SavedY1 int     // whole domain when all zero
	NodeX, NodeY                       int
	Times                              []float64
	U, V, W                            float32
}

func DefaultSynthetic() Synthetic {
	return Synthetic{
		NX: 64, NY: 64, NZ: 32,
		DX: 100, DY: 100, DZ: 50,
		NodeX: 4, NodeY: 4,
		Times: floats.Span(make([]float64, 25), 0, 24),
		U: 5, V: 2.5, W: 0.5,
	}
}

func (s Synthetic) saved() (x0, x1, y0, y1 int) {
	if s.SavedX0 == 0 && s.SavedX1 == 0 && s.SavedY0 == 0 && s.SavedY1 == 0 {
		return 0, s.NX - 1, 0, s.NY - 1
	}
	return s.SavedX0, s.SavedX1, s.SavedY0, s.SavedY1
}

// Structure builds the archive description. Path is left empty.
func (s Synthetic) Structure() (st *Structure) {
	var (
		xf = floats.Span(make([]float64, s.NX+1), 0, float64(s.NX)*s.DX)
		yf = floats.Span(make([]float64, s.NY+1), 0, float64(s.NY)*s.DY)
		zf = make([]float64, s.NZ+1)
	)
	if s.Stretch <= 1 {
		floats.Span(zf, 0, float64(s.NZ)*s.DZ)
	} else {
		dz := make([]float64, s.NZ)
		for k := range dz {
			dz[k] = s.DZ * math.Pow(s.Stretch, float64(k))
		}
		floats.CumSum(zf[1:], dz)
	}
	st = &Structure{
		NX: s.NX, NY: s.NY, NZ: s.NZ,
		NodeX: s.NodeX, NodeY: s.NodeY,
		Times: append([]float64{}, s.Times...),
		XFFull: to32(xf), YFFull: to32(yf), ZF: to32(zf),
		XHFull: midpoints(xf), YHFull: midpoints(yf), ZH: midpoints(zf),
	}
	st.SavedX0, st.SavedX1, st.SavedY0, st.SavedY1 = s.saved()
	for _, z := range st.ZH {
		var (
			th0  = 300 + 0.004*float64(z)
			pres = 100000 * math.Exp(-float64(z)/8000)
		)
		st.TH0 = append(st.TH0, float32(th0))
		st.QV0 = append(st.QV0, float32(0.014*math.Exp(-float64(z)/2500)))
		st.P0 = append(st.P0, float32(pres))
		st.RHO0 = append(st.RHO0, float32(pres/(287.04*th0)))
		st.U0 = append(st.U0, s.U)
		st.V0 = append(st.V0, s.V)
	}
	return
}

// Fields returns every archive field at a time index over the saved region.
func (s Synthetic) Fields(tIndex int) (fields map[string][]float32) {
	var (
		x0, x1, y0, y1 = s.saved()
		nxs, nys       = x1 - x0 + 1, y1 - y0 + 1
	)
	fields = make(map[string][]float32, len(Fields))
	for _, fld := range Fields {
		nzs := s.NZ
		if fld.Staggered() {
			nzs++
		}
		data := make([]float32, nxs*nys*nzs)
		for k := 0; k < nzs; k++ {
			for j := 0; j < nys; j++ {
				for i := 0; i < nxs; i++ {
					data[i+nxs*(j+nys*k)] = s.value(fld.Name, x0+i, y0+j, k, tIndex)
				}
			}
		}
		fields[fld.Name] = data
	}
	return
}

func (s Synthetic) value(name string, i, j, k, tIndex int) float32 {
	switch name {
	case "u":
		return s.U
	case "v":
		return s.V
	case "w":
		return s.W
	case "khh", "prespert":
		return float32(i)
	case "kmh", "thrhopert":
		return float32(j)
	case "rhopert":
		return float32(k + 1000*tIndex)
	}
	panic(fmt.Errorf("no synthetic values for field %q", name))
}

func (s Synthetic) InMemory() (m *InMemory) {
	m = &InMemory{St: s.Structure()}
	for n := range s.Times {
		m.Data = append(m.Data, s.Fields(n))
	}
	return
}

// WriteNetCDF writes one netCDF file per time into dir, creating it if needed.
func (s Synthetic) WriteNetCDF(dir string) (files []string, err error) {
	var (
		st = s.Structure()
	)
	st.Path = dir
	if err = st.Check(); err != nil {
		return
	}
	if err = os.MkdirAll(dir, 0755); err != nil {
		return
	}
	for n, t := range s.Times {
		file := filepath.Join(dir, fmt.Sprintf("synthetic_%06d.nc", n))
		if err = WriteNetCDF(file, st, t, s.Fields(n)); err != nil {
			return
		}
		files = append(files, file)
	}
	return
}

func to32(v []float64) (r []float32) {
	r = make([]float32, len(v))
	for i, x := range v {
		r[i] = float32(x)
	}
	return
}

func midpoints(faces []float64) (r []float32) {
	r = make([]float32, len(faces)-1)
	for i := range r {
		r[i] = float32(0.5 * (faces[i] + faces[i+1]))
	}
	return
}
