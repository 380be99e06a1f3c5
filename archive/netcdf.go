package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ctessum/cdf"
	"go.uber.org/zap"

	"github.com/notargets/gotraj/grid"
)

// netCDF archive layout, one file per time.
const (
	dimNX  = "nx"
	dimNY  = "ny"
	dimNXF = "nxf"
	dimNYF = "nyf"
	dimZH  = "zh"
	dimZF  = "zf"
	dimXS  = "xs"
	dimYS  = "ys"
)

var (
	coordVars = []string{"xhfull", "yhfull", "xffull", "yffull", "zh", "zf"}
	baseVars  = []string{"qv0", "th0", "rh0", "pres0", "u0", "v0"}
)

// NetCDF reads an archive stored as a directory of netCDF files.
type NetCDF struct {
	log *zap.SugaredLogger
	// NoCache disables the structure cache file.
	NoCache bool
}

func NewNetCDF(log *zap.SugaredLogger) *NetCDF {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &NetCDF{log: log}
}

func (nc *NetCDF) QueryStructure(path string) (st *Structure, err error) {
	var (
		files []string
	)
	if files, err = filepath.Glob(filepath.Join(path, "*.nc")); err != nil {
		return
	}
	if len(files) == 0 {
		err = fmt.Errorf("%w: no netCDF files in %s", ErrTimeResolution, path)
		return
	}
	for i := range files {
		files[i] = filepath.Base(files[i])
	}
	sort.Strings(files)
	if !nc.NoCache {
		if st = loadCache(path, files); st != nil {
			nc.log.Debugw("Using cached archive structure", "path", path, "times", len(st.Times))
			return
		}
	}
	if st, err = scanArchive(path, files); err != nil {
		return
	}
	if err = st.Check(); err != nil {
		st = nil
		return
	}
	nc.log.Infow("Scanned archive", "path", path, "files", len(files),
		"grid", fmt.Sprintf("%d x %d x %d", st.NX, st.NY, st.NZ), "saved", st.Limits().String())
	if !nc.NoCache {
		if cerr := saveCache(st); cerr != nil {
			nc.log.Warnw("Unable to write archive structure cache", "path", path, "error", cerr)
		}
	}
	return
}

func (nc *NetCDF) PopulateGeometry(st *Structure, g *grid.Grid) error {
	return PopulateGeometry(st, g)
}

func (nc *NetCDF) ReadField(st *Structure, g *grid.Grid, name string, staggered bool, t float64,
	buf []float32) (err error) {
	var (
		idx  int
		fd   *os.File
		f    *cdf.File
		l    = grid.Centered
		want = st.NZ
	)
	if staggered {
		l, want = grid.Staggered, st.NZ+1
	}
	if idx, err = st.TimeIndex(t); err != nil {
		return
	}
	if fd, err = os.Open(filepath.Join(st.Path, st.Files[idx])); err != nil {
		return
	}
	defer fd.Close()
	if f, err = cdf.Open(fd); err != nil {
		err = fmt.Errorf("%s: %v", st.Files[idx], err)
		return
	}
	dims := f.Header.Lengths(name)
	nxs, nys, _ := st.SavedExtents(l)
	if len(dims) != 3 || dims[0] != want || dims[1] != nys || dims[2] != nxs {
		err = fmt.Errorf("%s: variable %s has dimensions %v, want [%d %d %d]",
			st.Files[idx], name, dims, want, nys, nxs)
		return
	}
	err = extract(st, g, l, buf, func(lz, ly, lx0, lx1 int, dst []float32) (err error) {
		r := f.Reader(name, []int{lz, ly, lx0}, []int{lz, ly, lx1 + 1})
		if _, err = r.Read(dst); err != nil {
			err = fmt.Errorf("%s: reading %s row (%d,%d): %v", st.Files[idx], name, lz, ly, err)
		}
		return
	})
	return
}

func scanArchive(path string, files []string) (st *Structure, err error) {
	type entry struct {
		file string
		time float64
	}
	var (
		entries = make([]entry, 0, len(files))
	)
	for n, name := range files {
		var (
			fd *os.File
			f  *cdf.File
			tm float64
		)
		if fd, err = os.Open(filepath.Join(path, name)); err != nil {
			return
		}
		if f, err = cdf.Open(fd); err != nil {
			fd.Close()
			err = fmt.Errorf("%s: %v", name, err)
			return
		}
		if tm, err = timeAttribute(f, name); err != nil {
			fd.Close()
			return
		}
		entries = append(entries, entry{name, tm})
		// Grid metadata is identical across files, take it from the first.
		if n == 0 {
			st, err = readMetadata(f, name)
			st.Path = path
		}
		fd.Close()
		if err != nil {
			return
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].time < entries[j].time })
	for _, e := range entries {
		st.Times = append(st.Times, e.time)
		st.Files = append(st.Files, e.file)
	}
	return
}

func timeAttribute(f *cdf.File, name string) (tm float64, err error) {
	tv, ok := f.Header.GetAttribute("", "time").([]float64)
	if !ok || len(tv) != 1 {
		err = fmt.Errorf("%s: missing float64 time attribute", name)
		return
	}
	tm = tv[0]
	return
}

func readMetadata(f *cdf.File, name string) (st *Structure, err error) {
	var (
		ints = make(map[string]int)
	)
	st = &Structure{}
	for _, a := range []string{"saved_X0", "saved_X1", "saved_Y0", "saved_Y1", "nodex", "nodey"} {
		av, ok := f.Header.GetAttribute("", a).([]int32)
		if !ok || len(av) != 1 {
			err = fmt.Errorf("%s: missing int32 attribute %s", name, a)
			return
		}
		ints[a] = int(av[0])
	}
	st.SavedX0, st.SavedX1 = ints["saved_X0"], ints["saved_X1"]
	st.SavedY0, st.SavedY1 = ints["saved_Y0"], ints["saved_Y1"]
	st.NodeX, st.NodeY = ints["nodex"], ints["nodey"]
	targets := []*[]float32{
		&st.XHFull, &st.YHFull, &st.XFFull, &st.YFFull, &st.ZH, &st.ZF,
		&st.QV0, &st.TH0, &st.RHO0, &st.P0, &st.U0, &st.V0,
	}
	for i, v := range append(append([]string{}, coordVars...), baseVars...) {
		if *targets[i], err = readVector(f, name, v); err != nil {
			return
		}
	}
	st.NX, st.NY, st.NZ = len(st.XHFull), len(st.YHFull), len(st.ZH)
	return
}

func readVector(f *cdf.File, name, v string) (data []float32, err error) {
	dims := f.Header.Lengths(v)
	if len(dims) != 1 {
		err = fmt.Errorf("%s: variable %s is missing or not one dimensional", name, v)
		return
	}
	data = make([]float32, dims[0])
	if _, err = f.Reader(v, nil, nil).Read(data); err != nil {
		err = fmt.Errorf("%s: reading %s: %v", name, v, err)
	}
	return
}

// WriteNetCDF writes one archive time as a netCDF file. fields maps every name
// in Fields to its values over the saved region, X fastest.
func WriteNetCDF(file string, st *Structure, t float64, fields map[string][]float32) (err error) {
	var (
		fd            *os.File
		f             *cdf.File
		nxs, nys, nzs = st.SavedExtents(grid.Staggered)
		vectorNames   = append(append([]string{}, coordVars...), baseVars...)
	)
	h := cdf.NewHeader(
		[]string{dimNX, dimNY, dimNXF, dimNYF, dimZH, dimZF, dimXS, dimYS},
		[]int{st.NX, st.NY, st.NX + 1, st.NY + 1, st.NZ, st.NZ + 1, nxs, nys})
	vectors := [][]float32{
		st.XHFull, st.YHFull, st.XFFull, st.YFFull, st.ZH, st.ZF,
		st.QV0, st.TH0, st.RHO0, st.P0, st.U0, st.V0,
	}
	vectorDims := []string{dimNX, dimNY, dimNXF, dimNYF, dimZH, dimZF,
		dimZH, dimZH, dimZH, dimZH, dimZH, dimZH}
	h.AddAttribute("", "time", []float64{t})
	h.AddAttribute("", "saved_X0", []int32{int32(st.SavedX0)})
	h.AddAttribute("", "saved_X1", []int32{int32(st.SavedX1)})
	h.AddAttribute("", "saved_Y0", []int32{int32(st.SavedY0)})
	h.AddAttribute("", "saved_Y1", []int32{int32(st.SavedY1)})
	h.AddAttribute("", "nodex", []int32{int32(st.NodeX)})
	h.AddAttribute("", "nodey", []int32{int32(st.NodeY)})
	for i, v := range vectorNames {
		h.AddVariable(v, []string{vectorDims[i]}, []float32{0})
	}
	for _, fld := range Fields {
		zdim := dimZH
		if fld.Staggered() {
			zdim = dimZF
		}
		h.AddVariable(fld.Name, []string{zdim, dimYS, dimXS}, []float32{0})
		h.AddAttribute(fld.Name, "stagger", fld.Layout.String())
	}
	h.Define()
	for _, cerr := range h.Check() {
		if cerr != nil {
			err = fmt.Errorf("%s: %v", file, cerr)
			return
		}
	}
	if fd, err = os.Create(file); err != nil {
		return
	}
	defer func() {
		if cerr := fd.Close(); err == nil {
			err = cerr
		}
	}()
	if f, err = cdf.Create(fd, h); err != nil {
		return
	}
	for i, v := range vectorNames {
		if _, err = f.Writer(v, nil, nil).Write(vectors[i]); err != nil {
			err = fmt.Errorf("%s: writing %s: %v", file, v, err)
			return
		}
	}
	for _, fld := range Fields {
		want := nxs * nys * nzs
		if !fld.Staggered() {
			want = nxs * nys * st.NZ
		}
		data, ok := fields[fld.Name]
		if !ok || len(data) != want {
			err = fmt.Errorf("%s: field %s has %d values, want %d", file, fld.Name, len(data), want)
			return
		}
		if _, err = f.Writer(fld.Name, nil, nil).Write(data); err != nil {
			err = fmt.Errorf("%s: writing %s: %v", file, fld.Name, err)
			return
		}
	}
	return
}
