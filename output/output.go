package output

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"go.uber.org/zap"

	"github.com/notargets/gotraj/parcels"
)

// Writer stores trajectories. Init is called once before the first window and
// AppendWindow once per window, both on the coordinating rank only.
type Writer interface {
	Init(path string, set *parcels.Set) error
	AppendWindow(path string, set *parcels.Set, window int) error
}

const (
	dimTime   = "time"
	dimParcel = "parcel"
)

// Variables lists the trajectory variables in file order.
var Variables = []string{"xpos", "ypos", "zpos", "u", "v", "w"}

// velocities is the index of the first velocity variable.
const velocities = 3

func sequences(set *parcels.Set) [][]float32 {
	return [][]float32{set.X, set.Y, set.Z, set.U, set.V, set.W}
}

// Record is the output record of a window time slot. Windows share their
// boundary instant, so every window after the first writes positions from slot
// 1 on. Its slot 0 velocities fill the boundary record, whose last-slot
// samples were Missing.
func Record(window, slot, nTimes int) int {
	return window*(nTimes-1) + slot
}

// NetCDF writes one netCDF file with an unlimited time dimension.
type NetCDF struct {
	log *zap.SugaredLogger
}

func NewNetCDF(log *zap.SugaredLogger) *NetCDF {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &NetCDF{log: log}
}

func (nw *NetCDF) Init(path string, set *parcels.Set) (err error) {
	var (
		fd *os.File
		h  = cdf.NewHeader([]string{dimTime, dimParcel}, []int{0, set.NParcels})
	)
	h.AddAttribute("", "title", "gotraj parcel trajectories")
	h.AddAttribute("", "ntimes_per_window", []int32{int32(set.NTimes)})
	for _, v := range Variables {
		h.AddVariable(v, []string{dimTime, dimParcel}, []float32{parcels.Missing})
		h.AddAttribute(v, "missing_value", []float32{parcels.Missing})
	}
	h.Define()
	for _, cerr := range h.Check() {
		if cerr != nil {
			return fmt.Errorf("%s: %v", path, cerr)
		}
	}
	if fd, err = os.Create(path); err != nil {
		return
	}
	defer func() {
		if cerr := fd.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err = cdf.Create(fd, h); err != nil {
		return
	}
	nw.log.Infow("Created trajectory output", "path", path, "parcels", set.NParcels)
	return
}

func (nw *NetCDF) AppendWindow(path string, set *parcels.Set, window int) (err error) {
	var (
		fd    *os.File
		f     *cdf.File
		first = 1
		row   = make([]float32, set.NParcels)
	)
	if window == 0 {
		first = 0
	}
	if fd, err = os.OpenFile(path, os.O_RDWR, 0); err != nil {
		return
	}
	defer func() {
		if cerr := fd.Close(); err == nil {
			err = cerr
		}
	}()
	if f, err = cdf.Open(fd); err != nil {
		err = fmt.Errorf("%s: %v", path, err)
		return
	}
	for vn, seq := range sequences(set) {
		start := first
		if vn >= velocities {
			// the boundary record only gains its velocity samples now
			start = 0
		}
		for t := start; t < set.NTimes; t++ {
			rec := Record(window, t, set.NTimes)
			for p := range row {
				row[p] = seq[set.Idx(p, t)]
			}
			w := f.Writer(Variables[vn], []int{rec, 0}, []int{rec + 1, 0})
			if _, err = w.Write(row); err != nil {
				err = fmt.Errorf("%s: writing %s record %d: %v", path, Variables[vn], rec, err)
				return
			}
		}
	}
	if err = cdf.UpdateNumRecs(fd); err != nil {
		return
	}
	nw.log.Debugw("Appended window", "path", path, "window", window,
		"records", fmt.Sprintf("%d..%d", Record(window, first, set.NTimes), Record(window, set.NTimes-1, set.NTimes)))
	return
}

// Trajectories is the content of a trajectory file, indexed by variable name
// then record, each record holding one value per parcel.
type Trajectories struct {
	NParcels int
	Records  int
	Data     map[string][][]float32
}

func Read(path string) (tr *Trajectories, err error) {
	var (
		fd *os.File
		f  *cdf.File
	)
	if fd, err = os.Open(path); err != nil {
		return
	}
	defer fd.Close()
	if f, err = cdf.Open(fd); err != nil {
		err = fmt.Errorf("%s: %v", path, err)
		return
	}
	dims := f.Header.Lengths(Variables[0])
	if len(dims) != 2 {
		err = fmt.Errorf("%s: %s is not a (time, parcel) variable", path, Variables[0])
		return
	}
	tr = &Trajectories{Records: dims[0], NParcels: dims[1], Data: make(map[string][][]float32)}
	for _, v := range Variables {
		for rec := 0; rec < tr.Records; rec++ {
			row := make([]float32, tr.NParcels)
			if _, err = f.Reader(v, []int{rec, 0}, []int{rec + 1, 0}).Read(row); err != nil {
				err = fmt.Errorf("%s: reading %s record %d: %v", path, v, rec, err)
				return
			}
			tr.Data[v] = append(tr.Data[v], row)
		}
	}
	return
}
