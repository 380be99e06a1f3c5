package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// TrajParameters are the run options read from a YAML parameter file. Seed
// options and the start time are pointers so an absent entry can be told
// apart from a zero value.
type TrajParameters struct {
	HistPath       string   `json:"histpath"`
	Base           string   `json:"base"`
	Time           *float64 `json:"time,omitempty"`
	NTimes         int      `json:"ntimes"`
	X0             *float64 `json:"x0,omitempty"`
	Y0             *float64 `json:"y0,omitempty"`
	Z0             *float64 `json:"z0,omitempty"`
	NX             *int     `json:"nx,omitempty"`
	NY             *int     `json:"ny,omitempty"`
	NZ             *int     `json:"nz,omitempty"`
	DX             *float64 `json:"dx,omitempty"`
	DY             *float64 `json:"dy,omitempty"`
	DZ             *float64 `json:"dz,omitempty"`
	Direction      int      `json:"direction,omitempty"`
	Workers        int      `json:"workers,omitempty"`
	Margin         int      `json:"margin,omitempty"`
	IncludeInvalid bool     `json:"includeInvalid,omitempty"`
	MemLimit       int64    `json:"memLimit,omitempty"`
	Debug          bool     `json:"debug,omitempty"`
}

func (ip *TrajParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// MissingSeeds names the seed options that were not supplied.
func (ip *TrajParameters) MissingSeeds() (missing []string) {
	for _, o := range []struct {
		name string
		set  bool
	}{
		{"x0", ip.X0 != nil}, {"y0", ip.Y0 != nil}, {"z0", ip.Z0 != nil},
		{"nx", ip.NX != nil}, {"ny", ip.NY != nil}, {"nz", ip.NZ != nil},
		{"dx", ip.DX != nil}, {"dy", ip.DY != nil}, {"dz", ip.DZ != nil},
	} {
		if !o.set {
			missing = append(missing, o.name)
		}
	}
	return
}

func orZero[T int | float64](p *T) (v T) {
	if p != nil {
		v = *p
	}
	return
}

func (ip *TrajParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Archive\n", ip.HistPath)
	fmt.Printf("\"%s\"\t\t= Output Base\n", ip.Base)
	fmt.Printf("%8.2f\t\t= Start Time\n", orZero(ip.Time))
	fmt.Printf("[%d]\t\t\t= Steps\n", ip.NTimes)
	fmt.Printf("[%d]\t\t\t= Direction\n", ip.Direction)
	fmt.Printf("[%d]\t\t\t= Workers\n", ip.Workers)
	fmt.Printf("(%g,%g,%g)\t= Seed Origin\n", orZero(ip.X0), orZero(ip.Y0), orZero(ip.Z0))
	fmt.Printf("(%d,%d,%d)\t\t= Seed Counts\n", orZero(ip.NX), orZero(ip.NY), orZero(ip.NZ))
	fmt.Printf("(%g,%g,%g)\t= Seed Spacing\n", orZero(ip.DX), orZero(ip.DY), orZero(ip.DZ))
}
