package types

import "strings"

// BCFLAG selects the boundary condition applied on a boundary region.
type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Inflow
	BC_Dirichlet
	BC_TotalFlux
	BC_DiffusiveFlux
)

var BCNameMap = map[string]BCFLAG{
	"none":           BC_None,
	"inflow":         BC_Inflow,
	"in":             BC_Inflow,
	"dirichlet":      BC_Dirichlet,
	"total_flux":     BC_TotalFlux,
	"flux":           BC_TotalFlux,
	"diffusive_flux": BC_DiffusiveFlux,
}

// NewBCFLAG parses a boundary condition name, unknown names give BC_None.
func NewBCFLAG(name string) BCFLAG {
	if bf, ok := BCNameMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return bf
	}
	return BC_None
}

func (bf BCFLAG) String() string {
	switch bf {
	case BC_Inflow:
		return "inflow"
	case BC_Dirichlet:
		return "dirichlet"
	case BC_TotalFlux:
		return "total_flux"
	case BC_DiffusiveFlux:
		return "diffusive_flux"
	default:
		return "none"
	}
}
