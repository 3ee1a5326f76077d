package schema

import (
	"fmt"
	"strings"
)

// Categorical vocabularies. Each type enumerates the labels offered for one
// family of fields; the string value is the label as it appears in the dataset.

type GenderLabel string

const (
	Female GenderLabel = "F"
	Male   GenderLabel = "M"
)

func GenderValues() []string { return labels(Female, Male) }

type BoardLabel string

const (
	BoardCentral BoardLabel = "Central"
	BoardOthers  BoardLabel = "Others"
)

func BoardValues() []string { return labels(BoardCentral, BoardOthers) }

type SubjectLabel string

const (
	SubjectArts     SubjectLabel = "Arts"
	SubjectCommerce SubjectLabel = "Commerce"
	SubjectScience  SubjectLabel = "Science"
)

func SubjectValues() []string { return labels(SubjectArts, SubjectCommerce, SubjectScience) }

type DegreeLabel string

const (
	DegreeCommMgmt DegreeLabel = "Comm&Mgmt"
	DegreeOthers   DegreeLabel = "Others"
	DegreeSciTech  DegreeLabel = "Sci&Tech"
)

func DegreeValues() []string { return labels(DegreeCommMgmt, DegreeOthers, DegreeSciTech) }

type YesNoLabel string

const (
	No  YesNoLabel = "No"
	Yes YesNoLabel = "Yes"
)

func YesNoValues() []string { return labels(No, Yes) }

type SpecialisationLabel string

const (
	MktFin SpecialisationLabel = "Mkt&Fin"
	MktHR  SpecialisationLabel = "Mkt&HR"
)

func SpecialisationValues() []string { return labels(MktFin, MktHR) }

type CompanyTierLabel string

const (
	Tier1 CompanyTierLabel = "Tier 1"
	Tier2 CompanyTierLabel = "Tier 2"
	Tier3 CompanyTierLabel = "Tier 3"
)

func CompanyTierValues() []string { return labels(Tier1, Tier2, Tier3) }

type CompetitionLevelLabel string

const (
	CompetitionHigh   CompetitionLevelLabel = "High"
	CompetitionLow    CompetitionLevelLabel = "Low"
	CompetitionMedium CompetitionLevelLabel = "Medium"
)

func CompetitionLevelValues() []string {
	return labels(CompetitionHigh, CompetitionLow, CompetitionMedium)
}

func labels[T ~string](vs ...T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}

// Status is the binary placement outcome.
type Status int

const (
	NotPlaced Status = iota
	Placed
)

func (s Status) String() string {
	if s == Placed {
		return "Placed"
	}
	return "NotPlaced"
}

// MarshalText lets Status travel as "Placed"/"NotPlaced" in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStatus accepts the dataset spelling ("Not Placed") as well as the API
// spelling ("NotPlaced"). Matching ignores case and surrounding spaces.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.Join(strings.Fields(s), "")) {
	case "placed":
		return Placed, nil
	case "notplaced":
		return NotPlaced, nil
	default:
		return NotPlaced, fmt.Errorf("unknown placement status %q", s)
	}
}
