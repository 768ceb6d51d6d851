// Package fixtures ships a small deterministic M&A dataset used to seed
// development instances and tests.
package fixtures

import (
	"time"

	"dealgraph/domain/core/entities"
	"dealgraph/domain/core/valueobjects"
	"dealgraph/domain/events"
)

type companySpec struct {
	id       string
	label    string
	industry string
	valuation float64
	founded  int
	score    float64
}

type dealSpec struct {
	id       string
	source   string
	target   string
	dealType entities.DealType
	value    float64
	date     string
	desc     string
}

var companySpecs = []companySpec{
	{"helios-systems", "Helios Systems", "technology", 48_000_000_000, 1998, 88},
	{"quantum-forge", "QuantumForge", "technology", 6_200_000_000, 2014, 72},
	{"bluepeak-capital", "BluePeak Capital", "finance", 21_500_000_000, 1987, 64},
	{"meridian-health", "Meridian Health", "healthcare", 13_400_000_000, 2003, 58},
	{"vitalcore-labs", "VitalCore Labs", "healthcare", 2_900_000_000, 2016, 70},
	{"northwind-energy", "Northwind Energy", "energy", 17_800_000_000, 1979, 45},
	{"solstice-grid", "Solstice Grid", "energy", 4_100_000_000, 2011, 61},
	{"cartwheel-retail", "Cartwheel Retail", "retail", 9_600_000_000, 1995, 38},
	{"lumen-media", "Lumen Media", "media", 7_300_000_000, 2001, 52},
	{"atlas-industrial", "Atlas Industrial", "industrial", 11_200_000_000, 1968, 41},
	{"ferrovia-logistics", "Ferrovia Logistics", "industrial", 5_500_000_000, 1990, 47},
	{"brightline-ai", "Brightline AI", "technology", 1_800_000_000, 2019, 93},
}

var dealSpecs = []dealSpec{
	{"d-helios-quantum", "helios-systems", "quantum-forge", entities.DealTypeAcquisition, 5_900_000_000, "2024-03-14", "Helios acquires QuantumForge to fold photonic compute into its platform"},
	{"d-bluepeak-brightline", "bluepeak-capital", "brightline-ai", entities.DealTypeInvestment, 400_000_000, "2025-01-22", "Series C led by BluePeak"},
	{"d-helios-brightline", "helios-systems", "brightline-ai", entities.DealTypePartnership, 0, "2025-05-02", "Co-development of inference hardware"},
	{"d-meridian-vitalcore", "meridian-health", "vitalcore-labs", entities.DealTypeAcquisition, 3_100_000_000, "2023-11-08", "Meridian absorbs VitalCore's diagnostics portfolio"},
	{"d-bluepeak-meridian", "bluepeak-capital", "meridian-health", entities.DealTypeInvestment, 950_000_000, "2022-06-30", "Growth equity stake"},
	{"d-northwind-solstice", "northwind-energy", "solstice-grid", entities.DealTypeJointVenture, 1_200_000_000, "2024-09-17", "Offshore storage joint venture"},
	{"d-atlas-ferrovia", "atlas-industrial", "ferrovia-logistics", entities.DealTypeMerger, 6_700_000_000, "2023-02-27", "Merger of equals in heavy logistics"},
	{"d-cartwheel-lumen", "cartwheel-retail", "lumen-media", entities.DealTypePartnership, 0, "2024-12-05", "Retail media network partnership"},
	{"d-bluepeak-solstice", "bluepeak-capital", "solstice-grid", entities.DealTypeInvestment, 600_000_000, "2025-03-19", "Infrastructure fund position"},
	{"d-helios-atlas", "helios-systems", "atlas-industrial", entities.DealTypePartnership, 0, "2023-07-11", "Factory automation rollout"},
	{"d-lumen-brightline", "lumen-media", "brightline-ai", entities.DealTypePartnership, 0, "2025-06-28", "Generative ad tooling pilot"},
	{"d-quantum-vitalcore", "quantum-forge", "vitalcore-labs", entities.DealTypePartnership, 0, "2024-10-01", "Compute for protein folding screens"},
}

// Companies returns the sample company set
func Companies() []*entities.Company {
	out := make([]*entities.Company, 0, len(companySpecs))
	for _, spec := range companySpecs {
		c, err := entities.NewCompany(
			valueobjects.MustCompanyID(spec.id),
			spec.label,
			entities.CompanyAttributes{
				Industry:           spec.industry,
				Valuation:          spec.valuation,
				FoundedYear:        spec.founded,
				ExtraordinaryScore: spec.score,
			},
		)
		if err != nil {
			panic(err)
		}
		out = append(out, c)
	}
	return out
}

// Deals returns the sample deal set
func Deals() []*entities.Deal {
	out := make([]*entities.Deal, 0, len(dealSpecs))
	for _, spec := range dealSpecs {
		date, err := time.Parse("2006-01-02", spec.date)
		if err != nil {
			panic(err)
		}
		d, err := entities.NewDeal(
			valueobjects.MustDealID(spec.id),
			valueobjects.MustCompanyID(spec.source),
			valueobjects.MustCompanyID(spec.target),
			spec.dealType,
			entities.DealAttributes{
				DealValue:   spec.value,
				DealDate:    date,
				Description: spec.desc,
			},
		)
		if err != nil {
			panic(err)
		}
		out = append(out, d)
	}
	return out
}

// Snapshot returns the sample dataset in wire form
func Snapshot() *events.SnapshotPayload {
	return events.SnapshotToPayload(Companies(), Deals())
}
