package render

import (
	"image/color"

	"dealgraph/domain/core/entities"
)

// Sector palette. Keys match Company.ColorKey(); anything unknown
// falls back to "other".
var sectorColors = map[string]color.NRGBA{
	"technology": {R: 0x4C, G: 0x8D, B: 0xFF, A: 0xFF},
	"finance":    {R: 0x2E, G: 0xC2, B: 0x7A, A: 0xFF},
	"healthcare": {R: 0xE8, G: 0x5D, B: 0x75, A: 0xFF},
	"energy":     {R: 0xF2, G: 0xA9, B: 0x1E, A: 0xFF},
	"retail":     {R: 0xA6, G: 0x6B, B: 0xE8, A: 0xFF},
	"media":      {R: 0x22, G: 0xB8, B: 0xC9, A: 0xFF},
	"industrial": {R: 0x8A, G: 0x92, B: 0x4A, A: 0xFF},
	"other":      {R: 0x9A, G: 0xA3, B: 0xAF, A: 0xFF},
}

// Deal palette keyed by DealType
var dealColors = map[entities.DealType]color.NRGBA{
	entities.DealTypeMerger:       {R: 0x3A, G: 0x7B, B: 0xD5, A: 0xFF},
	entities.DealTypeAcquisition:  {R: 0xD9, G: 0x53, B: 0x4F, A: 0xFF},
	entities.DealTypePartnership:  {R: 0x43, G: 0xA0, B: 0x47, A: 0xFF},
	entities.DealTypeInvestment:   {R: 0xF0, G: 0x93, B: 0x0A, A: 0xFF},
	entities.DealTypeIPO:          {R: 0x7E, G: 0x57, B: 0xC2, A: 0xFF},
	entities.DealTypeJointVenture: {R: 0x26, G: 0xA6, B: 0x9A, A: 0xFF},
	entities.DealTypeOther:        {R: 0x78, G: 0x80, B: 0x8B, A: 0xFF},
}

var (
	backgroundColor = color.NRGBA{R: 0x12, G: 0x16, B: 0x1D, A: 0xFF}
	labelColor      = color.NRGBA{R: 0xE6, G: 0xEA, B: 0xF0, A: 0xFF}
	highlightRing   = color.NRGBA{R: 0xFF, G: 0xD5, B: 0x4F, A: 0xFF}
	selectionRing   = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	overlayGlow     = color.NRGBA{R: 0xFF, G: 0x8A, B: 0x3C, A: 0xFF}
)

// SectorColor resolves the fill for a company node
func SectorColor(key string) color.NRGBA {
	if c, ok := sectorColors[key]; ok {
		return c
	}
	return sectorColors["other"]
}

// DealColor resolves the stroke for a deal edge
func DealColor(t entities.DealType) color.NRGBA {
	if c, ok := dealColors[t]; ok {
		return c
	}
	return dealColors[entities.DealTypeOther]
}

// withAlpha scales the alpha channel, used to fade predicted edges by
// confidence
func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	c.A = uint8(alpha * 255)
	return c
}
