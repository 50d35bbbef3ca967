package app

import (
	"image/color"
	"math"
)

// ColorTheme selects a power-to-color scheme for the waterfall.
type ColorTheme string

const (
	ThemeClassic   ColorTheme = "classic"   // Blue to red transition
	ThemeGrayscale ColorTheme = "grayscale" // Black to white transition
	ThemeThermal   ColorTheme = "thermal"   // Black to red to yellow to white
	ThemeEnhanced  ColorTheme = "enhanced"  // Multi-stage with better low-power contrast

	colorMapSize = 256
)

var colorThemes = map[ColorTheme]func(float64) color.Color{
	ThemeClassic:   classicColor,
	ThemeGrayscale: grayscaleColor,
	ThemeThermal:   thermalColor,
	ThemeEnhanced:  enhancedColor,
}

// ColorMapper maps power values in dB onto a precomputed color table.
type ColorMapper struct {
	colorMap      []color.Color
	boundsMin     float64
	powerPerIndex float64
}

// NewColorMapper precomputes the color table for the given theme over the
// [minDB, maxDB] power range.
func NewColorMapper(theme ColorTheme, minDB, maxDB float64) *ColorMapper {
	themeFn, ok := colorThemes[theme]
	if !ok {
		themeFn = enhancedColor
	}

	cm := ColorMapper{
		colorMap:      make([]color.Color, colorMapSize),
		boundsMin:     minDB,
		powerPerIndex: (maxDB - minDB) / float64(colorMapSize-1),
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = themeFn(float64(i) / float64(colorMapSize-1))
	}
	return &cm
}

// Color returns the color for a power value in dB, clamped to the mapper's
// bounds.
func (cm *ColorMapper) Color(powerDB float64) color.Color {
	index := int((powerDB - cm.boundsMin) / cm.powerPerIndex)
	if index < 0 {
		return cm.colorMap[0]
	}
	if index >= len(cm.colorMap) {
		return cm.colorMap[len(cm.colorMap)-1]
	}
	return cm.colorMap[index]
}

// hsv converts HSV (hue in degrees, saturation and value in [0, 1]) to RGB.
func hsv(h, s, v float64) color.Color {
	if s <= 0 {
		g := uint8(v * 255)
		return color.RGBA{R: g, G: g, B: g, A: 255}
	}

	h = math.Mod(h, 360) / 60
	i := int(h)
	f := h - float64(i)

	vv := uint8(v * 255)
	p := uint8(v * (1 - s) * 255)
	q := uint8(v * (1 - s*f) * 255)
	t := uint8(v * (1 - s*(1-f)) * 255)

	switch i {
	case 0:
		return color.RGBA{R: vv, G: t, B: p, A: 255}
	case 1:
		return color.RGBA{R: q, G: vv, B: p, A: 255}
	case 2:
		return color.RGBA{R: p, G: vv, B: t, A: 255}
	case 3:
		return color.RGBA{R: p, G: q, B: vv, A: 255}
	case 4:
		return color.RGBA{R: t, G: p, B: vv, A: 255}
	default:
		return color.RGBA{R: vv, G: p, B: q, A: 255}
	}
}

func classicColor(power float64) color.Color {
	return hsv(240-(power*240), 0.9+(power*0.1), math.Pow(power, 0.7))
}

func grayscaleColor(power float64) color.Color {
	v := uint8(math.Pow(power, 0.7) * 255)
	return color.RGBA{R: v, G: v, B: v, A: 255}
}

func thermalColor(power float64) color.Color {
	switch {
	case power < 0.33:
		return color.RGBA{R: uint8(power * 3 * 255), A: 255}
	case power < 0.66:
		return color.RGBA{R: 255, G: uint8((power - 0.33) * 3 * 255), A: 255}
	default:
		return color.RGBA{R: 255, G: 255, B: uint8((power - 0.66) * 3 * 255), A: 255}
	}
}

func enhancedColor(power float64) color.Color {
	power = math.Max(0, math.Min(1, power))
	enhanced := math.Pow(power, 0.7)

	switch {
	case power < 0.25:
		return hsv(240, 1, enhanced*4)
	case power < 0.5:
		return hsv(240-((power-0.25)*240), 1, enhanced*1.5)
	case power < 0.75:
		p := (power - 0.5) * 4
		return hsv(180-(p*120), 1, math.Min(1, enhanced*1.5))
	default:
		p := (power - 0.75) * 4
		return hsv(60-(p*60), 1, 1)
	}
}
