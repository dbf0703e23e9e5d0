package pass

import "unicode"

// ScriptStyle names a rendering path for one writing system: which bundled
// font file carries its glyphs. New scripts are added here without touching
// the layout code.
type ScriptStyle struct {
	Name     string
	FontName string // family name registered with the PDF engine
	FontFile string // TTF filename under the fonts dir
	ranges   *unicode.RangeTable
}

// Latin is the default style, rendered with the engine's core font.
var Latin = ScriptStyle{Name: "latin", FontName: "helvetica"}

// scriptStyles is the lookup table for non-Latin scripts common among the
// association's membership.
var scriptStyles = []ScriptStyle{
	{Name: "devanagari", FontName: "noto-devanagari", FontFile: "NotoSansDevanagari-Regular.ttf", ranges: unicode.Devanagari},
	{Name: "gujarati", FontName: "noto-gujarati", FontFile: "NotoSansGujarati-Regular.ttf", ranges: unicode.Gujarati},
	{Name: "gurmukhi", FontName: "noto-gurmukhi", FontFile: "NotoSansGurmukhi-Regular.ttf", ranges: unicode.Gurmukhi},
	{Name: "tamil", FontName: "noto-tamil", FontFile: "NotoSansTamil-Regular.ttf", ranges: unicode.Tamil},
}

// DetectScript returns the style for the first non-Latin script found in the
// text, or Latin when none matches. A mixed-script name follows its first
// non-Latin run, which matches how it is typed.
func DetectScript(text string) ScriptStyle {
	for _, r := range text {
		for _, style := range scriptStyles {
			if unicode.Is(style.ranges, r) {
				return style
			}
		}
	}
	return Latin
}
