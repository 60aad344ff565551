package banner

import (
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

func Print() {
	ptermLogo, _ := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithRGB("Fin", pterm.NewRGB(46, 137, 255)),
		putils.LettersFromStringWithRGB("Watch", pterm.NewRGB(0, 0, 0))).
		Srender()

	pterm.DefaultCenter.Print(ptermLogo)

	pterm.DefaultCenter.Print(
		pterm.DefaultHeader.
			WithFullWidth().
			WithBackgroundStyle(pterm.NewStyle(pterm.BgLightBlue)).
			WithMargin(5).
			Sprint(pterm.White("FinWatch - Inventory & Security Event Ingestion")),
	)

	pterm.Info.Println(
		"CSV ingestion, event classification and security analytics." +
			"\nIdempotent by design: re-run ingestion as often as you like." +
			"\nVersion 0.1.0.",
	)
}
