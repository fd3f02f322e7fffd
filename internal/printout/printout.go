// Package printout renders roster sheets for posting at the facility.
package printout

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/slotboard/internal/errors"
	"github.com/abrezinsky/slotboard/internal/models"
	"github.com/abrezinsky/slotboard/internal/schedule"
)

const (
	qrSize   = 256
	qrWidth  = 40.0
	margin   = 15.0
	lineStep = 7.0
)

// ErrNothingToPrint is returned for options that offer no activity.
var ErrNothingToPrint = errors.SlotUnavailable("no games are offered in this option")

// SheetURL is the link printed on a sheet: the board with the slot selected.
func SheetURL(boardURL, slotID string) string {
	boardURL = strings.TrimSpace(boardURL)
	if boardURL == "" {
		return ""
	}
	u, err := url.Parse(boardURL)
	if err != nil {
		return boardURL
	}
	q := u.Query()
	q.Set("slot", slotID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Filename suggests a download name for the sheet of slot's option.
func Filename(slot *models.Slot, priority int) string {
	return fmt.Sprintf("roster-%s-%d.pdf", slot.ID, priority+1)
}

// RosterSheet renders the roster of one option of slot as an A4 PDF. The main
// roster and waiting list are split with the live catalog limit. When
// boardURL is set a QR code linking to the board is added.
func RosterSheet(slot *models.Slot, priority int, catalog schedule.Catalog, boardURL string) ([]byte, error) {
	option, err := slot.Option(priority)
	if err != nil {
		return nil, errors.InvalidInput("priority must be 0 or 1")
	}
	if !option.IsOffered() {
		return nil, ErrNothingToPrint
	}

	meta := catalog.Lookup(option.Sport)
	main, waiting := schedule.SplitRoster(option.Players, meta.MainLimit)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetTitle(fmt.Sprintf("%s roster", option.Sport), true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(0, 10, tr(option.Sport))
	pdf.Ln(11)

	pdf.SetFont("Arial", "", 13)
	pdf.Cell(0, 8, tr(when(slot)))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, tr(fmt.Sprintf("%s  |  %d-%d players", optionLabel(priority), meta.Min, meta.Max)))
	pdf.Ln(12)

	if link := SheetURL(boardURL, slot.ID); link != "" {
		png, err := qrcode.Encode(link, qrcode.Medium, qrSize)
		if err != nil {
			return nil, fmt.Errorf("encode qr: %w", err)
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader("board", opts, bytes.NewReader(png))
		pageW, _ := pdf.GetPageSize()
		pdf.ImageOptions("board", pageW-margin-qrWidth, margin, qrWidth, qrWidth, false, opts, 0, link)
	}

	writeRoster(pdf, tr, "Roster", main, 1)
	if len(waiting) > 0 {
		pdf.Ln(4)
		writeRoster(pdf, tr, "Waiting list", waiting, len(main)+1)
	}

	if link := SheetURL(boardURL, slot.ID); link != "" {
		pdf.Ln(6)
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, tr("Sign up or drop out at "+link))
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRoster(pdf *gofpdf.Fpdf, tr func(string) string, heading string, players []models.Player, first int) {
	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, tr(fmt.Sprintf("%s (%d)", heading, len(players))))
	pdf.Ln(9)

	pdf.SetFont("Arial", "", 12)
	if len(players) == 0 {
		pdf.Cell(0, lineStep, tr("Nobody yet"))
		pdf.Ln(lineStep)
		return
	}
	for i, p := range players {
		pdf.CellFormat(10, lineStep, fmt.Sprintf("%d.", first+i), "", 0, "R", false, 0, "")
		pdf.Cell(0, lineStep, tr(" "+playerLine(p)))
		pdf.Ln(lineStep)
	}
}

func playerLine(p models.Player) string {
	if !p.IsGuest {
		return p.Name
	}
	return fmt.Sprintf("%s (guest of %s, family %s)", p.Name, p.ParishionerName, p.FamilyID)
}

func optionLabel(priority int) string {
	if priority == models.PriorityFallback {
		return "Option 2 (fallback)"
	}
	return "Option 1"
}

func when(slot *models.Slot) string {
	label := slot.Day
	if d, err := time.Parse(schedule.DayDateLayout, slot.DayDate); err == nil {
		label += ", " + d.Format("Jan 2")
	}
	return label + ", " + schedule.BlockLabel(slot.BlockID)
}
