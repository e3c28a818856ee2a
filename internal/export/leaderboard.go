// Package export renders the leaderboard as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"learnearn/internal/domain"
	"learnearn/internal/wallet"
)

// SheetName is the worksheet holding the leaderboard.
const SheetName = "Leaderboard"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []interface{}{"Rank", "Address", "Avatar", "Challenges", "Points", "CELO"}

// WriteLeaderboard streams ranked entries into an xlsx workbook written to w.
func WriteLeaderboard(w io.Writer, entries []domain.RankedEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("create stream writer: %w", err)
	}

	if err := sw.SetRow("A1", headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			e.Rank,
			sanitize(e.AccountKey),
			sanitize(e.AvatarRef),
			e.ChallengesCompleted,
			e.PointsEarned,
			wallet.FormatCELO(int64(e.PointsEarned)),
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	return f.Write(w)
}

// sanitize keeps user-controlled text from being evaluated as a formula.
func sanitize(s string) string {
	if s == "" {
		return s
	}
	if strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
