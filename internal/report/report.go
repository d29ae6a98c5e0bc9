package report

import (
	"context"
	"fmt"
	"sort"

	"cabinrent/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of every generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const dateFormat = "02.01.2006"

// Source is the read side the reports are built from.
type Source interface {
	ListCabins(ctx context.Context, activeOnly bool) ([]*models.Cabin, error)
	ReservationsInRange(ctx context.Context, from, to models.Date) ([]*models.Reservation, error)
	ListPayments(ctx context.Context, f models.PaymentFilter) ([]*models.Payment, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	GetGuest(ctx context.Context, id int64) (*models.Guest, error)
	Balance(ctx context.Context, reservationID int64) (models.Balance, error)
}

type Generator struct {
	source Source
	logger *zerolog.Logger
}

func NewGenerator(source Source, logger *zerolog.Logger) *Generator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Generator{source: source, logger: logger}
}

func ReservationsFileName(from, to models.Date) string {
	return fmt.Sprintf("reservations_%s_to_%s.xlsx", from, to)
}

func PaymentsFileName(from, to models.Date) string {
	return fmt.Sprintf("payments_%s_to_%s.xlsx", from, to)
}

func StatementFileName(reservationID int64) string {
	return fmt.Sprintf("statement_%d.xlsx", reservationID)
}

func checkWindow(from, to models.Date) error {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return fmt.Errorf("report window %s - %s: %w", from, to, models.ErrInvalidRange)
	}
	return nil
}

// Reservations lists non-cancelled stays with a night inside [from, to] plus an occupancy grid.
func (g *Generator) Reservations(ctx context.Context, from, to models.Date) ([]byte, error) {
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}

	reservations, err := g.source.ReservationsInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("error getting reservations: %w", err)
	}
	cabins, err := g.source.ListCabins(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("error getting cabins: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Reservations"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	s := newStyles(f)
	writeTitle(f, s, sheet, fmt.Sprintf("Reservations: %s - %s", fmtDate(from), fmtDate(to)), "J")

	headers := []string{"ID", "Cabin", "Guest", "Check-in", "Check-out", "Nights", "Guests", "Status", "Total", "Notes"}
	writeHeaderRow(f, s, sheet, 3, headers)

	row := 4
	nights, total := 0, 0.0
	for _, r := range reservations {
		values := []any{r.ID, r.CabinName, r.GuestName, fmtDate(r.StartDate), fmtDate(r.EndDate),
			r.Nights(), r.GuestsCount, r.Status, r.TotalPrice, r.Notes}
		writeRow(f, sheet, row, values)
		_ = f.SetCellStyle(sheet, cell(9, row), cell(9, row), s.money)
		nights += r.Nights()
		total += r.TotalPrice
		row++
	}

	_ = f.SetCellValue(sheet, cell(1, row), "Total")
	_ = f.SetCellValue(sheet, cell(6, row), nights)
	_ = f.SetCellValue(sheet, cell(9, row), models.RoundMoney(total))
	_ = f.SetCellStyle(sheet, cell(1, row), cell(10, row), s.total)

	_ = f.SetColWidth(sheet, "B", "C", 24)
	_ = f.SetColWidth(sheet, "D", "E", 12)
	_ = f.SetColWidth(sheet, "J", "J", 40)

	if err := g.writeOccupancy(f, s, cabins, reservations, from, to); err != nil {
		return nil, err
	}

	// drop the default sheet
	_ = f.DeleteSheet("Sheet1")

	g.logger.Info().Int("rows", len(reservations)).Str("from", from.String()).Str("to", to.String()).
		Msg("Reservations report created")
	return write(f)
}

// writeOccupancy lays cabins out as rows and days as columns, naming the guest of each booked night.
func (g *Generator) writeOccupancy(f *excelize.File, s styles, cabins []*models.Cabin, reservations []*models.Reservation, from, to models.Date) error {
	sheet := "Occupancy"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	days := from.DaysUntil(to) + 1
	for i := 0; i < days; i++ {
		c := cell(i+2, 1)
		_ = f.SetCellValue(sheet, c, from.AddDays(i).Time().Format("02.01"))
		_ = f.SetCellStyle(sheet, c, c, s.header)
	}

	rows := make(map[int64]int, len(cabins))
	for i, c := range cabins {
		rows[c.ID] = i + 2
		name := cell(1, i+2)
		_ = f.SetCellValue(sheet, name, fmt.Sprintf("%s (%d)", c.Name, c.Capacity))
		_ = f.SetCellStyle(sheet, name, name, s.label)
	}

	for _, r := range reservations {
		row, ok := rows[r.CabinID]
		if !ok {
			continue
		}
		for d := r.StartDate; d.Before(r.EndDate); d = d.AddDays(1) {
			offset := from.DaysUntil(d)
			if offset < 0 || offset >= days {
				continue
			}
			c := cell(offset+2, row)
			_ = f.SetCellValue(sheet, c, r.GuestName)
			_ = f.SetCellStyle(sheet, c, c, s.booked)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 25)
	if days > 0 {
		last, _ := excelize.ColumnNumberToName(days + 1)
		_ = f.SetColWidth(sheet, "B", last, 14)
	}
	return nil
}

// Payments groups the payments of [from, to] by method with a subtotal per method.
func (g *Generator) Payments(ctx context.Context, from, to models.Date) ([]byte, error) {
	if err := checkWindow(from, to); err != nil {
		return nil, err
	}

	payments, err := g.source.ListPayments(ctx, models.PaymentFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("error getting payments: %w", err)
	}

	byMethod := make(map[string][]*models.Payment)
	for _, p := range payments {
		byMethod[p.Method] = append(byMethod[p.Method], p)
	}
	methods := make([]string, 0, len(byMethod))
	for m := range byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payments"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	s := newStyles(f)
	writeTitle(f, s, sheet, fmt.Sprintf("Payments: %s - %s", fmtDate(from), fmtDate(to)), "H")
	writeHeaderRow(f, s, sheet, 3, []string{"ID", "Date", "Reservation", "Guest", "Cabin", "Method", "Reference", "Amount"})

	row := 4
	grand := 0.0
	for _, method := range methods {
		subtotal := 0.0
		for _, p := range byMethod[method] {
			writeRow(f, sheet, row, []any{p.ID, fmtDate(p.PaidAt), p.ReservationID, p.GuestName,
				p.CabinName, p.Method, p.Reference, p.Amount})
			_ = f.SetCellStyle(sheet, cell(8, row), cell(8, row), s.money)
			subtotal += p.Amount
			row++
		}
		_ = f.SetCellValue(sheet, cell(1, row), "Subtotal "+method)
		_ = f.SetCellValue(sheet, cell(8, row), models.RoundMoney(subtotal))
		_ = f.SetCellStyle(sheet, cell(1, row), cell(8, row), s.total)
		grand += subtotal
		row += 2
	}

	_ = f.SetCellValue(sheet, cell(1, row), "Total")
	_ = f.SetCellValue(sheet, cell(8, row), models.RoundMoney(grand))
	_ = f.SetCellStyle(sheet, cell(1, row), cell(8, row), s.total)

	_ = f.SetColWidth(sheet, "B", "B", 12)
	_ = f.SetColWidth(sheet, "D", "E", 24)
	_ = f.SetColWidth(sheet, "G", "G", 20)
	_ = f.DeleteSheet("Sheet1")

	g.logger.Info().Int("rows", len(payments)).Str("from", from.String()).Str("to", to.String()).
		Msg("Payments report created")
	return write(f)
}

// Statement is the per-reservation account handed to a guest.
func (g *Generator) Statement(ctx context.Context, reservationID int64) ([]byte, error) {
	r, err := g.source.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	guest, err := g.source.GetGuest(ctx, r.GuestID)
	if err != nil {
		return nil, err
	}
	payments, err := g.source.ListPayments(ctx, models.PaymentFilter{ReservationID: r.ID})
	if err != nil {
		return nil, fmt.Errorf("error getting payments: %w", err)
	}
	balance, err := g.source.Balance(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Statement"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	s := newStyles(f)
	writeTitle(f, s, sheet, fmt.Sprintf("Statement for reservation #%d", r.ID), "D")

	details := [][2]any{
		{"Guest", guest.FullName()},
		{"Email", guest.Email},
		{"Phone", guest.Phone},
		{"Cabin", r.CabinName},
		{"Check-in", fmtDate(r.StartDate)},
		{"Check-out", fmtDate(r.EndDate)},
		{"Nights", r.Nights()},
		{"Guests", r.GuestsCount},
		{"Status", r.Status},
	}
	row := 3
	for _, d := range details {
		_ = f.SetCellValue(sheet, cell(1, row), d[0])
		_ = f.SetCellValue(sheet, cell(2, row), d[1])
		_ = f.SetCellStyle(sheet, cell(1, row), cell(1, row), s.label)
		row++
	}

	row++
	writeHeaderRow(f, s, sheet, row, []string{"Date", "Method", "Reference", "Amount"})
	row++
	for _, p := range payments {
		writeRow(f, sheet, row, []any{fmtDate(p.PaidAt), p.Method, p.Reference, p.Amount})
		_ = f.SetCellStyle(sheet, cell(4, row), cell(4, row), s.money)
		row++
	}

	row++
	for _, line := range [][2]any{{"Total", balance.Total}, {"Paid", balance.Paid}, {"Due", balance.Due}} {
		_ = f.SetCellValue(sheet, cell(3, row), line[0])
		_ = f.SetCellValue(sheet, cell(4, row), line[1])
		_ = f.SetCellStyle(sheet, cell(3, row), cell(4, row), s.total)
		row++
	}
	_ = f.SetCellValue(sheet, cell(3, row), "Payment status")
	_ = f.SetCellValue(sheet, cell(4, row), balance.Status)

	_ = f.SetColWidth(sheet, "A", "A", 16)
	_ = f.SetColWidth(sheet, "B", "C", 24)
	_ = f.SetColWidth(sheet, "D", "D", 14)
	_ = f.DeleteSheet("Sheet1")

	g.logger.Info().Int64("reservation_id", r.ID).Msg("Guest statement created")
	return write(f)
}

type styles struct {
	title  int
	header int
	label  int
	booked int
	money  int
	total  int
}

func newStyles(f *excelize.File) styles {
	var s styles
	s.title, _ = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	s.header, _ = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	s.label, _ = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	s.booked, _ = f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFE0E0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	s.money, _ = f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	s.total, _ = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		NumFmt: 4,
		Border: []excelize.Border{{Type: "top", Color: "#000000", Style: 1}},
	})
	return s
}

func writeTitle(f *excelize.File, s styles, sheet, title, lastCol string) {
	_ = f.SetCellValue(sheet, "A1", title)
	_ = f.MergeCell(sheet, "A1", lastCol+"1")
	_ = f.SetCellStyle(sheet, "A1", "A1", s.title)
}

func writeHeaderRow(f *excelize.File, s styles, sheet string, row int, headers []string) {
	for i, h := range headers {
		_ = f.SetCellValue(sheet, cell(i+1, row), h)
	}
	_ = f.SetCellStyle(sheet, cell(1, row), cell(len(headers), row), s.header)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		_ = f.SetCellValue(sheet, cell(i+1, row), v)
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func fmtDate(d models.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateFormat)
}

func write(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
