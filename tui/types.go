package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/jrwynneiii/dvbtuner/device"
	"github.com/rivo/tview"
)

type PidTableData struct {
	tview.TableContentReadOnly
	rows []PidRow
}

type StatusTableData struct {
	tview.TableContentReadOnly
	status Status
}

type PidRow struct {
	PID     int
	Packets uint64
	Rate    float64
}

type Status struct {
	State           device.State
	Frontend        string
	PacketsReceived uint64
	TransportErrors uint64
	Blocks          int
	AverageRate     float64
}

func stateColor(s device.State) tcell.Color {
	switch s {
	case device.Tuned:
		return tcell.ColorGreen
	case device.Tuning, device.RotorMoving:
		return tcell.ColorYellow
	case device.TuningFailed:
		return tcell.ColorRed
	}
	return tcell.ColorGray
}

func (l *StatusTableData) GetRowCount() int {
	return 6
}

func (l *StatusTableData) GetColumnCount() int {
	return 2
}

func (l *StatusTableData) GetCell(row, column int) *tview.TableCell {
	switch row {
	case 0:
		if column == 0 {
			return tview.NewTableCell("Frontend:")
		}
		return tview.NewTableCell(l.status.Frontend)
	case 1:
		if column == 0 {
			return tview.NewTableCell("State:")
		}
		return tview.NewTableCell(l.status.State.String()).SetTextColor(stateColor(l.status.State))
	case 2:
		if column == 0 {
			return tview.NewTableCell("Packets Rx'd:")
		}
		return tview.NewTableCell(fmt.Sprintf("%d", l.status.PacketsReceived))
	case 3:
		if column == 0 {
			return tview.NewTableCell("Transport Errors:")
		}
		color := tcell.ColorGreen
		if l.status.TransportErrors > 0 {
			color = tcell.ColorRed
		}
		return tview.NewTableCell(fmt.Sprintf("%d", l.status.TransportErrors)).SetTextColor(color)
	case 4:
		if column == 0 {
			return tview.NewTableCell("Capture Blocks:")
		}
		return tview.NewTableCell(fmt.Sprintf("%d", l.status.Blocks))
	case 5:
		if column == 0 {
			return tview.NewTableCell("Average Rate:")
		}
		return tview.NewTableCell(fmt.Sprintf("%.0f pkt/s", l.status.AverageRate))
	}
	return tview.NewTableCell("ERROR")
}

func (d *PidTableData) GetRowCount() int {
	return len(d.rows) + 1
}

func (d *PidTableData) GetColumnCount() int {
	return 3
}

func (d *PidTableData) GetCell(row, column int) *tview.TableCell {
	if row == 0 {
		switch column {
		case 0:
			return tview.NewTableCell("[lightskyblue]PID ")
		case 1:
			return tview.NewTableCell("[green]Packets RX'd ")
		case 2:
			return tview.NewTableCell("[white]Packets/s")
		}
		return tview.NewTableCell("ERROR")
	}

	if row > len(d.rows) {
		return nil
	}
	r := d.rows[row-1]
	switch column {
	case 0:
		return tview.NewTableCell(fmt.Sprintf("[lightskyblue]%#04x", r.PID))
	case 1:
		if r.Packets == 0 {
			return tview.NewTableCell(fmt.Sprintf("[red]%d", r.Packets))
		}
		return tview.NewTableCell(fmt.Sprintf("[green]%d", r.Packets))
	case 2:
		return tview.NewTableCell(fmt.Sprintf("[white]%.1f", r.Rate))
	}
	return tview.NewTableCell("ERROR")
}
